package chat

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadsclone/backend/internal/domain"
	"github.com/threadsclone/backend/internal/errors"
)

func TestValidateInput(t *testing.T) {
	tests := []struct {
		name    string
		in      Input
		wantErr bool
	}{
		{"direct", Input{Type: Direct, ParticipantIDs: []string{"b"}}, false},
		{"direct with self repeated", Input{Type: Direct, ParticipantIDs: []string{"a", "b", "b"}}, false},
		{"direct three people", Input{Type: Direct, ParticipantIDs: []string{"b", "c"}}, true},
		{"alone", Input{Type: Group, ParticipantIDs: []string{"a"}}, true},
		{"group", Input{Type: Group, ParticipantIDs: []string{"b", "c"}, Name: "team"}, false},
		{"bad type", Input{Type: "CHANNEL", ParticipantIDs: []string{"b"}}, true},
		{"long name", Input{Type: Group, ParticipantIDs: []string{"b"}, Name: strings.Repeat("n", MaxNameLength+1)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateInput("a", tt.in)
			if tt.wantErr {
				assert.True(t, errors.HasCode(err, errors.CodeValidation), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateMessage(t *testing.T) {
	assert.NoError(t, ValidateMessage(MessageInput{ChatID: "c", Content: "hi"}))
	assert.NoError(t, ValidateMessage(MessageInput{ChatID: "c", Type: MessageImage, FileURL: "http://x/img.png"}))
	assert.Error(t, ValidateMessage(MessageInput{ChatID: "c", Content: "  "}))
	assert.Error(t, ValidateMessage(MessageInput{ChatID: "c", Type: MessageFile}))
	assert.Error(t, ValidateMessage(MessageInput{Content: "hi"}))
	assert.Error(t, ValidateMessage(MessageInput{ChatID: "c", Content: strings.Repeat("m", MaxMessageLength+1)}))
	assert.Error(t, ValidateMessage(MessageInput{ChatID: "c", Content: "hi", Type: "VOICE"}))
}

func TestNew(t *testing.T) {
	now := time.Now()
	c := New("a", Input{Type: Direct, ParticipantIDs: []string{"b"}, Name: "ignored"}, now)
	assert.Equal(t, []string{"a", "b"}, c.Participants)
	assert.Empty(t, c.Name)
	assert.True(t, c.IsActive)
	assert.True(t, IsParticipant(c, "b"))
	assert.False(t, IsParticipant(c, "z"))
}

func TestRecordMessageAndMarkRead(t *testing.T) {
	now := time.Now()
	c := New("a", Input{Type: Group, ParticipantIDs: []string{"b", "c"}}, now)
	m := NewMessage("a", MessageInput{ChatID: "c1", Content: "hello"}, now)
	m.ID = "m1"
	assert.True(t, ReadByUser(m, "a"))

	c, intent := RecordMessage(c, m, now)
	assert.Equal(t, domain.Update, intent)
	assert.Equal(t, "m1", c.LastMessageID)
	assert.Equal(t, 0, UnreadFor(c, "a"))
	assert.Equal(t, 1, UnreadFor(c, "b"))
	assert.Equal(t, 1, UnreadFor(c, "c"))

	read, intent := MarkRead(c, "b")
	assert.Equal(t, domain.Update, intent)
	assert.Equal(t, 0, UnreadFor(read, "b"))
	assert.Equal(t, 1, UnreadFor(c, "b"), "input must not be mutated")

	_, intent = MarkRead(read, "b")
	assert.Equal(t, domain.NoChange, intent)
}

func TestApplyUpdate(t *testing.T) {
	now := time.Now()
	name := "renamed"

	direct := New("a", Input{Type: Direct, ParticipantIDs: []string{"b"}}, now)
	_, _, err := ApplyUpdate(direct, Update{Name: &name}, now)
	assert.True(t, errors.HasCode(err, errors.CodeForbidden))

	group := New("a", Input{Type: Group, ParticipantIDs: []string{"b"}, Name: "old"}, now)
	updated, intent, err := ApplyUpdate(group, Update{Name: &name}, now)
	require.NoError(t, err)
	assert.Equal(t, domain.Update, intent)
	assert.Equal(t, "renamed", updated.Name)

	_, intent, err = ApplyUpdate(updated, Update{Name: &name}, now)
	require.NoError(t, err)
	assert.Equal(t, domain.NoChange, intent)
}

func TestLeave(t *testing.T) {
	now := time.Now()
	direct := New("a", Input{Type: Direct, ParticipantIDs: []string{"b"}}, now)
	_, _, err := Leave(direct, "a", now)
	assert.True(t, errors.HasCode(err, errors.CodeForbidden))

	group := New("a", Input{Type: Group, ParticipantIDs: []string{"b"}}, now)
	left, intent, err := Leave(group, "a", now)
	require.NoError(t, err)
	assert.Equal(t, domain.Update, intent)
	assert.Equal(t, []string{"b"}, left.Participants)
	assert.True(t, left.IsActive)

	empty, _, err := Leave(left, "b", now)
	require.NoError(t, err)
	assert.Empty(t, empty.Participants)
	assert.False(t, empty.IsActive)

	_, intent, err = Leave(empty, "b", now)
	require.NoError(t, err)
	assert.Equal(t, domain.NoChange, intent)
}

func TestMessageMutations(t *testing.T) {
	now := time.Now()
	m := NewMessage("a", MessageInput{ChatID: "c", Type: MessageImage, FileURL: "http://x"}, now)

	read, intent := MarkMessageRead(m, "b", now)
	assert.Equal(t, domain.Update, intent)
	assert.Len(t, read.ReadBy, 2)
	assert.Len(t, m.ReadBy, 1)
	_, intent = MarkMessageRead(read, "b", now)
	assert.Equal(t, domain.NoChange, intent)

	deleted, intent := MarkMessageDeleted(m, now)
	assert.Equal(t, domain.Update, intent)
	assert.Equal(t, DeletedMessageContent, deleted.Content)
	assert.Empty(t, deleted.FileURL)
	_, intent = MarkMessageDeleted(deleted, now)
	assert.Equal(t, domain.NoChange, intent)
}
