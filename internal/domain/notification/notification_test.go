package notification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/threadsclone/backend/internal/domain"
	"github.com/threadsclone/backend/internal/errors"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		n       Notification
		wantErr bool
	}{
		{"like with post", Notification{RecipientID: "r", SenderID: "s", Type: Like, PostID: "p"}, false},
		{"message with chat", Notification{RecipientID: "r", SenderID: "s", Type: Message, ChatID: "c", MessageID: "m"}, false},
		{"like without entity", Notification{RecipientID: "r", SenderID: "s", Type: Like}, true},
		{"follow with sender", Notification{RecipientID: "r", SenderID: "s", Type: Follow}, false},
		{"follow without sender", Notification{RecipientID: "r", Type: Follow}, true},
		{"system", Notification{RecipientID: "r", Type: System}, false},
		{"no recipient", Notification{SenderID: "s", Type: Like, PostID: "p"}, true},
		{"unknown type", Notification{RecipientID: "r", Type: "POKE", PostID: "p"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.n)
			if tt.wantErr {
				assert.True(t, errors.HasCode(err, errors.CodeValidation), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFilterMatches(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	n := Notification{Type: Like, IsRead: false, CreatedAt: base}

	like, follow := Like, Follow
	read, unread := true, false
	before, after := base.Add(-time.Hour), base.Add(time.Hour)

	assert.True(t, Filter{}.Matches(n))
	assert.True(t, Filter{Type: &like, IsRead: &unread}.Matches(n))
	assert.False(t, Filter{Type: &follow}.Matches(n))
	assert.False(t, Filter{IsRead: &read}.Matches(n))
	assert.True(t, Filter{FromDate: &before, ToDate: &after}.Matches(n))
	assert.False(t, Filter{FromDate: &after}.Matches(n))
	assert.False(t, Filter{ToDate: &before}.Matches(n))
}

func TestMarkRead(t *testing.T) {
	now := time.Now()
	n := New(Notification{RecipientID: "r", Type: System}, now)

	read, intent := MarkRead(n, now)
	assert.Equal(t, domain.Update, intent)
	assert.True(t, read.IsRead)
	assert.False(t, n.IsRead)

	_, intent = MarkRead(read, now)
	assert.Equal(t, domain.NoChange, intent)
}

func TestShouldNotify(t *testing.T) {
	assert.True(t, ShouldNotify("a", "b"))
	assert.False(t, ShouldNotify("a", "a"))
	assert.False(t, ShouldNotify("a", ""))
}
