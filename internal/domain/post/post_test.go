package post

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/threadsclone/backend/internal/domain"
	"github.com/threadsclone/backend/internal/errors"
)

func TestValidateInput(t *testing.T) {
	tests := []struct {
		name    string
		in      Input
		wantErr bool
	}{
		{"valid", Input{Content: "hello"}, false},
		{"blank", Input{Content: "   "}, true},
		{"too long", Input{Content: strings.Repeat("a", MaxContentLength+1)}, true},
		{"bad media", Input{Content: "x", Media: []Media{{Type: "GIF", URL: "u"}}}, true},
		{"media no url", Input{Content: "x", Media: []Media{{Type: MediaImage}}}, true},
		{"bad location", Input{Content: "x", Location: &Location{Latitude: 91}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateInput(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateInput() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.HasCode(err, errors.CodeValidation) {
				t.Errorf("error code = %v, want VALIDATION_ERROR", err)
			}
		})
	}
}

func TestExtractHashtags(t *testing.T) {
	got := ExtractHashtags("Loving #Go and #go, also #cloud_native! #")
	want := []string{"go", "cloud_native"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractHashtags() = %v, want %v", got, want)
	}
}

func TestNew_HashtagDefaulting(t *testing.T) {
	now := time.Now()
	p := New("a1", Input{Content: " hi #there ", Mentions: []string{"u1", "u1", ""}}, now)
	if p.Content != "hi #there" {
		t.Errorf("Content = %q", p.Content)
	}
	if !reflect.DeepEqual(p.Hashtags, []string{"there"}) {
		t.Errorf("Hashtags = %v", p.Hashtags)
	}
	if !reflect.DeepEqual(p.Mentions, []string{"u1"}) {
		t.Errorf("Mentions = %v", p.Mentions)
	}

	explicit := New("a1", Input{Content: "#ignored", Hashtags: []string{"#Kept"}}, now)
	if !reflect.DeepEqual(explicit.Hashtags, []string{"kept"}) {
		t.Errorf("explicit Hashtags = %v", explicit.Hashtags)
	}
}

func TestVisibleTo(t *testing.T) {
	p := Post{AuthorID: "a", IsPrivate: true}
	if VisibleTo(p, "b") {
		t.Error("private post visible to non-author")
	}
	if !VisibleTo(p, "a") {
		t.Error("private post hidden from author")
	}
	if !VisibleTo(Post{AuthorID: "a"}, "b") {
		t.Error("public post hidden")
	}
}

func TestApplyEdit(t *testing.T) {
	now := time.Now()
	p := New("a", Input{Content: "first #one"}, now.Add(-time.Minute))

	content := "second #two"
	private := true
	edited, intent := ApplyEdit(p, Edit{Content: &content, IsPrivate: &private}, now)
	if intent != domain.Update {
		t.Fatalf("intent = %v", intent)
	}
	if !edited.IsEdited || edited.EditedAt == nil || !edited.IsPrivate {
		t.Errorf("edited = %+v", edited)
	}
	if !reflect.DeepEqual(edited.Hashtags, []string{"two"}) {
		t.Errorf("Hashtags = %v", edited.Hashtags)
	}
	if p.IsEdited {
		t.Error("ApplyEdit mutated input")
	}
}

func TestMarkDeleted(t *testing.T) {
	now := time.Now()
	p := New("a", Input{Content: "bye"}, now)

	deleted, intent := MarkDeleted(p, now)
	if intent != domain.Update || !deleted.IsDeleted || deleted.Content != DeletedPostContent {
		t.Fatalf("MarkDeleted = %+v, %v", deleted, intent)
	}
	if _, intent := MarkDeleted(deleted, now); intent != domain.NoChange {
		t.Errorf("second delete intent = %v, want none", intent)
	}
	if _, intent := ApplyEdit(deleted, Edit{}, now); intent != domain.NoChange {
		t.Errorf("edit of deleted post intent = %v, want none", intent)
	}
}

func TestCommentLifecycle(t *testing.T) {
	now := time.Now()
	if err := ValidateCommentInput(CommentInput{Content: "x"}); err == nil {
		t.Error("missing postId should fail")
	}
	if err := ValidateCommentInput(CommentInput{PostID: "p", Content: strings.Repeat("x", MaxCommentContentLength+1)}); err == nil {
		t.Error("long comment should fail")
	}

	c := NewComment("a", CommentInput{PostID: "p", Content: "nice #shot"}, now)
	c, intent := ApplyCommentEdit(c, CommentEdit{Content: "nicer"}, now)
	if intent != domain.Update || !c.IsEdited || len(c.Hashtags) != 0 {
		t.Errorf("ApplyCommentEdit = %+v, %v", c, intent)
	}
	c, intent = MarkCommentDeleted(c, now)
	if intent != domain.Update || c.Content != DeletedCommentContent {
		t.Errorf("MarkCommentDeleted = %+v, %v", c, intent)
	}
}
