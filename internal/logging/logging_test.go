package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestNew_LevelFallback(t *testing.T) {
	l := New("auth", "bogus", "json")
	if l.GetLevel().String() != "info" {
		t.Errorf("level = %s, want info", l.GetLevel())
	}
	if l.Service() != "auth" {
		t.Errorf("service = %s, want auth", l.Service())
	}
}

func TestWithContext_AddsTraceAndUser(t *testing.T) {
	var buf bytes.Buffer
	l := New("posts", "debug", "json")
	l.SetOutput(&buf)

	ctx := WithTraceID(context.Background(), "trace-1")
	ctx = WithUserID(ctx, "user-1")
	l.WithContext(ctx).Info("hello")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if entry["trace_id"] != "trace-1" {
		t.Errorf("trace_id = %v, want trace-1", entry["trace_id"])
	}
	if entry["user_id"] != "user-1" {
		t.Errorf("user_id = %v, want user-1", entry["user_id"])
	}
	if entry["service"] != "posts" {
		t.Errorf("service = %v, want posts", entry["service"])
	}
}

func TestLogRequest_LevelByStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{200, "info"},
		{404, "warning"},
		{503, "error"},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		l := New("gateway", "debug", "json")
		l.SetOutput(&buf)
		l.LogRequest(context.Background(), "GET", "/x", tt.status, time.Millisecond)

		var entry map[string]interface{}
		if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
			t.Fatalf("unmarshal log line: %v", err)
		}
		if entry["level"] != tt.level {
			t.Errorf("status %d: level = %v, want %s", tt.status, entry["level"], tt.level)
		}
	}
}

func TestContextHelpers_Empty(t *testing.T) {
	ctx := context.Background()
	if GetTraceID(ctx) != "" {
		t.Error("GetTraceID on empty context should be empty")
	}
	if GetUserID(ctx) != "" {
		t.Error("GetUserID on empty context should be empty")
	}
	if NewTraceID() == NewTraceID() {
		t.Error("NewTraceID should be unique")
	}
}
