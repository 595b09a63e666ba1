package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestTopicFamily(t *testing.T) {
	tests := map[string]string{
		"MESSAGE_ADDED_123":        "MESSAGE_ADDED",
		"POST_ADDED":               "POST_ADDED",
		"NOTIFICATION_DELETED_u1":  "NOTIFICATION_DELETED",
		"USER_UNFOLLOWED_x":        "USER_UNFOLLOWED",
		"SOMETHING_ELSE":           "OTHER",
	}
	for topic, want := range tests {
		if got := TopicFamily(topic); got != want {
			t.Errorf("TopicFamily(%q) = %q, want %q", topic, got, want)
		}
	}
}

func TestCounters(t *testing.T) {
	m := New("test")
	m.EventPublished("POST_ADDED")
	m.EventPublished("MESSAGE_ADDED_c1")
	m.EventPublished("MESSAGE_ADDED_c2")
	m.EventDropped()
	m.SetSubscribers(3)

	if got := testutil.ToFloat64(m.eventsPublished.WithLabelValues("MESSAGE_ADDED")); got != 2 {
		t.Errorf("MESSAGE_ADDED published = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.eventsDropped); got != 1 {
		t.Errorf("dropped = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.subscribers); got != 3 {
		t.Errorf("subscribers = %v, want 3", got)
	}
}

func TestHandler(t *testing.T) {
	m := New("test")
	m.RecordHTTPRequest("GET", "/graphql", "200", 10*time.Millisecond)
	m.RecordGraphQL("query", false, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"threads_http_requests_total", "threads_graphql_operations_total"} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}
