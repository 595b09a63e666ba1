package gateway

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/threadsclone/backend/internal/config"
	"github.com/threadsclone/backend/pkg/testutil"
)

type seen struct {
	method string
	path   string
	query  string
	body   string
	auth   string
}

func upstream(t *testing.T, name string, got *seen) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		*got = seen{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.RawQuery,
			body:   string(body),
			auth:   r.Header.Get("Authorization"),
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "http://upstream.example")
		_, _ = io.WriteString(w, `{"status":"ok","service":"`+name+`"}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func deadURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}

func newGateway(t *testing.T, upstreams []config.Upstream) http.Handler {
	t.Helper()
	env := testutil.NewEnv(t)
	base, _, err := New(env.Deps, upstreams)
	require.NoError(t, err)
	return base.Handler()
}

func TestProxy_StripsPrefixAndPreservesRequest(t *testing.T) {
	var got seen
	posts := upstream(t, "posts", &got)
	h := newGateway(t, []config.Upstream{{Name: "posts", Prefix: "/api/posts", URL: posts.URL}})

	req := httptest.NewRequest(http.MethodPost, "/api/posts/graphql?op=feed", strings.NewReader(`{"query":"{ feedPosts { id } }"}`))
	req.Header.Set("Authorization", "Bearer abc")
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/graphql", got.path)
	assert.Equal(t, "op=feed", got.query)
	assert.Equal(t, `{"query":"{ feedPosts { id } }"}`, got.body)
	assert.Equal(t, "Bearer abc", got.auth)
	assert.Equal(t, "posts", gjson.Get(rr.Body.String(), "service").String())
	assert.Len(t, rr.Header().Values("Access-Control-Allow-Origin"), 0)
}

func TestProxy_UnavailableUpstream(t *testing.T) {
	h := newGateway(t, []config.Upstream{{Name: "chat", Prefix: "/api/chat", URL: deadURL(t)}})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/chat/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.JSONEq(t, `{"error":"Service chat unavailable"}`, rr.Body.String())
}

func TestNewProxy_RejectsInvalidURL(t *testing.T) {
	_, err := NewProxy([]config.Upstream{{Name: "auth", Prefix: "/api/auth", URL: "localhost"}}, nil)
	assert.Error(t, err)
}

func TestStatus_ReportsEachUpstream(t *testing.T) {
	var got seen
	auth := upstream(t, "auth", &got)
	h := newGateway(t, []config.Upstream{
		{Name: "auth", Prefix: "/api/auth", URL: auth.URL},
		{Name: "notifications", Prefix: "/api/notifications", URL: deadURL(t)},
	})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	body := rr.Body.String()
	assert.Equal(t, "degraded", gjson.Get(body, "status").String())
	assert.Equal(t, "ok", gjson.Get(body, "services.auth.status").String())
	assert.Equal(t, "/health", got.path)
	assert.Equal(t, "unavailable", gjson.Get(body, "services.notifications.status").String())
}

func TestGateway_StandardRoutes(t *testing.T) {
	h := newGateway(t, config.DefaultServicesConfig().Services)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.JSONEq(t, `{"status":"ok","service":"gateway"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/playground", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "/graphql")

	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{"query":"{ unreadCount }"}`))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rr, req)
	assert.Equal(t, "UNAUTHENTICATED", gjson.Get(rr.Body.String(), "errors.0.extensions.code").String())
}

func TestMergedSchema_SpansServices(t *testing.T) {
	env := testutil.NewEnv(t)
	h := env.Handler(t, NewRoot(env.Deps), Sources()...)
	alice := env.CreateUser(t, "alice")
	bob := env.CreateUser(t, "bob")

	inbox := testutil.Subscribe(t, h, alice.ID, `subscription { notificationAdded { type sender { username } } }`, nil)

	res := testutil.Exec(t, h, bob.ID, `mutation($id: ID!) { followUser(userId: $id) { id } }`,
		map[string]interface{}{"id": alice.ID})
	require.False(t, res.Get("errors").Exists(), res.Raw)

	ev := inbox.Next(2 * time.Second)
	assert.Equal(t, "FOLLOW", ev.Get("data.notificationAdded.type").String())
	assert.Equal(t, "bob", ev.Get("data.notificationAdded.sender.username").String())

	res = testutil.Exec(t, h, alice.ID, `{ me { username } unreadCount myChats { id } }`, nil)
	assert.Equal(t, "alice", res.Get("data.me.username").String())
	assert.Equal(t, int64(1), res.Get("data.unreadCount").Int())
	assert.Empty(t, res.Get("data.myChats").Array())
}
