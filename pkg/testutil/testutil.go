// Package testutil provides an in-memory service environment and helpers
// for running GraphQL operations in tests.
package testutil

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	graphql "github.com/graph-gophers/graphql-go"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/threadsclone/backend/internal/config"
	"github.com/threadsclone/backend/internal/domain/user"
	"github.com/threadsclone/backend/internal/graph"
	"github.com/threadsclone/backend/internal/logging"
	"github.com/threadsclone/backend/internal/mailer"
	"github.com/threadsclone/backend/internal/metrics"
	"github.com/threadsclone/backend/internal/principal"
	"github.com/threadsclone/backend/internal/pubsub"
	"github.com/threadsclone/backend/internal/storage"
	"github.com/threadsclone/backend/internal/token"
	"github.com/threadsclone/backend/services/common/service"
)

// Secret signs tokens issued in tests.
const Secret = "test-secret"

// Env is a service environment over the memory store.
type Env struct {
	Deps  *service.Deps
	Store *storage.Memory
	Mail  *RecordingMailer
}

// NewEnv builds a started environment that is torn down with t.
func NewEnv(t testing.TB) *Env {
	t.Helper()
	logger := logging.NewDiscard()
	m := metrics.New("test")

	codec, err := token.NewCodec(Secret, time.Hour)
	require.NoError(t, err)

	registry := pubsub.NewRegistry(pubsub.Options{Logger: logger, Metrics: m})
	require.NoError(t, registry.Start(context.Background()))
	t.Cleanup(func() { _ = registry.Stop() })

	store := storage.NewMemory()
	cfg := &config.Config{
		Service:     "test",
		Port:        4000,
		FrontendURL: "http://frontend.test",
		JWTSecret:   Secret,
	}
	deps := service.Assemble(cfg, logger, m, storage.NewStores(store), registry, codec)
	mail := &RecordingMailer{}
	deps.Mailer = mail

	return &Env{Deps: deps, Store: store, Mail: mail}
}

// Handler parses sources against root.
func (e *Env) Handler(t testing.TB, root interface{}, sources ...graph.Source) *graph.Handler {
	t.Helper()
	schema, err := graph.Parse(root, e.Deps.Logger, sources...)
	require.NoError(t, err)
	return graph.NewHandler(schema, e.Deps.Builder, e.Deps.Logger, e.Deps.Metrics)
}

// CreateUser seeds an account with password "password".
func (e *Env) CreateUser(t testing.TB, username string) user.User {
	t.Helper()
	hash, err := user.HashPassword("password")
	require.NoError(t, err)
	now := time.Now().UTC()
	u, err := e.Store.CreateUser(context.Background(), user.New(user.Registration{
		Email:    username + "@example.com",
		Username: username,
		FullName: username,
	}, hash, "", now))
	require.NoError(t, err)
	return u
}

// AsUser returns ctx acting as userID; "" stays anonymous.
func AsUser(ctx context.Context, userID string) context.Context {
	if userID == "" {
		return ctx
	}
	return principal.WithPrincipal(ctx, &principal.Principal{ID: userID})
}

// Exec runs a query or mutation as userID and returns the response JSON.
func Exec(t testing.TB, h *graph.Handler, userID, query string, vars map[string]interface{}) gjson.Result {
	t.Helper()
	resp := h.Execute(AsUser(context.Background(), userID), graph.Request{Query: query, Variables: wire(t, vars)})
	body, err := json.Marshal(resp)
	require.NoError(t, err)
	return gjson.ParseBytes(body)
}

// wire passes vars through JSON so they reach the schema with the types an
// HTTP request would carry ([]interface{}, float64, ...).
func wire(t testing.TB, vars map[string]interface{}) map[string]interface{} {
	t.Helper()
	if vars == nil {
		return nil
	}
	raw, err := json.Marshal(vars)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

// ErrorCode returns extensions.code of the first error, or "".
func ErrorCode(res gjson.Result) string {
	return res.Get("errors.0.extensions.code").String()
}

// Stream is a live subscription opened by Subscribe.
type Stream struct {
	t      testing.TB
	ch     <-chan interface{}
	cancel context.CancelFunc
}

// Subscribe opens a subscription as userID. The resolver has registered
// with the registry by the time it returns.
func Subscribe(t testing.TB, h *graph.Handler, userID, query string, vars map[string]interface{}) *Stream {
	t.Helper()
	ctx, cancel := context.WithCancel(AsUser(context.Background(), userID))
	ch, err := h.Schema().Subscribe(ctx, query, "", wire(t, vars))
	if err != nil {
		cancel()
		require.NoError(t, err)
	}
	t.Cleanup(cancel)
	return &Stream{t: t, ch: ch, cancel: cancel}
}

// Next waits for one response.
func (s *Stream) Next(timeout time.Duration) gjson.Result {
	s.t.Helper()
	select {
	case v, ok := <-s.ch:
		if !ok {
			s.t.Fatal("subscription closed")
		}
		if resp, isResp := v.(*graphql.Response); isResp {
			resp.Errors = graph.MaskErrors(context.Background(), logging.NewDiscard(), resp.Errors)
		}
		body, err := json.Marshal(v)
		require.NoError(s.t, err)
		return gjson.ParseBytes(body)
	case <-time.After(timeout):
		s.t.Fatal("timed out waiting for subscription event")
	}
	return gjson.Result{}
}

// ExpectNone asserts nothing arrives within wait.
func (s *Stream) ExpectNone(wait time.Duration) {
	s.t.Helper()
	select {
	case v, ok := <-s.ch:
		if ok {
			body, _ := json.Marshal(v)
			s.t.Fatalf("unexpected subscription event: %s", body)
		}
	case <-time.After(wait):
	}
}

// Close cancels the subscription.
func (s *Stream) Close() {
	s.cancel()
}

// RecordingMailer captures outgoing mail.
type RecordingMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	Err  error
}

// Send records msg, or returns Err when set.
func (m *RecordingMailer) Send(_ context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, msg)
	return nil
}

// Sent returns a copy of the recorded messages.
func (m *RecordingMailer) Sent() []mailer.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]mailer.Message, len(m.sent))
	copy(out, m.sent)
	return out
}
