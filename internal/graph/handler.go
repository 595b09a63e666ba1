package graph

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	graphql "github.com/graph-gophers/graphql-go"
	"github.com/gorilla/websocket"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/threadsclone/backend/internal/httputil"
	"github.com/threadsclone/backend/internal/logging"
	"github.com/threadsclone/backend/internal/metrics"
	"github.com/threadsclone/backend/internal/principal"
)

const (
	maxRequestBytes = 1 << 20

	opQuery        = "query"
	opMutation     = "mutation"
	opSubscription = "subscription"
	opUnknown      = "unknown"
)

// Request is a GraphQL-over-HTTP request body.
type Request struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName,omitempty"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
}

// Handler serves one schema on /graphql: queries and mutations over HTTP,
// and every operation type over graphql-transport-ws WebSockets.
type Handler struct {
	schema   *graphql.Schema
	builder  *principal.Builder
	logger   *logging.Logger
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader

	initTimeout time.Duration
}

// NewHandler creates a Handler. HTTP requests are expected to carry their
// principal already; WebSocket connections authenticate with builder from
// the connection_init payload.
func NewHandler(schema *graphql.Schema, builder *principal.Builder, logger *logging.Logger, m *metrics.Metrics) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		schema:  schema,
		builder: builder,
		logger:  logger,
		metrics: m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			Subprotocols:    []string{Subprotocol},
			CheckOrigin:     sameOrigin,
		},
		initTimeout: 10 * time.Second,
	}
}

// WithOriginCheck replaces the WebSocket origin policy. The default only
// accepts requests without an Origin header or from the serving host.
func (h *Handler) WithOriginCheck(allowed func(origin string) bool) *Handler {
	h.upgrader.CheckOrigin = func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed(origin)
	}
	return h
}

func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && strings.EqualFold(u.Host, r.Host)
}

// ServeHTTP dispatches to the WebSocket transport or executes one HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		h.serveWebSocket(w, r)
		return
	}

	var req Request
	switch r.Method {
	case http.MethodGet:
		req.Query = r.URL.Query().Get("query")
		req.OperationName = r.URL.Query().Get("operationName")
		if raw := r.URL.Query().Get("variables"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &req.Variables); err != nil {
				h.writeErrors(w, http.StatusBadRequest, "Variables are invalid JSON.", "BAD_REQUEST")
				return
			}
		}
	case http.MethodPost:
		body, err := httputil.ReadAllStrict(r.Body, maxRequestBytes)
		if err != nil {
			h.writeErrors(w, http.StatusRequestEntityTooLarge, "Request body too large.", "BAD_REQUEST")
			return
		}
		if err := json.Unmarshal(body, &req); err != nil {
			h.writeErrors(w, http.StatusBadRequest, "POST body must be a JSON GraphQL request.", "BAD_REQUEST")
			return
		}
	default:
		w.Header().Set("Allow", "GET, POST")
		h.writeErrors(w, http.StatusMethodNotAllowed, "GraphQL only supports GET and POST requests.", "METHOD_NOT_ALLOWED")
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		h.writeErrors(w, http.StatusBadRequest, "Must provide query string.", "BAD_REQUEST")
		return
	}

	opType := OperationType(req.Query, req.OperationName)
	switch {
	case opType == opMutation && r.Method == http.MethodGet:
		w.Header().Set("Allow", "POST")
		h.writeErrors(w, http.StatusMethodNotAllowed, "Mutations can only be sent over POST.", "METHOD_NOT_ALLOWED")
		return
	case opType == opSubscription:
		h.writeErrors(w, http.StatusBadRequest, "Subscriptions require a WebSocket connection.", "BAD_REQUEST")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, h.Execute(r.Context(), req))
}

// Schema returns the executable schema.
func (h *Handler) Schema() *graphql.Schema {
	return h.schema
}

// Execute runs a query or mutation and masks its errors.
func (h *Handler) Execute(ctx context.Context, req Request) *graphql.Response {
	start := time.Now()
	resp := h.schema.Exec(ctx, req.Query, req.OperationName, req.Variables)
	resp.Errors = MaskErrors(ctx, h.logger, resp.Errors)
	if h.metrics != nil {
		h.metrics.RecordGraphQL(OperationType(req.Query, req.OperationName), len(resp.Errors) > 0, time.Since(start))
	}
	return resp
}

func (h *Handler) writeErrors(w http.ResponseWriter, status int, message, code string) {
	httputil.WriteJSON(w, status, &graphql.Response{Errors: clientErrors(message, code)})
}

// OperationType returns query, mutation or subscription for the selected
// operation, or unknown when the document does not parse.
func OperationType(query, operationName string) string {
	doc, err := parser.ParseQuery(&ast.Source{Input: query})
	if err != nil {
		return opUnknown
	}
	for _, op := range doc.Operations {
		if operationName == "" || op.Name == operationName {
			return string(op.Operation)
		}
	}
	return opUnknown
}
