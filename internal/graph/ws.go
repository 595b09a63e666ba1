package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	graphql "github.com/graph-gophers/graphql-go"
	"github.com/gorilla/websocket"

	"github.com/threadsclone/backend/internal/app/runtime"
	"github.com/threadsclone/backend/internal/principal"
)

// Subprotocol is the only WebSocket subprotocol accepted on /graphql.
const Subprotocol = "graphql-transport-ws"

// Message types of the graphql-transport-ws protocol.
const (
	msgConnectionInit = "connection_init"
	msgConnectionAck  = "connection_ack"
	msgPing           = "ping"
	msgPong           = "pong"
	msgSubscribe      = "subscribe"
	msgNext           = "next"
	msgError          = "error"
	msgComplete       = "complete"
)

// Close codes of the graphql-transport-ws protocol.
const (
	closeBadRequest       = 4400
	closeUnauthorized     = 4401
	closeInitTimeout      = 4408
	closeDuplicateID      = 4409
	closeTooManyInitCalls = 4429
)

const writeTimeout = 10 * time.Second

type wsMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type wsReply struct {
	ID      string      `json:"id,omitempty"`
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

func (h *Handler) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	if !offersSubprotocol(r) {
		h.writeErrors(w, http.StatusBadRequest, "WebSocket connections must use the "+Subprotocol+" subprotocol.", "BAD_REQUEST")
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithContext(r.Context()).WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	c := &connection{
		h:      h,
		conn:   conn,
		ctx:    ctx,
		cancel: cancel,
		ops:    make(map[string]context.CancelFunc),
	}
	c.serve()
}

func offersSubprotocol(r *http.Request) bool {
	for _, p := range websocket.Subprotocols(r) {
		if p == Subprotocol {
			return true
		}
	}
	return false
}

// connection is one graphql-transport-ws session. The read loop owns ctx;
// operation goroutines only write through send.
type connection struct {
	h      *Handler
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
	acked  atomic.Bool

	writeMu sync.Mutex

	mu  sync.Mutex
	ops map[string]context.CancelFunc
}

func (c *connection) serve() {
	defer c.shutdown()
	if c.h.metrics != nil {
		c.h.metrics.WSConnected()
		defer c.h.metrics.WSDisconnected()
	}

	c.conn.SetReadLimit(maxRequestBytes)
	initTimer := time.AfterFunc(c.h.initTimeout, func() {
		if !c.acked.Load() {
			c.closeWith(closeInitTimeout, "Connection initialisation timeout")
		}
	})
	defer initTimer.Stop()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.closeWith(closeBadRequest, "Invalid message received")
			return
		}
		if !c.handle(msg) {
			return
		}
	}
}

// handle processes one client message and reports whether the connection
// stays open.
func (c *connection) handle(msg wsMessage) bool {
	switch msg.Type {
	case msgConnectionInit:
		if c.acked.Load() {
			c.closeWith(closeTooManyInitCalls, "Too many initialisation requests")
			return false
		}
		var params map[string]interface{}
		if len(msg.Payload) > 0 {
			_ = json.Unmarshal(msg.Payload, &params)
		}
		if p := c.h.builder.FromConnectionParams(c.ctx, params); p != nil {
			c.ctx = principal.WithPrincipal(c.ctx, p)
		}
		c.acked.Store(true)
		c.send(wsReply{Type: msgConnectionAck})

	case msgPing:
		c.send(wsReply{Type: msgPong})

	case msgPong:

	case msgSubscribe:
		if !c.acked.Load() {
			c.closeWith(closeUnauthorized, "Unauthorized")
			return false
		}
		var req Request
		if msg.ID == "" || json.Unmarshal(msg.Payload, &req) != nil || req.Query == "" {
			c.closeWith(closeBadRequest, "Invalid message received")
			return false
		}
		if !c.start(msg.ID, req) {
			c.closeWith(closeDuplicateID, fmt.Sprintf("Subscriber for %s already exists", msg.ID))
			return false
		}

	case msgComplete:
		c.finish(msg.ID)

	default:
		c.closeWith(closeBadRequest, "Invalid message received")
		return false
	}
	return true
}

// start launches one operation. It returns false when id is already in use.
func (c *connection) start(id string, req Request) bool {
	ctx, cancel := context.WithCancel(c.ctx)
	c.mu.Lock()
	if _, dup := c.ops[id]; dup {
		c.mu.Unlock()
		cancel()
		return false
	}
	c.ops[id] = cancel
	c.mu.Unlock()

	if OperationType(req.Query, req.OperationName) != opSubscription {
		runtime.Go(c.h.logger, "graphql-ws-operation", func() {
			defer c.finish(id)
			resp := c.h.Execute(ctx, req)
			if ctx.Err() != nil {
				return
			}
			c.send(wsReply{ID: id, Type: msgNext, Payload: resp})
			c.send(wsReply{ID: id, Type: msgComplete})
		})
		return true
	}

	runtime.Go(c.h.logger, "graphql-ws-subscription", func() {
		defer c.finish(id)
		c.stream(ctx, id, req)
	})
	return true
}

func (c *connection) stream(ctx context.Context, id string, req Request) {
	start := time.Now()
	results, err := c.h.schema.Subscribe(ctx, req.Query, req.OperationName, req.Variables)
	if err != nil {
		c.h.logger.WithContext(ctx).WithError(err).Error("graphql subscribe failed")
		c.send(wsReply{ID: id, Type: msgError, Payload: clientErrors(err.Error(), codeValidationFailed)})
		c.record(true, start)
		return
	}
	recorded := false

	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-results:
			if !ok {
				if !recorded {
					c.record(false, start)
				}
				c.send(wsReply{ID: id, Type: msgComplete})
				return
			}
			resp, _ := v.(*graphql.Response)
			if resp == nil {
				continue
			}
			resp.Errors = MaskErrors(ctx, c.h.logger, resp.Errors)
			if noData(resp.Data) && len(resp.Errors) > 0 {
				if !recorded {
					c.record(true, start)
				}
				c.send(wsReply{ID: id, Type: msgError, Payload: resp.Errors})
				return
			}
			if !recorded {
				c.record(false, start)
				recorded = true
			}
			c.send(wsReply{ID: id, Type: msgNext, Payload: resp})
		}
	}
}

func (c *connection) record(failed bool, start time.Time) {
	if c.h.metrics != nil {
		c.h.metrics.RecordGraphQL(opSubscription, failed, time.Since(start))
	}
}

// finish cancels and forgets operation id. Unknown ids are ignored.
func (c *connection) finish(id string) {
	c.mu.Lock()
	cancel, ok := c.ops[id]
	delete(c.ops, id)
	c.mu.Unlock()
	if ok {
		cancel()
	}
}

func (c *connection) send(reply wsReply) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteJSON(reply); err != nil {
		c.h.logger.WithContext(c.ctx).WithError(err).WithField("type", reply.Type).Debug("WebSocket write failed")
	}
}

func (c *connection) closeWith(code int, reason string) {
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
	_ = c.conn.Close()
}

func (c *connection) shutdown() {
	c.mu.Lock()
	for id, cancel := range c.ops {
		cancel()
		delete(c.ops, id)
	}
	c.mu.Unlock()
	c.cancel()
	_ = c.conn.Close()
}

func noData(data json.RawMessage) bool {
	return len(data) == 0 || string(data) == "null"
}
