// Package pubsub is the in-process topic registry that carries domain events
// from mutations to live subscriptions.
//
// Delivery is best effort: each subscription owns a bounded buffer and an
// event that does not fit is dropped for that subscriber only. Publishers
// never block on slow consumers.
package pubsub

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/threadsclone/backend/internal/app/runtime"
	"github.com/threadsclone/backend/internal/logging"
	"github.com/threadsclone/backend/internal/metrics"
)

// DefaultBufferSize is the per-subscription event buffer.
const DefaultBufferSize = 64

var (
	// ErrStopped is returned by Subscribe after Stop.
	ErrStopped = stderrors.New("pubsub: registry stopped")
	// ErrNoTopics is returned by Subscribe without topics.
	ErrNoTopics = stderrors.New("pubsub: at least one topic is required")
)

// Event is one published message.
type Event struct {
	Topic       string          `json:"topic"`
	Payload     json.RawMessage `json:"payload"`
	Origin      string          `json:"origin,omitempty"`
	PublishedAt time.Time       `json:"publishedAt"`
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v interface{}) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Topic, err)
	}
	return nil
}

// Publisher is what mutation code depends on.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload interface{}) error
}

// Subscriber is what subscription resolvers depend on.
type Subscriber interface {
	Subscribe(ctx context.Context, topics ...string) (*Subscription, error)
}

// Relay forwards events between processes sharing a broker.
type Relay interface {
	// Forward ships a locally published event to peers.
	Forward(ctx context.Context, ev Event) error
	// Run receives peer events and hands them to deliver until ctx ends.
	Run(ctx context.Context, deliver func(Event)) error
	Close() error
}

// Options configures a Registry.
type Options struct {
	BufferSize int
	Logger     *logging.Logger
	Metrics    *metrics.Metrics
	Relay      Relay
}

// Registry maps topic names to live subscriptions.
//
// Subscribe and Cancel take the write lock; Publish delivers under the read
// lock with non-blocking sends. A subscription's channel is closed only under
// the write lock, so a publish can never send on a closed channel.
type Registry struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscription]struct{}
	subs   map[*Subscription]struct{}

	bufferSize int
	origin     string
	logger     *logging.Logger
	metrics    *metrics.Metrics
	relay      Relay

	started     bool
	stopped     bool
	cancelRelay context.CancelFunc
	relayDone   chan struct{}
}

// NewRegistry creates a stopped registry. Call Start before serving.
func NewRegistry(opts Options) *Registry {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	return &Registry{
		topics:     make(map[string]map[*Subscription]struct{}),
		subs:       make(map[*Subscription]struct{}),
		bufferSize: opts.BufferSize,
		origin:     uuid.NewString(),
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		relay:      opts.Relay,
	}
}

// Origin identifies this registry in relayed events.
func (r *Registry) Origin() string {
	return r.origin
}

// Start launches the relay receiver when one is configured.
func (r *Registry) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return ErrStopped
	}
	if r.started {
		return nil
	}
	r.started = true

	if r.relay == nil {
		return nil
	}

	relayCtx, cancel := context.WithCancel(ctx)
	r.cancelRelay = cancel
	r.relayDone = make(chan struct{})
	runtime.Go(r.logger, "pubsub-relay", func() {
		defer close(r.relayDone)
		err := r.relay.Run(relayCtx, r.deliverRemote)
		if err != nil && relayCtx.Err() == nil {
			panic(fmt.Sprintf("pubsub relay stopped: %v", err))
		}
	})
	return nil
}

// Stop cancels every subscription and shuts the relay down. Stop is idempotent.
func (r *Registry) Stop() error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	for sub := range r.subs {
		r.removeLocked(sub)
	}
	cancel, done := r.cancelRelay, r.relayDone
	r.mu.Unlock()
	r.reportSubscribers()

	if cancel != nil {
		cancel()
		<-done
	}
	if r.relay != nil {
		return r.relay.Close()
	}
	return nil
}

// Publish delivers payload to every subscription registered under topic at
// the time of the call, then forwards it to the relay.
func (r *Registry) Publish(ctx context.Context, topic string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", topic, err)
	}
	ev := Event{
		Topic:       topic,
		Payload:     raw,
		Origin:      r.origin,
		PublishedAt: time.Now().UTC(),
	}

	r.deliver(ctx, ev)
	if r.metrics != nil {
		r.metrics.EventPublished(topic)
	}

	if r.relay != nil {
		if err := r.relay.Forward(ctx, ev); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithField("topic", topic).
				Warn("Failed to forward event to relay")
		}
	}
	return nil
}

func (r *Registry) deliverRemote(ev Event) {
	if ev.Origin == r.origin {
		return
	}
	r.deliver(context.Background(), ev)
}

func (r *Registry) deliver(ctx context.Context, ev Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for sub := range r.topics[ev.Topic] {
		select {
		case sub.ch <- ev:
			if r.metrics != nil {
				r.metrics.EventDelivered()
			}
		default:
			if r.metrics != nil {
				r.metrics.EventDropped()
			}
			r.logger.WithContext(ctx).WithFields(map[string]interface{}{
				"topic":        ev.Topic,
				"subscription": sub.id,
			}).Warn("Subscriber buffer full, event dropped")
		}
	}
}

// Subscribe registers a subscription for topics. The subscription is
// cancelled when ctx ends or Cancel is called, whichever comes first.
func (r *Registry) Subscribe(ctx context.Context, topics ...string) (*Subscription, error) {
	topics = dedupe(topics)
	if len(topics) == 0 {
		return nil, ErrNoTopics
	}

	sub := &Subscription{
		id:       uuid.NewString(),
		registry: r,
		topics:   topics,
		ch:       make(chan Event, r.bufferSize),
		done:     make(chan struct{}),
	}

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil, ErrStopped
	}
	r.subs[sub] = struct{}{}
	for _, topic := range sub.topics {
		set, ok := r.topics[topic]
		if !ok {
			set = make(map[*Subscription]struct{})
			r.topics[topic] = set
		}
		set[sub] = struct{}{}
	}
	r.mu.Unlock()
	r.reportSubscribers()

	go func() {
		select {
		case <-ctx.Done():
			sub.Cancel()
		case <-sub.done:
		}
	}()

	return sub, nil
}

// SubscriberCount returns the number of live subscriptions.
func (r *Registry) SubscriberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// TopicCount returns the number of topics with at least one subscription.
func (r *Registry) TopicCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.topics)
}

// removeLocked unregisters sub and closes its channel. Caller holds r.mu.
func (r *Registry) removeLocked(sub *Subscription) bool {
	if sub.closed {
		return false
	}
	sub.closed = true
	delete(r.subs, sub)
	for _, topic := range sub.topics {
		if set, ok := r.topics[topic]; ok {
			delete(set, sub)
			if len(set) == 0 {
				delete(r.topics, topic)
			}
		}
	}

	// Discard anything still buffered so nothing is observed after Cancel.
	for {
		select {
		case <-sub.ch:
			continue
		default:
		}
		break
	}
	close(sub.ch)
	close(sub.done)
	return true
}

func (r *Registry) reportSubscribers() {
	if r.metrics != nil {
		r.metrics.SetSubscribers(r.SubscriberCount())
	}
}

// Subscription is one registered handle.
type Subscription struct {
	id       string
	registry *Registry
	topics   []string
	ch       chan Event
	done     chan struct{}
	closed   bool // guarded by registry.mu
}

// ID identifies the subscription in logs.
func (s *Subscription) ID() string {
	return s.id
}

// Topics returns the topics the subscription listens on.
func (s *Subscription) Topics() []string {
	out := make([]string, len(s.topics))
	copy(out, s.topics)
	return out
}

// Events is closed when the subscription is cancelled.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Cancel unregisters the subscription from every topic. Once Cancel returns
// no further events are observable on Events. Cancel is idempotent.
func (s *Subscription) Cancel() {
	r := s.registry
	r.mu.Lock()
	removed := r.removeLocked(s)
	r.mu.Unlock()
	if removed {
		r.reportSubscribers()
	}
}

func dedupe(topics []string) []string {
	seen := make(map[string]struct{}, len(topics))
	out := make([]string, 0, len(topics))
	for _, t := range topics {
		if _, ok := seen[t]; ok || t == "" {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

var (
	_ Publisher  = (*Registry)(nil)
	_ Subscriber = (*Registry)(nil)
)
