package services

import (
	"context"
	"duochat/contract"
	"duochat/domain"
	"duochat/domain/event"
	"duochat/errors"
	"duochat/observability"
	"duochat/runtime"
	stderrors "errors"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const defaultDeliveryTimeout = 2 * time.Second

type RouterOptions struct {
	// DeliveryTimeout bounds every single push to a live connection.
	DeliveryTimeout time.Duration
	// SendRate limits sendMessage per connection, zero disables the limit.
	SendRate  rate.Limit
	SendBurst int
	Metrics   *observability.Metrics
}

// Router handles every chat operation across the registry and the store,
// and fans out the resulting events to the live connections.
type Router struct {
	log       *slog.Logger
	registry  contract.IRegistry
	store     contract.IConversationStore
	presence  contract.PresenceNotifier
	locks     *runtime.KeyedMutex
	validator *validator.Validate
	options   RouterOptions

	mu       sync.Mutex
	limiters map[domain.ConnectionID]*rate.Limiter
}

func NewRouter(
	log *slog.Logger,
	registry contract.IRegistry,
	store contract.IConversationStore,
	presence contract.PresenceNotifier,
	options RouterOptions,
) *Router {
	if options.DeliveryTimeout <= 0 {
		options.DeliveryTimeout = defaultDeliveryTimeout
	}
	if options.SendBurst <= 0 {
		options.SendBurst = 1
	}
	v := validator.New()
	_ = v.RegisterValidation("notblank", validators.NotBlank)
	return &Router{
		log:       log,
		registry:  registry,
		store:     store,
		presence:  presence,
		locks:     runtime.NewKeyedMutex(),
		validator: v,
		options:   options,
		limiters:  make(map[domain.ConnectionID]*rate.Limiter),
	}
}

// HandleRegister attaches conn to identity and announces the new online list.
func (r *Router) HandleRegister(_ context.Context, identity domain.Identity, displayName string,
	conn domain.ConnectionID, sink contract.EventSink) (domain.UserInfo, error) {
	info, err := r.registry.Register(identity, displayName, conn, sink)
	if err != nil {
		return domain.UserInfo{}, err
	}
	r.log.Info("Identity registered", "identity", identity, "connection_id", conn, "connections", info.Connections)
	r.presence.Notify()
	return info, nil
}

// HandleCheckIdentity tells whether identity ever registered. It never mutates state.
func (r *Router) HandleCheckIdentity(identity domain.Identity) (domain.CheckIdentityResult, error) {
	if !identity.Valid() {
		return domain.CheckIdentityResult{}, errors.ErrInvalidIdentity
	}
	info, ok := r.registry.Get(identity)
	if !ok {
		return domain.CheckIdentityResult{}, nil
	}
	return domain.CheckIdentityResult{Exists: true, Info: &info}, nil
}

func (r *Router) HandleGetConversations(identity domain.Identity) ([]domain.ConversationSummary, error) {
	if !identity.Valid() {
		return nil, errors.ErrInvalidIdentity
	}
	return r.store.ListForIdentity(identity)
}

// HandleGetMessages opens the thread of the pair, creating the conversation
// on first lookup so that it is listed from then on.
func (r *Router) HandleGetMessages(from, to domain.Identity) (domain.MessagesResult, error) {
	if !from.Valid() || !to.Valid() {
		return domain.MessagesResult{}, errors.ErrInvalidRequest
	}
	if _, err := r.store.GetOrCreate(from, to); err != nil {
		return domain.MessagesResult{}, err
	}
	messages, err := r.store.History(from, to)
	if err != nil {
		return domain.MessagesResult{}, err
	}
	result := domain.MessagesResult{Messages: messages}
	if info, ok := r.registry.Get(to); ok {
		result.Peer = &info
	}
	return result, nil
}

// HandleSendMessage appends the message then pushes it, with both refreshed
// conversation lists, to every live connection of both participants.
// Deliveries happen under the conversation lock so each connection receives
// messages in append order. A failed delivery drops that connection and
// never fails the send.
func (r *Router) HandleSendMessage(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error) {
	if !r.allow(cmd.Conn) {
		return domain.Message{}, errors.ErrRateLimited
	}
	if err := r.validate(cmd); err != nil {
		return domain.Message{}, err
	}

	unlock := r.locks.Lock(domain.Key(cmd.From, cmd.To))
	defer unlock()

	message, err := r.store.Append(cmd.From, cmd.To, cmd.Text)
	if err != nil {
		return domain.Message{}, err
	}
	r.options.Metrics.MessageAppended()
	r.fanout(context.WithoutCancel(ctx), message)
	return message, nil
}

// HandleDisconnect forgets conn. Safe to call for unknown or already removed connections.
func (r *Router) HandleDisconnect(conn domain.ConnectionID) {
	r.mu.Lock()
	delete(r.limiters, conn)
	r.mu.Unlock()

	identity, wentOffline := r.registry.RemoveConnection(conn)
	if identity == "" {
		return
	}
	r.log.Info("Connection removed", "identity", identity, "connection_id", conn, "offline", wentOffline)
	r.presence.Notify()
}

func (r *Router) validate(cmd domain.SendMessageCommand) error {
	err := r.validator.Struct(cmd)
	if err == nil {
		return nil
	}
	var fieldErrors validator.ValidationErrors
	if !stderrors.As(err, &fieldErrors) {
		return err
	}
	for _, fe := range fieldErrors {
		if fe.Field() != "Text" {
			return errors.ErrInvalidRequest
		}
	}
	return errors.ErrEmptyMessage
}

func (r *Router) allow(conn domain.ConnectionID) bool {
	if r.options.SendRate <= 0 || conn == "" {
		return true
	}
	r.mu.Lock()
	limiter, ok := r.limiters[conn]
	if !ok {
		limiter = rate.NewLimiter(r.options.SendRate, r.options.SendBurst)
		r.limiters[conn] = limiter
	}
	r.mu.Unlock()
	return limiter.Allow()
}

type delivery struct {
	subscriber contract.Subscriber
	events     []event.DomainEvent
}

func (r *Router) fanout(ctx context.Context, message domain.Message) {
	participants := []domain.Identity{message.From}
	if message.To != message.From {
		participants = append(participants, message.To)
	}

	var deliveries []delivery
	for _, identity := range participants {
		subscribers := r.registry.Lookup(identity)
		if len(subscribers) == 0 {
			continue
		}
		events := []event.DomainEvent{event.MessageAppended{Message: message}}
		summaries, err := r.store.ListForIdentity(identity)
		if err != nil {
			r.log.Error("Cannot refresh conversations", "identity", identity, "error", err)
		} else {
			events = append(events, event.ConversationsRefreshed{Owner: identity, Conversations: summaries})
		}
		for _, s := range subscribers {
			deliveries = append(deliveries, delivery{subscriber: s, events: events})
		}
	}

	var g errgroup.Group
	for _, d := range deliveries {
		g.Go(func() error {
			r.deliver(ctx, d)
			return nil
		})
	}
	_ = g.Wait()
}

// deliver pushes events in order to one connection, stopping at the first failure.
func (r *Router) deliver(ctx context.Context, d delivery) {
	for _, e := range d.events {
		deliveryCtx, cancel := context.WithTimeout(ctx, r.options.DeliveryTimeout)
		err := d.subscriber.Sink.Consume(deliveryCtx, e)
		cancel()
		if err == nil {
			r.options.Metrics.Delivered(string(e.EventName()))
			continue
		}
		r.log.Warn("Delivery failed, dropping connection",
			"connection_id", d.subscriber.Conn,
			"event", e.EventName(),
			"error", err)
		r.options.Metrics.DeliveryFailed(string(e.EventName()))
		r.Drop(d.subscriber)
		return
	}
}

// Drop removes a connection that cannot be delivered to anymore and closes its sink
// so that its stream ends and the client reconnects.
func (r *Router) Drop(s contract.Subscriber) {
	if closer, ok := s.Sink.(interface{ Close() }); ok {
		closer.Close()
	}
	r.HandleDisconnect(s.Conn)
}
