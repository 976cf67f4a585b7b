// Package client owns one logical connection to the chat server.
//
// The connection is an explicit state machine:
//
//	Disconnected -> Connecting -> Connected -> Reconnecting -> Connected ...
//	any state -> Closed (Stop)
//
// Concurrent Connect calls share one attempt. A dropped transport is
// retried at staged delays until it comes back or Stop is called, and the
// last registered identity is registered again once per recovery.
// Event handlers live on the client, not on a transport, so they survive
// reconnections.
package client

import (
	"context"
	"duochat/domain/event"
	"duochat/errors"
	"duochat/wire"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultDelays are the waits before each reconnection attempt, the last one repeats forever.
var DefaultDelays = []time.Duration{0, 2 * time.Second, 10 * time.Second, 30 * time.Second}

const (
	watchBuffer   = 16
	replayTimeout = 10 * time.Second
	connectFlight = "connect"
)

type Options struct {
	// Delays overrides DefaultDelays.
	Delays []time.Duration
	// Sleep waits d or until ctx is done. Tests replace it to observe delays.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Handler receives the raw payload of a pushed event.
type Handler func(payload json.RawMessage)

type result struct {
	frame *wire.Frame
	err   error
}

type Client struct {
	dialer Dialer
	log    *slog.Logger
	delays []time.Duration
	sleep  func(ctx context.Context, d time.Duration) error
	flight singleflight.Group

	// sendMu serializes writes on the current transport.
	sendMu sync.Mutex

	mu           sync.Mutex
	state        State
	lifetime     context.Context
	cancel       context.CancelFunc
	transport    Transport
	generation   uint64
	recovered    chan struct{}
	nextID       uint64
	pending      map[uint64]chan result
	registration *wire.RegisterRequest
	watchers     map[int]chan State
	handlers     map[event.Name]map[int]Handler
	nextListener int
}

func New(dialer Dialer, log *slog.Logger, options Options) *Client {
	delays := options.Delays
	if len(delays) == 0 {
		delays = DefaultDelays
	}
	sleep := options.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	return &Client{
		dialer:   dialer,
		log:      log,
		delays:   delays,
		sleep:    sleep,
		state:    Disconnected,
		pending:  make(map[uint64]chan result),
		watchers: make(map[int]chan State),
		handlers: make(map[event.Name]map[int]Handler),
	}
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Watch streams state transitions, starting with the current state.
// A slow reader loses intermediate states, never the latest one.
// The returned func stops the stream and closes the channel.
func (c *Client) Watch() (<-chan State, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextListener
	c.nextListener++
	ch := make(chan State, watchBuffer)
	ch <- c.state
	c.watchers[id] = ch
	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.watchers[id]; ok {
			delete(c.watchers, id)
			close(ch)
		}
	}
}

// On attaches a handler to a pushed event, it stays attached across reconnections.
func (c *Client) On(name event.Name, h Handler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextListener
	c.nextListener++
	if c.handlers[name] == nil {
		c.handlers[name] = make(map[int]Handler)
	}
	c.handlers[name][id] = h
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.handlers[name], id)
	}
}

// Connect returns once the client is Connected, or with the error of the
// attempt it joined. While Reconnecting it waits for the recovery.
func (c *Client) Connect(ctx context.Context) error {
	ch := c.flight.DoChan(connectFlight, func() (any, error) {
		return nil, c.connect()
	})
	select {
	case r := <-ch:
		return r.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) connect() error {
	c.mu.Lock()
	switch c.state {
	case Connected:
		c.mu.Unlock()
		return nil
	case Reconnecting:
		recovered := c.recovered
		c.mu.Unlock()
		<-recovered
		if c.State() != Connected {
			return errors.ErrClosed
		}
		return nil
	}

	if c.lifetime == nil || c.lifetime.Err() != nil {
		c.lifetime, c.cancel = context.WithCancel(context.Background())
	}
	lifetime := c.lifetime
	c.setState(Connecting)
	c.mu.Unlock()

	t, err := c.dialer.Dial(lifetime)

	c.mu.Lock()
	if lifetime.Err() != nil || c.state != Connecting {
		c.mu.Unlock()
		if t != nil {
			_ = t.Close()
		}
		return errors.ErrClosed
	}
	if err != nil {
		c.setState(Disconnected)
		c.mu.Unlock()
		c.log.Warn("Connection failed", "error", err)
		return fmt.Errorf("%w: %v", errors.ErrConnectFailed, err)
	}
	c.attach(t)
	c.mu.Unlock()

	c.log.Info("Connected")
	c.replayRegistration(lifetime)
	return nil
}

// Stop closes the connection for good. Pending calls fail with ErrClosed and
// a later Connect starts from scratch, registration included.
func (c *Client) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Closed {
		return
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.detach(errors.ErrClosed)
	c.registration = nil
	c.closeRecovered()
	c.setState(Closed)
	c.log.Info("Client stopped")
}

// Invoke sends one request and waits for its ack, decoding the payload into resp.
// It fails fast with ErrNotConnected unless Connected. A refused request
// returns the matching sentinel error.
func (c *Client) Invoke(ctx context.Context, op wire.Op, req, resp any) error {
	raw, err := json.Marshal(req)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.state != Connected {
		c.mu.Unlock()
		return errors.ErrNotConnected
	}
	t := c.transport
	c.nextID++
	id := c.nextID
	ch := make(chan result, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	c.sendMu.Lock()
	err = t.Send(&wire.Request{ID: id, Op: op, Payload: raw})
	c.sendMu.Unlock()
	if err != nil {
		c.forget(id)
		return fmt.Errorf("%w: %v", errors.ErrNotConnected, err)
	}

	select {
	case r := <-ch:
		if r.err != nil {
			return r.err
		}
		if !r.frame.OK {
			return r.frame.Error.Err()
		}
		if resp == nil || len(r.frame.Payload) == 0 {
			return nil
		}
		return json.Unmarshal(r.frame.Payload, resp)
	case <-ctx.Done():
		c.forget(id)
		return ctx.Err()
	}
}

func (c *Client) forget(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// attach must be called with mu held.
func (c *Client) attach(t Transport) {
	c.transport = t
	c.generation++
	c.closeRecovered()
	c.setState(Connected)
	go c.read(t, c.generation)
}

// detach must be called with mu held. Pending calls fail with err.
func (c *Client) detach(err error) {
	if c.transport != nil {
		_ = c.transport.Close()
		c.transport = nil
	}
	for id, ch := range c.pending {
		ch <- result{err: err}
		delete(c.pending, id)
	}
}

func (c *Client) closeRecovered() {
	if c.recovered != nil {
		close(c.recovered)
		c.recovered = nil
	}
}

// setState must be called with mu held.
func (c *Client) setState(s State) {
	if c.state == s {
		return
	}
	c.log.Debug("Connection state changed", "from", c.state, "to", s)
	c.state = s
	for _, ch := range c.watchers {
		select {
		case ch <- s:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- s
		}
	}
}

func (c *Client) read(t Transport, generation uint64) {
	for {
		frame, err := t.Recv()
		if err != nil {
			c.lost(generation, err)
			return
		}
		switch frame.Kind {
		case wire.KindAck:
			c.mu.Lock()
			ch, ok := c.pending[frame.ID]
			delete(c.pending, frame.ID)
			c.mu.Unlock()
			if ok {
				ch <- result{frame: frame}
			}
		case wire.KindEvent:
			c.emit(frame)
		}
	}
}

func (c *Client) emit(frame *wire.Frame) {
	c.mu.Lock()
	handlers := make([]Handler, 0, len(c.handlers[frame.Event]))
	for _, h := range c.handlers[frame.Event] {
		handlers = append(handlers, h)
	}
	c.mu.Unlock()
	for _, h := range handlers {
		h(frame.Payload)
	}
}

// lost reacts to the end of a transport. Stale transports and Stop are ignored.
func (c *Client) lost(generation uint64, cause error) {
	c.mu.Lock()
	if generation != c.generation || c.state != Connected {
		c.mu.Unlock()
		return
	}
	c.detach(errors.ErrNotConnected)
	c.recovered = make(chan struct{})
	c.setState(Reconnecting)
	lifetime := c.lifetime
	c.mu.Unlock()

	c.log.Warn("Connection lost, reconnecting", "error", cause)
	go c.reconnect(lifetime)
}

func (c *Client) reconnect(lifetime context.Context) {
	for attempt := 0; ; attempt++ {
		delay := c.delay(attempt)
		if err := c.sleep(lifetime, delay); err != nil {
			return
		}
		t, err := c.dialer.Dial(lifetime)
		if err != nil {
			c.log.Warn("Reconnection attempt failed", "attempt", attempt+1, "next_delay", c.delay(attempt+1), "error", err)
			continue
		}

		c.mu.Lock()
		if lifetime.Err() != nil || c.state != Reconnecting {
			c.mu.Unlock()
			_ = t.Close()
			return
		}
		c.attach(t)
		c.mu.Unlock()

		c.log.Info("Reconnected", "attempts", attempt+1)
		c.replayRegistration(lifetime)
		return
	}
}

func (c *Client) delay(attempt int) time.Duration {
	if attempt >= len(c.delays) {
		return c.delays[len(c.delays)-1]
	}
	return c.delays[attempt]
}

// replayRegistration registers the remembered identity again, once.
func (c *Client) replayRegistration(lifetime context.Context) {
	c.mu.Lock()
	registration := c.registration
	c.mu.Unlock()
	if registration == nil {
		return
	}
	ctx, cancel := context.WithTimeout(lifetime, replayTimeout)
	defer cancel()
	var resp wire.RegisterResponse
	if err := c.Invoke(ctx, wire.OpRegister, registration, &resp); err != nil {
		c.log.Warn("Registration replay failed", "identity", registration.Identity, "error", err)
		return
	}
	c.log.Info("Registration replayed", "identity", registration.Identity)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
