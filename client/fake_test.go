package client

import (
	"context"
	"duochat/domain"
	"duochat/domain/event"
	"duochat/errors"
	"duochat/wire"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

// fakeServer answers requests in memory and lets tests break the transport.
type fakeServer struct {
	mu            sync.Mutex
	dials         int
	failNext      int
	gate          chan struct{}
	ops           []wire.Op
	silent        map[wire.Op]bool
	current       *fakeTransport
	conversations []wire.Conversation
	history       []domain.Message
	seq           uint64
}

func newFakeServer() *fakeServer {
	return &fakeServer{silent: make(map[wire.Op]bool)}
}

func (s *fakeServer) Dial(ctx context.Context) (Transport, error) {
	s.mu.Lock()
	s.dials++
	gate := s.gate
	fail := s.failNext > 0
	if fail {
		s.failNext--
	}
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, fmt.Errorf("connection refused")
	}
	t := &fakeTransport{server: s, frames: make(chan *wire.Frame, 64), closed: make(chan struct{})}
	s.mu.Lock()
	s.current = t
	s.mu.Unlock()
	return t, nil
}

func (s *fakeServer) dialCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dials
}

func (s *fakeServer) count(op wire.Op) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, o := range s.ops {
		if o == op {
			n++
		}
	}
	return n
}

func (s *fakeServer) set(fn func(s *fakeServer)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

// drop breaks the current transport as a network failure would.
func (s *fakeServer) drop() {
	s.mu.Lock()
	t := s.current
	s.mu.Unlock()
	_ = t.Close()
}

func (s *fakeServer) push(e event.DomainEvent) {
	frame, err := wire.EventFrame(e)
	if err != nil {
		panic(err)
	}
	s.mu.Lock()
	t := s.current
	s.mu.Unlock()
	t.deliver(frame)
}

func (s *fakeServer) answer(req *wire.Request) (*wire.Frame, *wire.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = append(s.ops, req.Op)
	if s.silent[req.Op] {
		return nil, nil
	}

	var payload any
	var pushed *wire.Frame
	switch req.Op {
	case wire.OpRegister:
		r, _ := wire.Decode[wire.RegisterRequest](req.Payload)
		payload = wire.RegisterResponse{Success: true, Identity: r.Identity, DisplayName: r.DisplayName, ConnectedAt: time.Now().UTC()}
	case wire.OpCheckIdentity:
		payload = wire.CheckIdentityResponse{Success: true}
	case wire.OpListConversations:
		payload = append([]wire.Conversation{}, s.conversations...)
	case wire.OpGetMessages:
		payload = wire.GetMessagesResponse{Messages: append([]domain.Message{}, s.history...)}
	case wire.OpSendMessage:
		r, _ := wire.Decode[wire.SendMessageRequest](req.Payload)
		if domain.IsBlank(r.Text) {
			return wire.Fail(req.ID, req.Op, errors.ErrEmptyMessage), nil
		}
		s.seq++
		m := domain.Message{ID: uuid.New(), Seq: s.seq, From: r.FromIdentity, To: r.ToIdentity, Text: r.Text, SentAt: time.Now().UTC()}
		s.history = append(s.history, m)
		pushed, _ = wire.EventFrame(event.MessageAppended{Message: m})
		payload = wire.SendMessageResponse{Success: true, Message: &m}
	default:
		return wire.Fail(req.ID, req.Op, errors.ErrUnknownOperation), nil
	}
	ack, _ := wire.Ack(req.ID, req.Op, payload)
	return pushed, ack
}

type fakeTransport struct {
	server *fakeServer
	frames chan *wire.Frame
	closed chan struct{}
	once   sync.Once
}

func (t *fakeTransport) Send(req *wire.Request) error {
	select {
	case <-t.closed:
		return io.ErrClosedPipe
	default:
	}
	pushed, ack := t.server.answer(req)
	if pushed != nil {
		t.deliver(pushed)
	}
	if ack != nil {
		t.deliver(ack)
	}
	return nil
}

func (t *fakeTransport) deliver(f *wire.Frame) {
	select {
	case t.frames <- f:
	case <-t.closed:
	}
}

func (t *fakeTransport) Recv() (*wire.Frame, error) {
	select {
	case f := <-t.frames:
		return f, nil
	case <-t.closed:
		return nil, io.EOF
	}
}

func (t *fakeTransport) Close() error {
	t.once.Do(func() { close(t.closed) })
	return nil
}

type sleepRecorder struct {
	mu  sync.Mutex
	got []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.got = append(r.got, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *sleepRecorder) delays() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.got...)
}

func mustJSON(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}
