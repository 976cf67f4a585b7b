package client

import (
	"context"
	"duochat/domain"
	"duochat/errors"
	"duochat/wire"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
)

const refreshTimeout = 10 * time.Second

// Inbox is the local view of one identity: its conversation list and the
// currently open thread. Pushed events are applied idempotently and the
// whole view is fetched again after every recovery.
type Inbox struct {
	client *Client
	log    *slog.Logger
	owner  domain.Identity

	mu            sync.Mutex
	conversations []wire.Conversation
	peer          domain.Identity
	thread        []domain.Message
	onChange      func()

	cancel context.CancelFunc
	done   chan struct{}
	unsubs []func()
}

// NewInbox starts following owner's events on c. Close releases it.
func NewInbox(c *Client, log *slog.Logger, owner domain.Identity) *Inbox {
	ctx, cancel := context.WithCancel(context.Background())
	i := &Inbox{
		client: c,
		log:    log,
		owner:  owner,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	i.unsubs = append(i.unsubs,
		c.OnMessage(i.applyMessage),
		c.OnConversations(owner, i.applyConversations),
	)
	states, stop := c.Watch()
	i.unsubs = append(i.unsubs, stop)
	go i.follow(ctx, states)
	return i
}

// OnChange is called after every local change, outside the inbox lock.
func (i *Inbox) OnChange(fn func()) {
	i.mu.Lock()
	i.onChange = fn
	i.mu.Unlock()
}

// CanSend is false unless the connection is up.
func (i *Inbox) CanSend() bool {
	return i.client.State() == Connected
}

// Offline reports a connection being retried, as opposed to a refused send.
func (i *Inbox) Offline() bool {
	return i.client.State() == Reconnecting
}

func (i *Inbox) Conversations() []wire.Conversation {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]wire.Conversation(nil), i.conversations...)
}

func (i *Inbox) Thread() (domain.Identity, []domain.Message) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.peer, append([]domain.Message(nil), i.thread...)
}

// Refresh fetches the conversation list and the open thread again.
func (i *Inbox) Refresh(ctx context.Context) error {
	conversations, err := i.client.ListConversations(ctx, i.owner)
	if err != nil {
		return err
	}
	i.applyConversations(conversations)

	i.mu.Lock()
	peer := i.peer
	i.mu.Unlock()
	if peer == "" {
		return nil
	}
	return i.Open(ctx, peer)
}

// Open loads the thread with peer and makes it the open one.
func (i *Inbox) Open(ctx context.Context, peer domain.Identity) error {
	resp, err := i.client.GetMessages(ctx, i.owner, peer)
	if err != nil {
		return err
	}
	i.mu.Lock()
	i.peer = peer
	i.thread = nil
	i.thread = append(i.thread, resp.Messages...)
	i.mu.Unlock()
	i.changed()
	return nil
}

// Send sends text to the open thread.
func (i *Inbox) Send(ctx context.Context, text string) (domain.Message, error) {
	if !i.CanSend() {
		return domain.Message{}, errors.ErrNotConnected
	}
	i.mu.Lock()
	peer := i.peer
	i.mu.Unlock()
	if peer == "" {
		return domain.Message{}, errors.ErrInvalidRequest
	}
	m, err := i.client.SendMessage(ctx, i.owner, peer, text)
	if err != nil {
		return domain.Message{}, err
	}
	i.applyMessage(m)
	return m, nil
}

func (i *Inbox) Close() {
	i.cancel()
	<-i.done
	for _, unsub := range i.unsubs {
		unsub()
	}
}

func (i *Inbox) follow(ctx context.Context, states <-chan State) {
	defer close(i.done)
	previous := Disconnected
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-states:
			if !ok {
				return
			}
			if s == Connected && previous == Reconnecting {
				refreshCtx, cancel := context.WithTimeout(ctx, refreshTimeout)
				if err := i.Refresh(refreshCtx); err != nil {
					i.log.Warn("Inbox refresh after recovery failed", "identity", i.owner, "error", err)
				}
				cancel()
			}
			previous = s
		}
	}
}

// applyMessage inserts m in the open thread, in seq order. Messages of other
// conversations and messages already in the thread are ignored.
func (i *Inbox) applyMessage(m domain.Message) {
	i.mu.Lock()
	if i.peer == "" || domain.Key(m.From, m.To) != domain.Key(i.owner, i.peer) {
		i.mu.Unlock()
		return
	}
	at := sort.Search(len(i.thread), func(n int) bool { return i.thread[n].Seq >= m.Seq })
	for n := at; n < len(i.thread) && i.thread[n].Seq == m.Seq; n++ {
		if i.thread[n].ID == m.ID {
			i.mu.Unlock()
			return
		}
	}
	i.thread = slices.Insert(i.thread, at, m)
	i.mu.Unlock()
	i.changed()
}

func (i *Inbox) applyConversations(conversations []wire.Conversation) {
	i.mu.Lock()
	i.conversations = lo.Filter(conversations, func(c wire.Conversation, _ int) bool {
		return c.PeerIdentity.Valid()
	})
	i.mu.Unlock()
	i.changed()
}

func (i *Inbox) changed() {
	i.mu.Lock()
	fn := i.onChange
	i.mu.Unlock()
	if fn != nil {
		fn()
	}
}
