//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"duochat/domain"
	"duochat/domain/event"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives the events pushed to one live connection.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// Subscriber is a live connection handle with the sink delivering to it.
type Subscriber struct {
	Conn domain.ConnectionID
	Sink EventSink
}

type IRegistry interface {
	Register(identity domain.Identity, displayName string, conn domain.ConnectionID, sink EventSink) (domain.UserInfo, error)
	Lookup(identity domain.Identity) []Subscriber
	RemoveConnection(conn domain.ConnectionID) (domain.Identity, bool)
	ListOnline() []domain.UserInfo
	Get(identity domain.Identity) (domain.UserInfo, bool)
	All() []Subscriber
}

type IConversationStore interface {
	GetOrCreate(a, b domain.Identity) (domain.Conversation, error)
	Append(from, to domain.Identity, text string) (domain.Message, error)
	History(a, b domain.Identity) ([]domain.Message, error)
	ListForIdentity(identity domain.Identity) ([]domain.ConversationSummary, error)
}

// PresenceNotifier is told whenever the online list may have changed.
// Notify must never block.
type PresenceNotifier interface {
	Notify()
}
