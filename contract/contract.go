//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/protocol"
	"context"
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

// Peer is the delivery side of a connected session.
// Send must never block on the network: it only enqueues.
type Peer interface {
	ID() string
	Send(env protocol.Envelope) error
	Close()
}

type IRegistry interface {
	Bind(username string, peer Peer) Peer
	Unbind(username string, peer Peer) bool
	Lookup(username string) (Peer, bool)
	Online() []string
	Count() int
	Deliver(username string, env protocol.Envelope) bool
	MembersOf(ctx context.Context, group string) ([]Peer, error)
}
