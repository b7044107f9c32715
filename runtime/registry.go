package runtime

import (
	"chat-relay/contract"
	"chat-relay/protocol"
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/samber/lo"
)

// Registry maps each logged-in username to its single live session.
// Delivery only enqueues on the peer while the lock is held; peers never
// write to the network from Send, so the lock is never held across I/O.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]contract.Peer // username -> session
	store    membersReader
	log      *slog.Logger
}

type membersReader interface {
	Members(ctx context.Context, group string) ([]string, error)
}

var _ contract.IRegistry = (*Registry)(nil)

func NewRegistry(log *slog.Logger, store membersReader) *Registry {
	return &Registry{
		sessions: make(map[string]contract.Peer),
		store:    store,
		log:      log,
	}
}

// Bind makes peer the session of username and returns the one it replaced, if any.
func (r *Registry) Bind(username string, peer contract.Peer) contract.Peer {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous := r.sessions[username]
	r.sessions[username] = peer
	if previous == peer {
		return nil
	}
	return previous
}

// Unbind removes the binding only while peer still owns it, so an evicted
// session closing late cannot drop its replacement.
func (r *Registry) Unbind(username string, peer contract.Peer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.sessions[username]; !ok || current != peer {
		return false
	}
	delete(r.sessions, username)
	return true
}

func (r *Registry) Lookup(username string) (contract.Peer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	peer, ok := r.sessions[username]
	return peer, ok
}

// Online lists bound usernames in lexical order.
func (r *Registry) Online() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := lo.Keys(r.sessions)
	slices.Sort(names)
	return names
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Deliver enqueues env on the session of username. It reports false when
// the user is not bound or its queue refused the envelope.
func (r *Registry) Deliver(username string, env protocol.Envelope) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	peer, ok := r.sessions[username]
	if !ok {
		return false
	}
	return r.send(username, peer, env)
}

// MembersOf returns the bound sessions of the members of group.
// Membership comes from the store, read before the registry lock is taken.
// A peer unbound after the call refuses delivery with ErrSessionClosed.
func (r *Registry) MembersOf(ctx context.Context, group string) ([]contract.Peer, error) {
	members, err := r.store.Members(ctx, group)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return lo.FilterMap(members, func(username string, _ int) (contract.Peer, bool) {
		peer, ok := r.sessions[username]
		return peer, ok
	}), nil
}

func (r *Registry) send(username string, peer contract.Peer, env protocol.Envelope) bool {
	if err := peer.Send(env); err != nil {
		r.log.Debug("Delivery refused", "username", username, "type", env.Type.String(), "error", err)
		return false
	}
	return true
}
