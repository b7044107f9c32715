//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=../mocks/mock_store.go -package=mocks
package contract

import (
	"chat-relay/domain"
	"context"
)

// Store is the persistence port of the relay.
// Implementations serialise every call and report domain failures with the
// sentinel errors of package errors.
type Store interface {
	RegisterAccount(ctx context.Context, username, credential string) error
	Credential(ctx context.Context, username string) (string, error)
	SetOnline(ctx context.Context, username string, online bool) error
	ListUsers(ctx context.Context) ([]string, error)
	UserExists(ctx context.Context, username string) (bool, error)

	CreateGroup(ctx context.Context, name, admin string) error
	Group(ctx context.Context, name string) (domain.Group, error)
	GroupsOf(ctx context.Context, username string) ([]string, error)
	AddMember(ctx context.Context, group, username string) error
	RemoveMember(ctx context.Context, group, username string) error
	Members(ctx context.Context, group string) ([]string, error)
	IsAdmin(ctx context.Context, group, username string) (bool, error)
	AdminOf(ctx context.Context, group string) (string, error)
	MemberCount(ctx context.Context, group string) (int, error)

	AppendDirectMessage(ctx context.Context, record domain.Record) error
	AppendGroupMessage(ctx context.Context, record domain.Record) error
	HistoryDirect(ctx context.Context, a, b string, limit int) ([]domain.Record, error)
	HistoryGroup(ctx context.Context, group string, limit int) ([]domain.Record, error)

	Close() error
}
