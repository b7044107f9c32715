// Package storetest holds the behavioural suite every contract.Store
// implementation must pass.
package storetest

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) contract.Store

var base = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func Run(t *testing.T, newStore Factory) {
	t.Run("Accounts", func(t *testing.T) { testAccounts(t, newStore) })
	t.Run("CreateGroup", func(t *testing.T) { testCreateGroup(t, newStore) })
	t.Run("AdmissionCap", func(t *testing.T) { testAdmissionCap(t, newStore) })
	t.Run("ConcurrentAdmission", func(t *testing.T) { testConcurrentAdmission(t, newStore) })
	t.Run("RemoveMember", func(t *testing.T) { testRemoveMember(t, newStore) })
	t.Run("DirectHistory", func(t *testing.T) { testDirectHistory(t, newStore) })
	t.Run("GroupHistory", func(t *testing.T) { testGroupHistory(t, newStore) })
	t.Run("LargeContent", func(t *testing.T) { testLargeContent(t, newStore) })
}

func open(t *testing.T, newStore Factory) contract.Store {
	t.Helper()
	store := newStore(t)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func register(t *testing.T, store contract.Store, usernames ...string) {
	t.Helper()
	for _, u := range usernames {
		require.NoError(t, store.RegisterAccount(context.Background(), u, "hash-"+u))
	}
}

func testAccounts(t *testing.T, newStore Factory) {
	req := require.New(t)
	ctx := context.Background()
	store := open(t, newStore)

	// Given two registered users
	register(t, store, "bob", "alice")

	// Then both are listed in lexical order
	users, err := store.ListUsers(ctx)
	req.NoError(err)
	req.Equal([]string{"alice", "bob"}, users)

	credential, err := store.Credential(ctx, "alice")
	req.NoError(err)
	req.Equal("hash-alice", credential)

	found, err := store.UserExists(ctx, "alice")
	req.NoError(err)
	req.True(found)
	found, err = store.UserExists(ctx, "carol")
	req.NoError(err)
	req.False(found)

	// A duplicate is refused and the first credential kept
	err = store.RegisterAccount(ctx, "alice", "other")
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
	credential, err = store.Credential(ctx, "alice")
	req.NoError(err)
	req.Equal("hash-alice", credential)

	_, err = store.Credential(ctx, "carol")
	req.ErrorIs(err, errors.ErrUserNotFound)

	req.NoError(store.SetOnline(ctx, "alice", true))
	req.NoError(store.SetOnline(ctx, "alice", false))
	req.ErrorIs(store.SetOnline(ctx, "carol", true), errors.ErrUserNotFound)
}

func testCreateGroup(t *testing.T, newStore Factory) {
	req := require.New(t)
	ctx := context.Background()
	store := open(t, newStore)
	register(t, store, "alice", "bob")

	// When alice creates a group
	req.NoError(store.CreateGroup(ctx, "team", "alice"))

	// Then she is its admin and only member
	group, err := store.Group(ctx, "team")
	req.NoError(err)
	req.Equal("team", group.Name)
	req.Equal("alice", group.Admin)
	req.Equal([]string{"alice"}, group.Members)
	req.False(group.CreatedAt.IsZero())

	admin, err := store.AdminOf(ctx, "team")
	req.NoError(err)
	req.Equal("alice", admin)

	isAdmin, err := store.IsAdmin(ctx, "team", "alice")
	req.NoError(err)
	req.True(isAdmin)
	isAdmin, err = store.IsAdmin(ctx, "team", "bob")
	req.NoError(err)
	req.False(isAdmin)

	groups, err := store.GroupsOf(ctx, "alice")
	req.NoError(err)
	req.Equal([]string{"team"}, groups)
	groups, err = store.GroupsOf(ctx, "bob")
	req.NoError(err)
	req.Empty(groups)

	// A second group with the same name is refused
	req.ErrorIs(store.CreateGroup(ctx, "team", "bob"), errors.ErrGroupAlreadyExists)
	admin, err = store.AdminOf(ctx, "team")
	req.NoError(err)
	req.Equal("alice", admin)

	// Unknown groups
	_, err = store.Group(ctx, "ghost")
	req.ErrorIs(err, errors.ErrGroupNotFound)
	_, err = store.AdminOf(ctx, "ghost")
	req.ErrorIs(err, errors.ErrGroupNotFound)
	_, err = store.Members(ctx, "ghost")
	req.ErrorIs(err, errors.ErrGroupNotFound)
	_, err = store.MemberCount(ctx, "ghost")
	req.ErrorIs(err, errors.ErrGroupNotFound)
}

func testAdmissionCap(t *testing.T, newStore Factory) {
	req := require.New(t)
	ctx := context.Background()
	store := open(t, newStore)

	users := make([]string, domain.MaxGroupMembers+1)
	for i := range users {
		users[i] = fmt.Sprintf("u%02d", i)
	}
	register(t, store, users...)
	req.NoError(store.CreateGroup(ctx, "team", users[0]))

	// Given the group filled up to the cap
	for _, u := range users[1:domain.MaxGroupMembers] {
		req.NoError(store.AddMember(ctx, "team", u))
	}
	count, err := store.MemberCount(ctx, "team")
	req.NoError(err)
	req.Equal(domain.MaxGroupMembers, count)

	// When one more user joins, then it is refused
	req.ErrorIs(store.AddMember(ctx, "team", users[domain.MaxGroupMembers]), errors.ErrGroupFull)

	// Re-adding an existing member is still fine
	req.NoError(store.AddMember(ctx, "team", users[3]))

	members, err := store.Members(ctx, "team")
	req.NoError(err)
	req.Equal(users[:domain.MaxGroupMembers], members)

	req.ErrorIs(store.AddMember(ctx, "ghost", users[1]), errors.ErrGroupNotFound)
}

func testConcurrentAdmission(t *testing.T, newStore Factory) {
	req := require.New(t)
	ctx := context.Background()
	store := open(t, newStore)

	users := make([]string, 3*domain.MaxGroupMembers)
	for i := range users {
		users[i] = fmt.Sprintf("u%02d", i)
	}
	register(t, store, users...)
	req.NoError(store.CreateGroup(ctx, "team", users[0]))

	// When everyone joins at once
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
	)
	for _, u := range users[1:] {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			if err := store.AddMember(ctx, "team", u); err == nil {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}(u)
	}
	wg.Wait()

	// Then the cap holds exactly
	req.Equal(domain.MaxGroupMembers-1, admitted)
	count, err := store.MemberCount(ctx, "team")
	req.NoError(err)
	req.Equal(domain.MaxGroupMembers, count)
}

func testRemoveMember(t *testing.T, newStore Factory) {
	req := require.New(t)
	ctx := context.Background()
	store := open(t, newStore)
	register(t, store, "alice", "bob", "carol")
	req.NoError(store.CreateGroup(ctx, "team", "alice"))
	req.NoError(store.AddMember(ctx, "team", "bob"))

	// The admin can never be removed
	req.ErrorIs(store.RemoveMember(ctx, "team", "alice"), errors.ErrAdminCannotLeave)

	// Removing a non member is reported
	req.ErrorIs(store.RemoveMember(ctx, "team", "carol"), errors.ErrNotGroupMember)
	req.ErrorIs(store.RemoveMember(ctx, "ghost", "bob"), errors.ErrGroupNotFound)

	// When bob is removed
	req.NoError(store.RemoveMember(ctx, "team", "bob"))

	// Then he is gone on both sides
	members, err := store.Members(ctx, "team")
	req.NoError(err)
	req.Equal([]string{"alice"}, members)
	groups, err := store.GroupsOf(ctx, "bob")
	req.NoError(err)
	req.Empty(groups)
}

func testDirectHistory(t *testing.T, newStore Factory) {
	req := require.New(t)
	ctx := context.Background()
	store := open(t, newStore)
	register(t, store, "alice", "bob", "carol")

	// Given five messages between alice and bob, and one with carol
	var sent []domain.Record
	for i := 0; i < 5; i++ {
		from, to := "alice", "bob"
		if i%2 == 1 {
			from, to = to, from
		}
		r := domain.NewRecord(from, to, fmt.Sprintf("m%d", i), base.Add(time.Duration(i)*time.Second))
		req.NoError(store.AppendDirectMessage(ctx, r))
		sent = append(sent, r)
	}
	req.NoError(store.AppendDirectMessage(ctx, domain.NewRecord("alice", "carol", "other", base)))

	// Then both sides see the same conversation oldest first
	history, err := store.HistoryDirect(ctx, "alice", "bob", 100)
	req.NoError(err)
	req.Equal(sent, history)
	history, err = store.HistoryDirect(ctx, "bob", "alice", 100)
	req.NoError(err)
	req.Equal(sent, history)

	// And a limit keeps the most recent records
	history, err = store.HistoryDirect(ctx, "alice", "bob", 2)
	req.NoError(err)
	req.Equal(sent[3:], history)

	// A limit <= 0 is unbounded
	history, err = store.HistoryDirect(ctx, "alice", "bob", 0)
	req.NoError(err)
	req.Len(history, 5)

	history, err = store.HistoryDirect(ctx, "bob", "carol", 100)
	req.NoError(err)
	req.Empty(history)
}

func testGroupHistory(t *testing.T, newStore Factory) {
	req := require.New(t)
	ctx := context.Background()
	store := open(t, newStore)
	register(t, store, "alice", "bob")
	req.NoError(store.CreateGroup(ctx, "team", "alice"))
	req.NoError(store.CreateGroup(ctx, "team2", "bob"))

	first := domain.NewRecord("alice", "team", "hello", base)
	second := domain.NewRecord("alice", "team", "again", base.Add(time.Millisecond))
	req.NoError(store.AppendGroupMessage(ctx, second))
	req.NoError(store.AppendGroupMessage(ctx, first))
	req.NoError(store.AppendGroupMessage(ctx, domain.NewRecord("bob", "team2", "elsewhere", base)))

	// Insertion order does not matter, timestamps do
	history, err := store.HistoryGroup(ctx, "team", 100)
	req.NoError(err)
	req.Equal([]domain.Record{first, second}, history)

	err = store.AppendGroupMessage(ctx, domain.NewRecord("alice", "ghost", "x", base))
	req.ErrorIs(err, errors.ErrGroupNotFound)
}

func testLargeContent(t *testing.T, newStore Factory) {
	req := require.New(t)
	ctx := context.Background()
	store := open(t, newStore)
	register(t, store, "alice", "bob")

	r := domain.NewRecord("alice", "bob", strings.Repeat("lorem ipsum ", 500), base)
	req.NoError(store.AppendDirectMessage(ctx, r))

	history, err := store.HistoryDirect(ctx, "bob", "alice", 10)
	req.NoError(err)
	req.Equal([]domain.Record{r}, history)
}
