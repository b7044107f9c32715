package server

import (
	"chat-relay/auth"
	"chat-relay/domain"
	chaterrors "chat-relay/errors"
	"chat-relay/mocks"
	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/protocol"
	"chat-relay/runtime"
	"chat-relay/services"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var (
	testParams = auth.Params{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
	errDisk    = errors.New("disk unavailable")
)

type fakeCaller struct {
	mu       sync.Mutex
	id       string
	username string
	sent     []protocol.Envelope
	closed   bool
}

func newFakeCaller(id, username string) *fakeCaller {
	return &fakeCaller{id: id, username: username}
}

func (f *fakeCaller) ID() string { return f.id }

func (f *fakeCaller) Send(env protocol.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return chaterrors.ErrSessionClosed
	}
	f.sent = append(f.sent, env)
	return nil
}

func (f *fakeCaller) Reply(env protocol.Envelope) error { return f.Send(env) }

func (f *fakeCaller) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeCaller) Username() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.username
}

func (f *fakeCaller) SetUsername(username string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.username = username
}

func (f *fakeCaller) Sent() []protocol.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]protocol.Envelope(nil), f.sent...)
}

func (f *fakeCaller) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type routerFixture struct {
	router   *Router
	store    *mocks.MockStore
	registry *runtime.Registry
	metrics  *observability.Metrics
}

func newRouterFixture(t *testing.T) routerFixture {
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	store := mocks.NewMockStore(ctrl)
	registry := runtime.NewRegistry(log, store)
	metrics := observability.NewMetrics()
	authService := services.NewAuthService(log, store, testParams)
	return routerFixture{
		router:   NewRouter(log, store, registry, authService, nil, metrics, 0),
		store:    store,
		registry: registry,
		metrics:  metrics,
	}
}

func request(t protocol.MessageType, recipient, content string) protocol.Envelope {
	env := protocol.NewEnvelope(t)
	env.Recipient = recipient
	env.Content = content
	return env
}

func requireReply(t *testing.T, c *fakeCaller, typ protocol.MessageType, content string) {
	t.Helper()
	sent := c.Sent()
	require.Len(t, sent, 1)
	require.Equal(t, typ, sent[0].Type)
	require.Equal(t, content, sent[0].Content)
}

func TestRouter_Anonymous_Is_Rejected(t *testing.T) {
	ctx := context.Background()
	f := newRouterFixture(t)

	for _, typ := range []protocol.MessageType{
		protocol.TypeGetUsers, protocol.TypePrivateMessage, protocol.TypeGroupMessage,
		protocol.TypeCreateGroup, protocol.TypeKickMember, protocol.TypeLogout,
	} {
		t.Run(typ.String(), func(t *testing.T) {
			// Given a caller that never logged in
			caller := newFakeCaller("s1", "")

			// When it sends a request that needs a login
			f.router.Handle(ctx, caller, request(typ, "bob", "hello"))

			// Then the store is never touched and the caller is told why
			requireReply(t, caller, protocol.TypeAuthFailure, MsgNotAuthenticated)
		})
	}
}

func TestRouter_Server_Types_Are_Unsupported(t *testing.T) {
	ctx := context.Background()
	f := newRouterFixture(t)

	for _, typ := range []protocol.MessageType{
		protocol.TypeAuthSuccess, protocol.TypeUsersList, protocol.TypeGroupCreated,
		protocol.TypeMessageHistoryResponse, protocol.TypeErrorMsg, protocol.TypeSuccessMsg,
	} {
		t.Run(typ.String(), func(t *testing.T) {
			caller := newFakeCaller("s1", "alice")
			f.router.Handle(ctx, caller, request(typ, "", ""))
			requireReply(t, caller, protocol.TypeErrorMsg, MsgUnsupported)
		})
	}
}

func TestRouter_Store_Failures_Become_Internal_Error(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		env    protocol.Envelope
		expect func(store *mocks.MockStore)
	}{
		{
			name: "get users",
			env:  request(protocol.TypeGetUsers, "", ""),
			expect: func(store *mocks.MockStore) {
				store.EXPECT().ListUsers(gomock.Any()).Return(nil, errDisk)
			},
		},
		{
			name: "get groups",
			env:  request(protocol.TypeGetGroups, "", ""),
			expect: func(store *mocks.MockStore) {
				store.EXPECT().GroupsOf(gomock.Any(), "alice").Return(nil, errDisk)
			},
		},
		{
			name: "private message lookup",
			env:  request(protocol.TypePrivateMessage, "bob", "hi"),
			expect: func(store *mocks.MockStore) {
				store.EXPECT().UserExists(gomock.Any(), "bob").Return(false, errDisk)
			},
		},
		{
			name: "private message append",
			env:  request(protocol.TypePrivateMessage, "bob", "hi"),
			expect: func(store *mocks.MockStore) {
				store.EXPECT().UserExists(gomock.Any(), "bob").Return(true, nil)
				store.EXPECT().AppendDirectMessage(gomock.Any(), gomock.Any()).Return(errDisk)
			},
		},
		{
			name: "group message",
			env:  request(protocol.TypeGroupMessage, "team", "hi"),
			expect: func(store *mocks.MockStore) {
				store.EXPECT().Group(gomock.Any(), "team").Return(domain.Group{}, errDisk)
			},
		},
		{
			name: "group message members",
			env:  request(protocol.TypeGroupMessage, "team", "hi"),
			expect: func(store *mocks.MockStore) {
				store.EXPECT().Group(gomock.Any(), "team").
					Return(domain.Group{Name: "team", Admin: "alice", Members: []string{"alice", "bob"}}, nil)
				store.EXPECT().AppendGroupMessage(gomock.Any(), gomock.Any()).Return(nil)
				store.EXPECT().Members(gomock.Any(), "team").Return(nil, errDisk)
			},
		},
		{
			name: "create group",
			env:  request(protocol.TypeCreateGroup, "", "team"),
			expect: func(store *mocks.MockStore) {
				store.EXPECT().CreateGroup(gomock.Any(), "team", "alice").Return(errDisk)
			},
		},
		{
			name: "join group",
			env:  request(protocol.TypeJoinGroup, "", "team"),
			expect: func(store *mocks.MockStore) {
				store.EXPECT().AddMember(gomock.Any(), "team", "alice").Return(errDisk)
			},
		},
		{
			name: "direct history",
			env:  request(protocol.TypeMessageHistoryRequest, "bob", ""),
			expect: func(store *mocks.MockStore) {
				store.EXPECT().HistoryDirect(gomock.Any(), "alice", "bob", domain.DefaultHistoryLimit).Return(nil, errDisk)
			},
		},
		{
			name: "leave group",
			env:  request(protocol.TypeLeaveGroup, "", "team"),
			expect: func(store *mocks.MockStore) {
				store.EXPECT().RemoveMember(gomock.Any(), "team", "alice").Return(errDisk)
			},
		},
		{
			name: "kick member",
			env:  request(protocol.TypeKickMember, "team", "bob"),
			expect: func(store *mocks.MockStore) {
				store.EXPECT().AdminOf(gomock.Any(), "team").Return("", errDisk)
			},
		},
		{
			name: "group members",
			env:  request(protocol.TypeGroupMembersRequest, "", "team"),
			expect: func(store *mocks.MockStore) {
				store.EXPECT().Group(gomock.Any(), "team").Return(domain.Group{}, errDisk)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			f := newRouterFixture(t)
			caller := newFakeCaller("s1", "alice")

			// Given a store that fails
			tt.expect(f.store)

			// When alice sends the request
			f.router.Handle(ctx, caller, tt.env)

			// Then alice gets a generic error and the failure is counted
			requireReply(t, caller, protocol.TypeErrorMsg, MsgInternal)
			req.Equal(1.0, testutil.ToFloat64(f.metrics.StoreErrors))
		})
	}
}

func TestRouter_Login_Store_Failure(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newRouterFixture(t)
	caller := newFakeCaller("s1", "")

	f.store.EXPECT().Credential(gomock.Any(), "alice").Return("", errDisk)

	f.router.Handle(ctx, caller, protocol.Envelope{Type: protocol.TypeLogin, Sender: "alice", Content: "pw"})

	requireReply(t, caller, protocol.TypeErrorMsg, MsgInternal)
	req.Empty(caller.Username())
	req.Zero(f.registry.Count())
}

func TestRouter_Login_Evicts_Previous_Session(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newRouterFixture(t)
	hash, err := testParams.Hash("pw")
	req.NoError(err)

	f.store.EXPECT().Credential(gomock.Any(), "alice").Return(hash, nil).Times(2)
	f.store.EXPECT().SetOnline(gomock.Any(), "alice", true).Return(nil).Times(2)

	first, second := newFakeCaller("s1", ""), newFakeCaller("s2", "")
	login := protocol.Envelope{Type: protocol.TypeLogin, Sender: "alice", Content: "pw"}

	// Given alice logged in on a first connection
	f.router.Handle(ctx, first, login)
	requireReply(t, first, protocol.TypeAuthSuccess, MsgLoggedIn)

	// When alice logs in again elsewhere
	f.router.Handle(ctx, second, login)

	// Then the first connection is told and closed, the second owns the binding
	requireReply(t, second, protocol.TypeAuthSuccess, MsgLoggedIn)
	sent := first.Sent()
	req.Len(sent, 2)
	req.Equal(protocol.TypeErrorMsg, sent[1].Type)
	req.Equal(MsgEvicted, sent[1].Content)
	req.True(first.IsClosed())

	peer, ok := f.registry.Lookup("alice")
	req.True(ok)
	req.Same(second, peer)
	req.Equal(1.0, testutil.ToFloat64(f.metrics.Evictions))

	// And the late disconnect of the evicted session changes nothing
	f.router.Disconnect(ctx, first)
	_, ok = f.registry.Lookup("alice")
	req.True(ok)
}

func TestRouter_Login_Marks_Online_After_Binding(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newRouterFixture(t)
	hash, err := testParams.Hash("pw")
	req.NoError(err)

	first, second := newFakeCaller("s1", ""), newFakeCaller("s2", "")
	login := protocol.Envelope{Type: protocol.TypeLogin, Sender: "alice", Content: "pw"}

	f.store.EXPECT().Credential(gomock.Any(), "alice").Return(hash, nil).Times(2)
	f.store.EXPECT().SetOnline(gomock.Any(), "alice", true).Return(nil)
	f.router.Handle(ctx, first, login)

	// Given the second login writes the flag only once it owns the binding
	f.store.EXPECT().SetOnline(gomock.Any(), "alice", true).
		DoAndReturn(func(context.Context, string, bool) error {
			peer, ok := f.registry.Lookup("alice")
			req.True(ok)
			req.Same(second, peer)
			return nil
		})
	f.router.Handle(ctx, second, login)

	// When the evicted session disconnects, it cannot clear the flag of its replacement
	f.router.Disconnect(ctx, first)
	peer, ok := f.registry.Lookup("alice")
	req.True(ok)
	req.Same(second, peer)
	requireReply(t, second, protocol.TypeAuthSuccess, MsgLoggedIn)
}

func TestRouter_Login_Online_Flag_Failure_Unbinds(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newRouterFixture(t)
	hash, err := testParams.Hash("pw")
	req.NoError(err)
	caller := newFakeCaller("s1", "")

	f.store.EXPECT().Credential(gomock.Any(), "alice").Return(hash, nil)
	f.store.EXPECT().SetOnline(gomock.Any(), "alice", true).Return(errDisk)

	f.router.Handle(ctx, caller, protocol.Envelope{Type: protocol.TypeLogin, Sender: "alice", Content: "pw"})

	requireReply(t, caller, protocol.TypeErrorMsg, MsgInternal)
	req.Empty(caller.Username())
	req.Zero(f.registry.Count())
}

func TestRouter_Login_Twice_On_Same_Session(t *testing.T) {
	ctx := context.Background()
	f := newRouterFixture(t)
	caller := newFakeCaller("s1", "alice")

	f.router.Handle(ctx, caller, protocol.Envelope{Type: protocol.TypeLogin, Sender: "bob", Content: "pw"})

	requireReply(t, caller, protocol.TypeAuthFailure, MsgAlreadyLoggedIn)
}

func TestRouter_Register_Replies(t *testing.T) {
	ctx := context.Background()

	t.Run("taken", func(t *testing.T) {
		f := newRouterFixture(t)
		caller := newFakeCaller("s1", "")
		f.store.EXPECT().UserExists(gomock.Any(), "alice").Return(true, nil)

		f.router.Handle(ctx, caller, protocol.Envelope{Type: protocol.TypeRegister, Sender: "alice", Content: "pw"})
		requireReply(t, caller, protocol.TypeAuthFailure, MsgUsernameTaken)
	})

	t.Run("invalid name", func(t *testing.T) {
		f := newRouterFixture(t)
		caller := newFakeCaller("s1", "")

		f.router.Handle(ctx, caller, protocol.Envelope{Type: protocol.TypeRegister, Sender: "a,b", Content: "pw"})
		requireReply(t, caller, protocol.TypeAuthFailure, MsgInvalidUsername)
	})

	t.Run("empty password", func(t *testing.T) {
		f := newRouterFixture(t)
		caller := newFakeCaller("s1", "")

		f.router.Handle(ctx, caller, protocol.Envelope{Type: protocol.TypeRegister, Sender: "alice"})
		requireReply(t, caller, protocol.TypeAuthFailure, MsgInvalidPassword)
	})
}

func TestRouter_Logout(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newRouterFixture(t)
	caller := newFakeCaller("s1", "alice")
	f.registry.Bind("alice", caller)

	f.store.EXPECT().SetOnline(gomock.Any(), "alice", false).Return(nil)

	f.router.Handle(ctx, caller, request(protocol.TypeLogout, "", ""))

	requireReply(t, caller, protocol.TypeSuccessMsg, MsgLoggedOut)
	req.Empty(caller.Username())
	req.Zero(f.registry.Count())
}

func TestRouter_Private_Message_Is_Stamped_And_Delivered(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newRouterFixture(t)
	alice, bob := newFakeCaller("s1", "alice"), newFakeCaller("s2", "bob")
	f.registry.Bind("bob", bob)

	var stored domain.Record
	f.store.EXPECT().UserExists(gomock.Any(), "bob").Return(true, nil)
	f.store.EXPECT().AppendDirectMessage(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, r domain.Record) error {
			stored = r
			return nil
		})

	// Given a message whose sender field lies
	env := request(protocol.TypePrivateMessage, "bob", "hello")
	env.Sender = "mallory"
	env.ID = 7

	f.router.Handle(ctx, alice, env)

	// Then the session username wins and nothing goes back to alice
	req.Empty(alice.Sent())
	req.Equal("alice", stored.Sender)
	req.Equal("bob", stored.Target)

	got := bob.Sent()
	req.Len(got, 1)
	req.Equal(protocol.TypePrivateMessage, got[0].Type)
	req.Equal("alice", got[0].Sender)
	req.Equal("hello", got[0].Content)
	req.Equal(int64(7), got[0].ID)
	req.True(got[0].Timestamp.Equal(stored.Timestamp))
}

func TestRouter_Private_Message_Unknown_Recipient(t *testing.T) {
	ctx := context.Background()
	f := newRouterFixture(t)
	caller := newFakeCaller("s1", "alice")
	f.store.EXPECT().UserExists(gomock.Any(), "ghost").Return(false, nil)

	f.router.Handle(ctx, caller, request(protocol.TypePrivateMessage, "ghost", "hi"))

	requireReply(t, caller, protocol.TypeErrorMsg, MsgUserNotFound)
}

func TestRouter_Group_Message(t *testing.T) {
	ctx := context.Background()
	group := domain.Group{Name: "team", Admin: "alice", Members: []string{"alice", "bob", "carol"}}

	t.Run("fans out to other online members", func(t *testing.T) {
		req := require.New(t)
		f := newRouterFixture(t)
		alice, bob := newFakeCaller("s1", "alice"), newFakeCaller("s2", "bob")
		f.registry.Bind("alice", alice)
		f.registry.Bind("bob", bob)

		f.store.EXPECT().Group(gomock.Any(), "team").Return(group, nil)
		f.store.EXPECT().AppendGroupMessage(gomock.Any(), gomock.Any()).Return(nil)
		f.store.EXPECT().Members(gomock.Any(), "team").Return(group.Members, nil)

		f.router.Handle(ctx, alice, request(protocol.TypeGroupMessage, "team", "standup"))

		req.Empty(alice.Sent())
		got := bob.Sent()
		req.Len(got, 1)
		req.Equal("team", got[0].Recipient)
		req.Equal("alice", got[0].Sender)
		req.Equal(1.0, testutil.ToFloat64(f.metrics.Deliveries.WithLabelValues("group", "delivered")))
		req.Equal(1.0, testutil.ToFloat64(f.metrics.Deliveries.WithLabelValues("group", "offline")))
	})

	t.Run("non member", func(t *testing.T) {
		f := newRouterFixture(t)
		dave := newFakeCaller("s4", "dave")
		f.store.EXPECT().Group(gomock.Any(), "team").Return(group, nil)

		f.router.Handle(ctx, dave, request(protocol.TypeGroupMessage, "team", "hi"))
		requireReply(t, dave, protocol.TypeErrorMsg, MsgNotMember)
	})

	t.Run("unknown group", func(t *testing.T) {
		f := newRouterFixture(t)
		alice := newFakeCaller("s1", "alice")
		f.store.EXPECT().Group(gomock.Any(), "nope").Return(domain.Group{}, chaterrors.ErrGroupNotFound)

		f.router.Handle(ctx, alice, request(protocol.TypeGroupMessage, "nope", "hi"))
		requireReply(t, alice, protocol.TypeErrorMsg, MsgGroupNotFound)
	})
}

func TestRouter_Group_Message_Is_Censored(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newRouterFixture(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	moderator, err := moderation.NewModerator([]string{"darn"}, '*', log)
	req.NoError(err)
	f.router.moderator = moderator

	alice, bob := newFakeCaller("s1", "alice"), newFakeCaller("s2", "bob")
	f.registry.Bind("bob", bob)
	f.store.EXPECT().Group(gomock.Any(), "team").
		Return(domain.Group{Name: "team", Admin: "alice", Members: []string{"alice", "bob"}}, nil)
	f.store.EXPECT().AppendGroupMessage(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, r domain.Record) error {
			req.Equal("oh **** it", r.Content)
			return nil
		})
	f.store.EXPECT().Members(gomock.Any(), "team").Return([]string{"alice", "bob"}, nil)

	f.router.Handle(ctx, alice, request(protocol.TypeGroupMessage, "team", "oh darn it"))

	req.Equal("oh **** it", bob.Sent()[0].Content)
	req.Equal(1.0, testutil.ToFloat64(f.metrics.CensoredMessages))
}

func TestRouter_Kick_Member(t *testing.T) {
	ctx := context.Background()

	t.Run("by admin", func(t *testing.T) {
		req := require.New(t)
		f := newRouterFixture(t)
		alice, bob := newFakeCaller("s1", "alice"), newFakeCaller("s2", "bob")
		f.registry.Bind("bob", bob)

		f.store.EXPECT().AdminOf(gomock.Any(), "team").Return("alice", nil)
		f.store.EXPECT().RemoveMember(gomock.Any(), "team", "bob").Return(nil)

		f.router.Handle(ctx, alice, request(protocol.TypeKickMember, "team", "bob"))

		requireReply(t, alice, protocol.TypeSuccessMsg, "Removed bob from team")
		requireReply(t, bob, protocol.TypeSuccessMsg, "You were removed from team")
		req.Len(bob.Sent(), 1)
	})

	t.Run("by non admin", func(t *testing.T) {
		f := newRouterFixture(t)
		bob := newFakeCaller("s2", "bob")

		// RemoveMember is not expected: the mock fails the test if it is called
		f.store.EXPECT().AdminOf(gomock.Any(), "team").Return("alice", nil)

		f.router.Handle(ctx, bob, request(protocol.TypeKickMember, "team", "carol"))
		requireReply(t, bob, protocol.TypeErrorMsg, MsgOnlyAdminKicks)
	})

	t.Run("admin kicking itself", func(t *testing.T) {
		f := newRouterFixture(t)
		alice := newFakeCaller("s1", "alice")
		f.store.EXPECT().AdminOf(gomock.Any(), "team").Return("alice", nil)

		f.router.Handle(ctx, alice, request(protocol.TypeKickMember, "team", "alice"))
		requireReply(t, alice, protocol.TypeErrorMsg, MsgAdminCannotBeKick)
	})

	t.Run("unknown group", func(t *testing.T) {
		f := newRouterFixture(t)
		alice := newFakeCaller("s1", "alice")
		f.store.EXPECT().AdminOf(gomock.Any(), "team").Return("", chaterrors.ErrGroupNotFound)

		f.router.Handle(ctx, alice, request(protocol.TypeKickMember, "team", "bob"))
		requireReply(t, alice, protocol.TypeErrorMsg, MsgGroupNotFound)
	})
}

func TestRouter_Join_And_Leave_Replies(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		typ     protocol.MessageType
		err     error
		reply   protocol.MessageType
		content string
	}{
		{"join ok", protocol.TypeJoinGroup, nil, protocol.TypeSuccessMsg, "Joined group: team"},
		{"join full", protocol.TypeJoinGroup, chaterrors.ErrGroupFull, protocol.TypeErrorMsg, MsgGroupFull},
		{"join unknown", protocol.TypeJoinGroup, chaterrors.ErrGroupNotFound, protocol.TypeErrorMsg, MsgGroupNotFound},
		{"leave ok", protocol.TypeLeaveGroup, nil, protocol.TypeSuccessMsg, "Left group: team"},
		{"leave as admin", protocol.TypeLeaveGroup, chaterrors.ErrAdminCannotLeave, protocol.TypeErrorMsg, MsgAdminCannotLeave},
		{"leave unknown", protocol.TypeLeaveGroup, chaterrors.ErrGroupNotFound, protocol.TypeErrorMsg, MsgGroupNotFound},
		{"leave non member", protocol.TypeLeaveGroup, chaterrors.ErrNotGroupMember, protocol.TypeErrorMsg, MsgNotMember},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRouterFixture(t)
			caller := newFakeCaller("s1", "bob")
			if tt.typ == protocol.TypeJoinGroup {
				f.store.EXPECT().AddMember(gomock.Any(), "team", "bob").Return(tt.err)
			} else {
				f.store.EXPECT().RemoveMember(gomock.Any(), "team", "bob").Return(tt.err)
			}

			f.router.Handle(ctx, caller, request(tt.typ, "", "team"))
			requireReply(t, caller, tt.reply, tt.content)
		})
	}
}

func TestRouter_Create_Group(t *testing.T) {
	ctx := context.Background()

	t.Run("created", func(t *testing.T) {
		req := require.New(t)
		f := newRouterFixture(t)
		caller := newFakeCaller("s1", "alice")
		f.store.EXPECT().CreateGroup(gomock.Any(), "team", "alice").Return(nil)

		f.router.Handle(ctx, caller, request(protocol.TypeCreateGroup, "", "team"))

		requireReply(t, caller, protocol.TypeGroupCreated, "team")
		req.Equal("team", caller.Sent()[0].Recipient)
	})

	t.Run("duplicate", func(t *testing.T) {
		f := newRouterFixture(t)
		caller := newFakeCaller("s1", "alice")
		f.store.EXPECT().CreateGroup(gomock.Any(), "team", "alice").Return(chaterrors.ErrGroupAlreadyExists)

		f.router.Handle(ctx, caller, request(protocol.TypeCreateGroup, "", "team"))
		requireReply(t, caller, protocol.TypeErrorMsg, MsgGroupExists)
	})

	t.Run("invalid name", func(t *testing.T) {
		f := newRouterFixture(t)
		caller := newFakeCaller("s1", "alice")

		f.router.Handle(ctx, caller, request(protocol.TypeCreateGroup, "", "a:b"))
		requireReply(t, caller, protocol.TypeErrorMsg, MsgInvalidGroupName)
	})
}

func TestRouter_History(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	t.Run("direct, oldest first", func(t *testing.T) {
		req := require.New(t)
		f := newRouterFixture(t)
		caller := newFakeCaller("s1", "alice")
		records := []domain.Record{
			domain.NewRecord("bob", "alice", "one", at),
			domain.NewRecord("alice", "bob", "two", at.Add(time.Second)),
		}
		f.store.EXPECT().HistoryDirect(gomock.Any(), "alice", "bob", domain.DefaultHistoryLimit).Return(records, nil)

		f.router.Handle(ctx, caller, request(protocol.TypeMessageHistoryRequest, "bob", ""))

		sent := caller.Sent()
		req.Len(sent, 2)
		req.Equal(protocol.TypeMessageHistoryResponse, sent[0].Type)
		req.Equal("one", sent[0].Content)
		req.Equal("bob", sent[0].Sender)
		req.Equal("two", sent[1].Content)
		req.True(sent[1].Timestamp.Equal(at.Add(time.Second)))
	})

	t.Run("group, not a member", func(t *testing.T) {
		req := require.New(t)
		f := newRouterFixture(t)
		caller := newFakeCaller("s1", "dave")
		f.store.EXPECT().Group(gomock.Any(), "team").
			Return(domain.Group{Name: "team", Admin: "alice", Members: []string{"alice"}}, nil)

		f.router.Handle(ctx, caller, request(protocol.TypeMessageHistoryRequest, "", "GROUP:team"))
		req.Empty(caller.Sent())
	})

	t.Run("group, member", func(t *testing.T) {
		req := require.New(t)
		f := newRouterFixture(t)
		caller := newFakeCaller("s1", "alice")
		f.store.EXPECT().Group(gomock.Any(), "team").
			Return(domain.Group{Name: "team", Admin: "alice", Members: []string{"alice"}}, nil)
		f.store.EXPECT().HistoryGroup(gomock.Any(), "team", domain.DefaultHistoryLimit).
			Return([]domain.Record{domain.NewRecord("alice", "team", "hi", at)}, nil)

		f.router.Handle(ctx, caller, request(protocol.TypeMessageHistoryRequest, "", "GROUP:team"))

		sent := caller.Sent()
		req.Len(sent, 1)
		req.Equal("team", sent[0].Recipient)
	})
}

func TestRouter_Group_Members(t *testing.T) {
	ctx := context.Background()

	t.Run("known group", func(t *testing.T) {
		req := require.New(t)
		f := newRouterFixture(t)
		caller := newFakeCaller("s1", "bob")
		f.store.EXPECT().Group(gomock.Any(), "team").
			Return(domain.Group{Name: "team", Admin: "alice", Members: []string{"alice", "bob"}}, nil)

		f.router.Handle(ctx, caller, request(protocol.TypeGroupMembersRequest, "", "team"))

		requireReply(t, caller, protocol.TypeGroupMembersResponse, "alice,bob")
		req.Equal("alice", caller.Sent()[0].Sender)
		req.Equal("team", caller.Sent()[0].Recipient)
	})

	t.Run("unknown group", func(t *testing.T) {
		req := require.New(t)
		f := newRouterFixture(t)
		caller := newFakeCaller("s1", "bob")
		f.store.EXPECT().Group(gomock.Any(), "nope").Return(domain.Group{}, chaterrors.ErrGroupNotFound)

		f.router.Handle(ctx, caller, request(protocol.TypeGroupMembersRequest, "", "nope"))

		requireReply(t, caller, protocol.TypeGroupMembersResponse, "")
		req.Empty(caller.Sent()[0].Sender)
		req.Empty(caller.Sent()[0].Recipient)
	})
}
