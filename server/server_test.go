package server

import (
	"chat-relay/client"
	"chat-relay/domain"
	"chat-relay/observability"
	"chat-relay/protocol"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/services"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

const receiveTimeout = 2 * time.Second

type relay struct {
	addr     string
	store    *repositories.BadgerStore
	registry *runtime.Registry
	metrics  *observability.Metrics
	stop     func()
}

func startRelay(t *testing.T) *relay {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	store, err := repositories.OpenBadgerStore(t.TempDir(), log)
	require.NoError(t, err)

	registry := runtime.NewRegistry(log, store)
	metrics := observability.NewMetrics()
	router := NewRouter(log, store, registry, services.NewAuthService(log, store, testParams), nil, metrics, domain.DefaultHistoryLimit)
	srv := NewServer(log, "", router, metrics, nil, SessionConfig{
		Codec:        protocol.DefaultCodec,
		BufferSize:   64,
		WriteTimeout: time.Second,
	}, 0)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, listener) }()

	r := &relay{addr: listener.Addr().String(), store: store, registry: registry, metrics: metrics}
	var stopped bool
	r.stop = func() {
		if stopped {
			return
		}
		stopped = true
		cancel()
		require.NoError(t, <-done)
	}
	t.Cleanup(func() {
		r.stop()
		_ = store.Close()
	})
	return r
}

func (r *relay) dial(t *testing.T) *client.Client {
	t.Helper()
	c, err := client.Dial(context.Background(), r.addr, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// signup registers and logs username in on a fresh connection.
func (r *relay) signup(t *testing.T, username string) *client.Client {
	t.Helper()
	c := r.dial(t)
	require.NoError(t, c.Register(username, "pw-"+username))
	expect(t, c, protocol.TypeAuthSuccess, "Registration successful")
	require.NoError(t, c.Login(username, "pw-"+username))
	expect(t, c, protocol.TypeAuthSuccess, "Login successful")
	return c
}

func expect(t *testing.T, c *client.Client, typ protocol.MessageType, content string) protocol.Envelope {
	t.Helper()
	env, err := c.ReceiveWithin(receiveTimeout)
	require.NoError(t, err)
	require.Equal(t, typ.String(), env.Type.String(), "content: %q", env.Content)
	require.Equal(t, content, env.Content)
	return env
}

// flush makes sure every request sent before it on c has been handled.
func flush(t *testing.T, c *client.Client) {
	t.Helper()
	require.NoError(t, c.GetGroups())
	env, err := c.ReceiveWithin(receiveTimeout)
	require.NoError(t, err)
	require.Equal(t, protocol.TypeGroupsList, env.Type)
}

func expectClosed(t *testing.T, c *client.Client) {
	t.Helper()
	_, err := c.ReceiveWithin(receiveTimeout)
	require.Error(t, err)
	require.True(t, errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrUnexpectedEOF),
		"unexpected error %v", err)
}

func TestRelay_Offline_Direct_Message_Is_Replayed(t *testing.T) {
	req := require.New(t)
	r := startRelay(t)

	// Given bob registered then went away
	bob := r.signup(t, "bob")
	req.NoError(bob.Close())
	req.Eventually(func() bool { return r.registry.Count() == 0 }, receiveTimeout, 10*time.Millisecond)

	// When alice writes to him twice
	alice := r.signup(t, "alice")
	req.NoError(alice.PrivateMessage("bob", "first"))
	req.NoError(alice.PrivateMessage("bob", "second"))
	flush(t, alice)

	// Then bob finds both, oldest first, when he comes back
	bob = r.dial(t)
	req.NoError(bob.Login("bob", "pw-bob"))
	expect(t, bob, protocol.TypeAuthSuccess, "Login successful")
	req.NoError(bob.History("alice"))

	first := expect(t, bob, protocol.TypeMessageHistoryResponse, "first")
	req.Equal("alice", first.Sender)
	req.Equal("bob", first.Recipient)
	second := expect(t, bob, protocol.TypeMessageHistoryResponse, "second")
	req.False(second.Timestamp.Before(first.Timestamp))
	flush(t, bob)
}

func TestRelay_Direct_Message_To_Online_User(t *testing.T) {
	req := require.New(t)
	r := startRelay(t)
	alice, bob := r.signup(t, "alice"), r.signup(t, "bob")

	req.NoError(alice.PrivateMessage("bob", "ping"))

	got := expect(t, bob, protocol.TypePrivateMessage, "ping")
	req.Equal("alice", got.Sender)
	req.NoError(alice.PrivateMessage("nobody", "ping"))
	expect(t, alice, protocol.TypeErrorMsg, MsgUserNotFound)
}

func TestRelay_Group_Message_Skips_Sender(t *testing.T) {
	req := require.New(t)
	r := startRelay(t)
	alice, bob, carol := r.signup(t, "alice"), r.signup(t, "bob"), r.signup(t, "carol")

	req.NoError(alice.CreateGroup("team"))
	expect(t, alice, protocol.TypeGroupCreated, "team")
	req.NoError(bob.JoinGroup("team"))
	expect(t, bob, protocol.TypeSuccessMsg, "Joined group: team")

	// When alice speaks in the group
	req.NoError(alice.GroupMessage("team", "hello team"))

	// Then bob hears it, alice does not, carol is outside
	got := expect(t, bob, protocol.TypeGroupMessage, "hello team")
	req.Equal("alice", got.Sender)
	req.Equal("team", got.Recipient)

	req.NoError(alice.GetGroups())
	expect(t, alice, protocol.TypeGroupsList, "team")

	req.NoError(carol.GroupMessage("team", "let me in"))
	expect(t, carol, protocol.TypeErrorMsg, MsgNotMember)

	req.NoError(bob.GroupMembers("team"))
	members := expect(t, bob, protocol.TypeGroupMembersResponse, "alice,bob")
	req.Equal("alice", members.Sender)

	req.NoError(bob.GroupHistory("team"))
	expect(t, bob, protocol.TypeMessageHistoryResponse, "hello team")
}

func TestRelay_Group_Admission_Cap(t *testing.T) {
	req := require.New(t)
	r := startRelay(t)
	admin := r.signup(t, "admin")
	req.NoError(admin.CreateGroup("crowd"))
	expect(t, admin, protocol.TypeGroupCreated, "crowd")

	// One connection switching users through LOGOUT
	c := r.dial(t)
	for i := 1; i <= domain.MaxGroupMembers; i++ {
		name := fmt.Sprintf("user%02d", i)
		req.NoError(c.Register(name, "pw"))
		expect(t, c, protocol.TypeAuthSuccess, "Registration successful")
		req.NoError(c.Login(name, "pw"))
		expect(t, c, protocol.TypeAuthSuccess, "Login successful")

		req.NoError(c.JoinGroup("crowd"))
		if i < domain.MaxGroupMembers {
			expect(t, c, protocol.TypeSuccessMsg, "Joined group: crowd")
		} else {
			expect(t, c, protocol.TypeErrorMsg, MsgGroupFull)
		}

		req.NoError(c.Logout())
		expect(t, c, protocol.TypeSuccessMsg, MsgLoggedOut)
	}

	count, err := r.store.MemberCount(context.Background(), "crowd")
	req.NoError(err)
	req.Equal(domain.MaxGroupMembers, count)
}

func TestRelay_Kick(t *testing.T) {
	req := require.New(t)
	r := startRelay(t)
	alice, bob, carol := r.signup(t, "alice"), r.signup(t, "bob"), r.signup(t, "carol")

	req.NoError(alice.CreateGroup("team"))
	expect(t, alice, protocol.TypeGroupCreated, "team")
	for _, c := range []*client.Client{bob, carol} {
		req.NoError(c.JoinGroup("team"))
		expect(t, c, protocol.TypeSuccessMsg, "Joined group: team")
	}

	// A member who is not admin cannot kick
	req.NoError(bob.KickMember("team", "carol"))
	expect(t, bob, protocol.TypeErrorMsg, MsgOnlyAdminKicks)

	// The admin can, and both sides are told
	req.NoError(alice.KickMember("team", "carol"))
	expect(t, carol, protocol.TypeSuccessMsg, "You were removed from team")
	expect(t, alice, protocol.TypeSuccessMsg, "Removed carol from team")

	// The admin cannot leave
	req.NoError(alice.LeaveGroup("team"))
	expect(t, alice, protocol.TypeErrorMsg, MsgAdminCannotLeave)

	members, err := r.store.Members(context.Background(), "team")
	req.NoError(err)
	req.Equal([]string{"alice", "bob"}, members)
}

func TestRelay_Duplicate_Login_Evicts_First_Connection(t *testing.T) {
	req := require.New(t)
	r := startRelay(t)
	first := r.signup(t, "alice")
	bob := r.signup(t, "bob")

	// When alice logs in from a second connection
	second := r.dial(t)
	req.NoError(second.Login("alice", "pw-alice"))
	expect(t, second, protocol.TypeAuthSuccess, "Login successful")

	// Then the first one is told and closed
	expect(t, first, protocol.TypeErrorMsg, MsgEvicted)
	expectClosed(t, first)

	// And messages reach the new connection
	req.NoError(bob.PrivateMessage("alice", "still there?"))
	expect(t, second, protocol.TypePrivateMessage, "still there?")

	peer, ok := r.registry.Lookup("alice")
	req.True(ok)
	req.NotNil(peer)
	req.Equal([]string{"alice", "bob"}, r.registry.Online())
}

func TestRelay_Fragmented_Frames(t *testing.T) {
	req := require.New(t)
	r := startRelay(t)

	conn, err := net.Dial("tcp", r.addr)
	req.NoError(err)
	t.Cleanup(func() { _ = conn.Close() })
	c := client.New(conn, protocol.DefaultCodec)

	var stream []byte
	for _, env := range []protocol.Envelope{
		{Type: protocol.TypeRegister, Sender: "alice", Content: "pw"},
		{Type: protocol.TypeLogin, Sender: "alice", Content: "pw"},
	} {
		frame, err := protocol.Encode(env)
		req.NoError(err)
		stream = append(stream, frame...)
	}

	// When both frames arrive in three-byte pieces
	for _, chunk := range lo.Chunk(stream, 3) {
		_, err := conn.Write(chunk)
		req.NoError(err)
		time.Sleep(time.Millisecond)
	}

	// Then each is handled once, in order
	expect(t, c, protocol.TypeAuthSuccess, "Registration successful")
	expect(t, c, protocol.TypeAuthSuccess, "Login successful")
}

func TestRelay_Anonymous_Requests_Are_Refused(t *testing.T) {
	req := require.New(t)
	r := startRelay(t)
	c := r.dial(t)

	req.NoError(c.GetUsers())
	expect(t, c, protocol.TypeAuthFailure, MsgNotAuthenticated)

	// The connection stays usable
	req.NoError(c.Register("alice", "pw"))
	expect(t, c, protocol.TypeAuthSuccess, "Registration successful")
	req.NoError(c.Login("alice", "wrong"))
	expect(t, c, protocol.TypeAuthFailure, MsgInvalidCredentials)
	req.NoError(c.Login("alice", "pw"))
	expect(t, c, protocol.TypeAuthSuccess, "Login successful")
	req.NoError(c.GetUsers())
	expect(t, c, protocol.TypeUsersList, "alice")
}

func TestRelay_Framing_Error_Closes_Connection(t *testing.T) {
	req := require.New(t)
	r := startRelay(t)

	conn, err := net.Dial("tcp", r.addr)
	req.NoError(err)
	t.Cleanup(func() { _ = conn.Close() })

	_, err = conn.Write([]byte{0, 0, 0, 0})
	req.NoError(err)

	expectClosed(t, client.New(conn, protocol.DefaultCodec))
	req.Eventually(func() bool {
		return testutil.ToFloat64(r.metrics.FramingErrors) == 1
	}, receiveTimeout, 10*time.Millisecond)
}

func TestRelay_Disconnect_Marks_User_Offline(t *testing.T) {
	req := require.New(t)
	r := startRelay(t)
	ctx := context.Background()

	alice := r.signup(t, "alice")
	accounts, err := r.store.Accounts(ctx)
	req.NoError(err)
	req.True(accounts[0].Online)

	req.NoError(alice.Close())

	req.Eventually(func() bool {
		accounts, err := r.store.Accounts(ctx)
		return err == nil && !accounts[0].Online
	}, receiveTimeout, 10*time.Millisecond)
	req.Empty(r.registry.Online())
}

func TestRelay_Shutdown_Closes_Sessions(t *testing.T) {
	r := startRelay(t)
	alice := r.signup(t, "alice")

	r.stop()

	expectClosed(t, alice)
}
