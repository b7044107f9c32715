package server

import (
	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/domain"
	chaterrors "chat-relay/errors"
	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/protocol"
	"chat-relay/services"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Replies sent verbatim to clients.
const (
	MsgRegistered         = "Registration successful"
	MsgUsernameTaken      = "Username already exists"
	MsgInvalidUsername    = "Invalid username"
	MsgInvalidPassword    = "Invalid password"
	MsgLoggedIn           = "Login successful"
	MsgInvalidCredentials = "Invalid credentials"
	MsgAlreadyLoggedIn    = "Already logged in"
	MsgNotAuthenticated   = "Not authenticated"
	MsgLoggedOut          = "Logged out"
	MsgEvicted            = "Logged in from another connection"
	MsgUserNotFound       = "User not found"
	MsgGroupNotFound      = "Group not found"
	MsgGroupExists        = "Group already exists"
	MsgInvalidGroupName   = "Invalid group name"
	MsgGroupFull          = "Group is full"
	MsgNotMember          = "Not a member of group"
	MsgAdminCannotLeave   = "Group admin cannot leave the group"
	MsgAdminCannotBeKick  = "Group admin cannot be kicked"
	MsgOnlyAdminKicks     = "Only the group admin can kick members"
	MsgUnsupported        = "Unsupported message type"
	MsgInternal           = "Internal error"
)

type handler func(ctx context.Context, c Caller, username string, env protocol.Envelope)

// Router applies one client request to the registry and the store and
// answers on the calling session.
type Router struct {
	log          *slog.Logger
	store        contract.Store
	registry     contract.IRegistry
	auth         services.IAuthService
	moderator    *moderation.Moderator // nil disables censoring
	metrics      *observability.Metrics
	historyLimit int

	// presence orders each binding change with its online flag write.
	presence sync.Mutex

	authenticated map[protocol.MessageType]handler
}

func NewRouter(
	log *slog.Logger,
	store contract.Store,
	registry contract.IRegistry,
	authService services.IAuthService,
	moderator *moderation.Moderator,
	metrics *observability.Metrics,
	historyLimit int,
) *Router {
	if historyLimit <= 0 {
		historyLimit = domain.DefaultHistoryLimit
	}
	r := &Router{
		log:          log,
		store:        store,
		registry:     registry,
		auth:         authService,
		moderator:    moderator,
		metrics:      metrics,
		historyLimit: historyLimit,
	}
	r.authenticated = map[protocol.MessageType]handler{
		protocol.TypeLogout:                r.logout,
		protocol.TypePrivateMessage:        r.privateMessage,
		protocol.TypeGroupMessage:          r.groupMessage,
		protocol.TypeCreateGroup:           r.createGroup,
		protocol.TypeJoinGroup:             r.joinGroup,
		protocol.TypeGetUsers:              r.getUsers,
		protocol.TypeGetGroups:             r.getGroups,
		protocol.TypeMessageHistoryRequest: r.history,
		protocol.TypeLeaveGroup:            r.leaveGroup,
		protocol.TypeKickMember:            r.kickMember,
		protocol.TypeGroupMembersRequest:   r.groupMembers,
	}
	return r
}

// Handle dispatches one decoded envelope. It never returns an error: every
// refusal is answered on c and the connection stays open.
func (r *Router) Handle(ctx context.Context, c Caller, env protocol.Envelope) {
	typeName := env.Type.String()
	r.metrics.FramesIn.WithLabelValues(typeName).Inc()
	defer func(start time.Time) {
		r.metrics.HandleDuration.WithLabelValues(typeName).Observe(time.Since(start).Seconds())
	}(time.Now())

	switch env.Type {
	case protocol.TypeRegister:
		r.register(ctx, c, env)
		return
	case protocol.TypeLogin:
		r.login(ctx, c, env)
		return
	}

	h, ok := r.authenticated[env.Type]
	if !ok {
		r.reply(c, protocol.TypeErrorMsg, MsgUnsupported)
		return
	}
	username := c.Username()
	if username == "" {
		r.reply(c, protocol.TypeAuthFailure, MsgNotAuthenticated)
		return
	}
	h(ctx, c, username, env)
}

// Disconnect releases the binding of a closing session. An evicted session
// no longer owns its binding and leaves the online flag to its replacement.
func (r *Router) Disconnect(ctx context.Context, c Caller) {
	username := c.Username()
	if username == "" {
		return
	}
	r.presence.Lock()
	defer r.presence.Unlock()
	if !r.registry.Unbind(username, c) {
		return
	}
	r.metrics.SessionsBound.Set(float64(r.registry.Count()))
	if err := r.auth.SetOnline(ctx, username, false); err != nil {
		r.log.Error("Cannot mark user offline", "username", username, "error", err)
	}
	r.log.Info("User disconnected", "username", username)
}

func (r *Router) register(ctx context.Context, c Caller, env protocol.Envelope) {
	err := r.auth.Register(ctx, env.Sender, env.Content)
	switch {
	case err == nil:
		r.log.Info("User registered", "username", env.Sender)
		r.reply(c, protocol.TypeAuthSuccess, MsgRegistered)
	case errors.Is(err, chaterrors.ErrUserAlreadyExists):
		r.reply(c, protocol.TypeAuthFailure, MsgUsernameTaken)
	case errors.Is(err, chaterrors.ErrInvalidName):
		r.reply(c, protocol.TypeAuthFailure, MsgInvalidUsername)
	case errors.Is(err, chaterrors.ErrInvalidPassword):
		r.reply(c, protocol.TypeAuthFailure, MsgInvalidPassword)
	default:
		r.internal(c, env, err)
	}
}

func (r *Router) login(ctx context.Context, c Caller, env protocol.Envelope) {
	if c.Username() != "" {
		r.reply(c, protocol.TypeAuthFailure, MsgAlreadyLoggedIn)
		return
	}
	username := env.Sender
	if err := r.auth.Authenticate(ctx, username, env.Content); err != nil {
		if errors.Is(err, chaterrors.ErrInvalidCredentials) {
			r.log.Info("Login refused", "username", username)
			r.reply(c, protocol.TypeAuthFailure, MsgInvalidCredentials)
			return
		}
		r.internal(c, env, err)
		return
	}
	if err := r.bind(ctx, c, username); err != nil {
		r.internal(c, env, err)
		return
	}
	r.log.Info("User logged in", "username", username)

	reply := protocol.Reply(protocol.TypeAuthSuccess, MsgLoggedIn)
	reply.Recipient = username
	r.send(c, reply)
}

// bind makes c the session of username, evicting the previous one, then
// marks the user online. The flag is written after Bind: an evicted session
// no longer owns the binding and leaves the flag alone.
func (r *Router) bind(ctx context.Context, c Caller, username string) error {
	r.presence.Lock()
	defer r.presence.Unlock()

	c.SetUsername(username)
	if previous := r.registry.Bind(username, c); previous != nil {
		r.metrics.Evictions.Inc()
		r.log.Info("Evicting previous session", "username", username, "session", previous.ID())
		_ = previous.Send(protocol.Reply(protocol.TypeErrorMsg, MsgEvicted))
		previous.Close()
	}
	if err := r.auth.SetOnline(ctx, username, true); err != nil {
		r.registry.Unbind(username, c)
		c.SetUsername("")
		r.metrics.SessionsBound.Set(float64(r.registry.Count()))
		return err
	}
	r.metrics.SessionsBound.Set(float64(r.registry.Count()))
	return nil
}

func (r *Router) logout(ctx context.Context, c Caller, username string, env protocol.Envelope) {
	if err := r.unbind(ctx, c, username); err != nil {
		r.internal(c, env, err)
		return
	}
	r.log.Info("User logged out", "username", username)
	r.reply(c, protocol.TypeSuccessMsg, MsgLoggedOut)
}

func (r *Router) unbind(ctx context.Context, c Caller, username string) error {
	r.presence.Lock()
	defer r.presence.Unlock()

	c.SetUsername("")
	if !r.registry.Unbind(username, c) {
		return nil
	}
	r.metrics.SessionsBound.Set(float64(r.registry.Count()))
	return r.auth.SetOnline(ctx, username, false)
}

func (r *Router) privateMessage(ctx context.Context, c Caller, username string, env protocol.Envelope) {
	recipient := env.Recipient
	exists, err := r.store.UserExists(ctx, recipient)
	if err != nil {
		r.internal(c, env, err)
		return
	}
	if !exists {
		r.reply(c, protocol.TypeErrorMsg, MsgUserNotFound)
		return
	}

	record := domain.NewRecord(username, recipient, r.censor(env.Content), protocol.Now())
	if err := r.store.AppendDirectMessage(ctx, record); err != nil {
		r.internal(c, env, err)
		return
	}

	out := toEnvelope(protocol.TypePrivateMessage, record)
	out.ID = env.ID
	if peer, ok := r.registry.Lookup(recipient); ok && peer.Send(out) == nil {
		r.metrics.Deliveries.WithLabelValues("direct", "delivered").Inc()
	} else {
		r.metrics.Deliveries.WithLabelValues("direct", "offline").Inc()
	}
}

func (r *Router) groupMessage(ctx context.Context, c Caller, username string, env protocol.Envelope) {
	group, ok := r.memberGroup(ctx, c, username, env)
	if !ok {
		return
	}

	record := domain.NewRecord(username, group.Name, r.censor(env.Content), protocol.Now())
	if err := r.store.AppendGroupMessage(ctx, record); err != nil {
		r.internal(c, env, err)
		return
	}

	peers, err := r.registry.MembersOf(ctx, group.Name)
	if err != nil {
		r.internal(c, env, err)
		return
	}

	out := toEnvelope(protocol.TypeGroupMessage, record)
	out.ID = env.ID
	delivered := 0
	for _, peer := range peers {
		if peer.ID() == c.ID() {
			continue
		}
		if err := peer.Send(out); err != nil {
			r.log.Debug("Delivery refused", "group", group.Name, "session", peer.ID(), "error", err)
			continue
		}
		delivered++
	}
	r.metrics.Deliveries.WithLabelValues("group", "delivered").Add(float64(delivered))
	r.metrics.Deliveries.WithLabelValues("group", "offline").Add(float64(max(len(group.Members)-1-delivered, 0)))
}

func (r *Router) createGroup(ctx context.Context, c Caller, username string, env protocol.Envelope) {
	name := env.Content
	if err := auth.ValidateGroupName(name); err != nil {
		r.reply(c, protocol.TypeErrorMsg, MsgInvalidGroupName)
		return
	}
	if err := r.store.CreateGroup(ctx, name, username); err != nil {
		if errors.Is(err, chaterrors.ErrGroupAlreadyExists) {
			r.reply(c, protocol.TypeErrorMsg, MsgGroupExists)
			return
		}
		r.internal(c, env, err)
		return
	}
	r.log.Info("Group created", "group", name, "admin", username)

	reply := protocol.Reply(protocol.TypeGroupCreated, name)
	reply.Recipient = name
	r.send(c, reply)
}

func (r *Router) joinGroup(ctx context.Context, c Caller, username string, env protocol.Envelope) {
	name := env.Content
	err := r.store.AddMember(ctx, name, username)
	switch {
	case err == nil:
		r.log.Info("Member joined", "group", name, "username", username)
		r.reply(c, protocol.TypeSuccessMsg, "Joined group: "+name)
	case errors.Is(err, chaterrors.ErrGroupNotFound):
		r.reply(c, protocol.TypeErrorMsg, MsgGroupNotFound)
	case errors.Is(err, chaterrors.ErrGroupFull):
		r.reply(c, protocol.TypeErrorMsg, MsgGroupFull)
	default:
		r.internal(c, env, err)
	}
}

func (r *Router) getUsers(ctx context.Context, c Caller, _ string, env protocol.Envelope) {
	users, err := r.store.ListUsers(ctx)
	if err != nil {
		r.internal(c, env, err)
		return
	}
	r.reply(c, protocol.TypeUsersList, protocol.JoinList(users))
}

func (r *Router) getGroups(ctx context.Context, c Caller, username string, env protocol.Envelope) {
	groups, err := r.store.GroupsOf(ctx, username)
	if err != nil {
		r.internal(c, env, err)
		return
	}
	r.reply(c, protocol.TypeGroupsList, protocol.JoinList(groups))
}

// history replays the selected conversation oldest first, one response per
// record. Group history is only shown to members; others get nothing.
func (r *Router) history(ctx context.Context, c Caller, username string, env protocol.Envelope) {
	selector := domain.ParseHistorySelector(env.Recipient, env.Content)

	var (
		records []domain.Record
		err     error
	)
	switch selector.Scope {
	case domain.HistoryGroup:
		group, groupErr := r.store.Group(ctx, selector.Target)
		if errors.Is(groupErr, chaterrors.ErrGroupNotFound) {
			return
		}
		if groupErr != nil {
			r.internal(c, env, groupErr)
			return
		}
		if !group.IsMember(username) {
			return
		}
		records, err = r.store.HistoryGroup(ctx, selector.Target, r.historyLimit)
	default:
		if selector.Target == "" {
			return
		}
		records, err = r.store.HistoryDirect(ctx, username, selector.Target, r.historyLimit)
	}
	if err != nil {
		r.internal(c, env, err)
		return
	}

	for _, record := range records {
		if !r.send(c, toEnvelope(protocol.TypeMessageHistoryResponse, record)) {
			return
		}
	}
}

func (r *Router) leaveGroup(ctx context.Context, c Caller, username string, env protocol.Envelope) {
	name := env.Content
	err := r.store.RemoveMember(ctx, name, username)
	switch {
	case err == nil:
		r.log.Info("Member left", "group", name, "username", username)
		r.reply(c, protocol.TypeSuccessMsg, "Left group: "+name)
	case errors.Is(err, chaterrors.ErrGroupNotFound):
		r.reply(c, protocol.TypeErrorMsg, MsgGroupNotFound)
	case errors.Is(err, chaterrors.ErrAdminCannotLeave):
		r.reply(c, protocol.TypeErrorMsg, MsgAdminCannotLeave)
	case errors.Is(err, chaterrors.ErrNotGroupMember):
		r.reply(c, protocol.TypeErrorMsg, MsgNotMember)
	default:
		r.internal(c, env, err)
	}
}

// kickMember takes the group from Recipient and the member from Content.
func (r *Router) kickMember(ctx context.Context, c Caller, username string, env protocol.Envelope) {
	name, member := env.Recipient, env.Content

	admin, err := r.store.AdminOf(ctx, name)
	if errors.Is(err, chaterrors.ErrGroupNotFound) {
		r.reply(c, protocol.TypeErrorMsg, MsgGroupNotFound)
		return
	}
	if err != nil {
		r.internal(c, env, err)
		return
	}
	if admin != username {
		r.reply(c, protocol.TypeErrorMsg, MsgOnlyAdminKicks)
		return
	}
	if member == admin {
		r.reply(c, protocol.TypeErrorMsg, MsgAdminCannotBeKick)
		return
	}

	err = r.store.RemoveMember(ctx, name, member)
	if errors.Is(err, chaterrors.ErrNotGroupMember) {
		r.reply(c, protocol.TypeErrorMsg, MsgNotMember)
		return
	}
	if err != nil {
		r.internal(c, env, err)
		return
	}
	r.log.Info("Member kicked", "group", name, "username", member, "admin", username)

	r.registry.Deliver(member, protocol.Reply(protocol.TypeSuccessMsg, "You were removed from "+name))
	r.reply(c, protocol.TypeSuccessMsg, fmt.Sprintf("Removed %s from %s", member, name))
}

// groupMembers answers with empty fields for an unknown group.
func (r *Router) groupMembers(ctx context.Context, c Caller, _ string, env protocol.Envelope) {
	name := env.Content
	reply := protocol.NewEnvelope(protocol.TypeGroupMembersResponse)

	group, err := r.store.Group(ctx, name)
	switch {
	case err == nil:
		reply.Recipient = group.Name
		reply.Sender = group.Admin
		reply.Content = protocol.JoinList(group.Members)
	case errors.Is(err, chaterrors.ErrGroupNotFound):
	default:
		r.internal(c, env, err)
		return
	}
	r.send(c, reply)
}

// memberGroup loads the group named by Recipient and checks that username
// belongs to it, answering the caller otherwise.
func (r *Router) memberGroup(ctx context.Context, c Caller, username string, env protocol.Envelope) (domain.Group, bool) {
	group, err := r.store.Group(ctx, env.Recipient)
	if errors.Is(err, chaterrors.ErrGroupNotFound) {
		r.reply(c, protocol.TypeErrorMsg, MsgGroupNotFound)
		return domain.Group{}, false
	}
	if err != nil {
		r.internal(c, env, err)
		return domain.Group{}, false
	}
	if !group.IsMember(username) {
		r.reply(c, protocol.TypeErrorMsg, MsgNotMember)
		return domain.Group{}, false
	}
	return group, true
}

func (r *Router) censor(content string) string {
	if r.moderator == nil {
		return content
	}
	censored, changed := r.moderator.Censor(content)
	if changed {
		r.metrics.CensoredMessages.Inc()
	}
	return censored
}

func (r *Router) internal(c Caller, env protocol.Envelope, err error) {
	r.metrics.StoreErrors.Inc()
	r.log.Error("Request failed", "type", env.Type.String(), "username", c.Username(), "error", err)
	r.reply(c, protocol.TypeErrorMsg, MsgInternal)
}

func (r *Router) reply(c Caller, t protocol.MessageType, content string) {
	r.send(c, protocol.Reply(t, content))
}

func (r *Router) send(c Caller, env protocol.Envelope) bool {
	if err := c.Reply(env); err != nil {
		r.log.Debug("Reply dropped", "type", env.Type.String(), "error", err)
		return false
	}
	return true
}

func toEnvelope(t protocol.MessageType, record domain.Record) protocol.Envelope {
	return protocol.Envelope{
		Type:      t,
		Sender:    record.Sender,
		Recipient: record.Target,
		Content:   record.Content,
		Timestamp: record.Timestamp,
	}
}
