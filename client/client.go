// Package client is a Go client for the chat relay.
package client

import (
	"chat-relay/domain"
	"chat-relay/protocol"
	"context"
	"fmt"
	"net"
	"sync"
	"time"
)

// Client holds one relay connection. Requests may be sent from several
// goroutines; Receive and Listen must be used from a single one.
type Client struct {
	conn  net.Conn
	codec protocol.Codec

	mu       sync.Mutex // serialises writes and guards username
	username string
}

// Dial connects to addr. A zero maxFrameSize uses the protocol default.
func Dial(ctx context.Context, addr string, maxFrameSize uint32) (*Client, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return New(conn, protocol.NewCodec(maxFrameSize)), nil
}

func New(conn net.Conn, codec protocol.Codec) *Client {
	return &Client{conn: conn, codec: codec}
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Username is the name given to the last Login call.
func (c *Client) Username() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.username
}

// Send writes env as one frame.
func (c *Client) Send(env protocol.Envelope) error {
	frame, err := c.codec.Encode(env)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err = c.conn.Write(frame)
	return err
}

// Receive blocks for the next envelope from the server.
func (c *Client) Receive() (protocol.Envelope, error) {
	return c.codec.ReadFrame(c.conn)
}

// ReceiveWithin is Receive bounded by timeout.
func (c *Client) ReceiveWithin(timeout time.Duration) (protocol.Envelope, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return protocol.Envelope{}, err
	}
	defer func() { _ = c.conn.SetReadDeadline(time.Time{}) }()
	return c.Receive()
}

// Listen calls handle for every envelope until the connection fails or ctx ends.
func (c *Client) Listen(ctx context.Context, handle func(protocol.Envelope)) error {
	stop := context.AfterFunc(ctx, func() { _ = c.conn.SetReadDeadline(time.Now()) })
	defer stop()

	for {
		env, err := c.Receive()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		handle(env)
	}
}

func (c *Client) Register(username, password string) error {
	return c.Send(c.request(protocol.TypeRegister, username, "", password))
}

func (c *Client) Login(username, password string) error {
	c.mu.Lock()
	c.username = username
	c.mu.Unlock()
	return c.Send(c.request(protocol.TypeLogin, username, "", password))
}

func (c *Client) Logout() error {
	return c.Send(c.request(protocol.TypeLogout, c.Username(), "", ""))
}

func (c *Client) PrivateMessage(recipient, content string) error {
	return c.Send(c.request(protocol.TypePrivateMessage, c.Username(), recipient, content))
}

func (c *Client) GroupMessage(group, content string) error {
	return c.Send(c.request(protocol.TypeGroupMessage, c.Username(), group, content))
}

func (c *Client) CreateGroup(name string) error {
	return c.Send(c.request(protocol.TypeCreateGroup, c.Username(), "", name))
}

func (c *Client) JoinGroup(name string) error {
	return c.Send(c.request(protocol.TypeJoinGroup, c.Username(), "", name))
}

func (c *Client) LeaveGroup(name string) error {
	return c.Send(c.request(protocol.TypeLeaveGroup, c.Username(), "", name))
}

func (c *Client) KickMember(group, member string) error {
	return c.Send(c.request(protocol.TypeKickMember, c.Username(), group, member))
}

func (c *Client) GetUsers() error {
	return c.Send(c.request(protocol.TypeGetUsers, c.Username(), "", ""))
}

func (c *Client) GetGroups() error {
	return c.Send(c.request(protocol.TypeGetGroups, c.Username(), "", ""))
}

func (c *Client) GroupMembers(group string) error {
	return c.Send(c.request(protocol.TypeGroupMembersRequest, c.Username(), "", group))
}

// History asks for the direct conversation with peer.
func (c *Client) History(peer string) error {
	return c.Send(c.request(protocol.TypeMessageHistoryRequest, c.Username(), peer, ""))
}

func (c *Client) GroupHistory(group string) error {
	return c.Send(c.request(protocol.TypeMessageHistoryRequest, c.Username(), "", domain.GroupHistoryPrefix+group))
}

func (c *Client) request(t protocol.MessageType, sender, recipient, content string) protocol.Envelope {
	env := protocol.NewEnvelope(t)
	env.Sender = sender
	env.Recipient = recipient
	env.Content = content
	return env
}
