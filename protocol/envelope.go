// Package protocol implements the chat relay wire format.
//
// Every frame on the stream is a 4-byte big-endian body length followed by the
// body. The body is a protobuf-wire record whose fields are always written in
// the same order:
//
//	1 type      varint
//	2 sender    bytes (UTF-8)
//	3 recipient bytes (UTF-8)
//	4 content   bytes (UTF-8)
//	5 timestamp zigzag varint, unix nanoseconds (0 means unset)
//	6 id        zigzag varint
package protocol

import (
	"fmt"
	"strings"
	"time"
)

// MessageType tags an Envelope. Values are positional and shared with every
// client build, so new types may only be appended.
type MessageType uint8

const (
	TypeRegister MessageType = iota
	TypeLogin
	TypeLogout
	TypeAuthSuccess
	TypeAuthFailure
	TypeGetUsers
	TypeUsersList
	TypePrivateMessage
	TypeMessageHistoryRequest
	TypeMessageHistoryResponse
	TypeCreateGroup
	TypeGroupCreated
	TypeJoinGroup
	TypeLeaveGroup
	TypeGroupMessage
	TypeGetGroups
	TypeGroupsList
	TypeGroupMembersRequest
	TypeGroupMembersResponse
	TypeKickMember
	TypeErrorMsg
	TypeSuccessMsg

	typeCount
)

var typeNames = [typeCount]string{
	"REGISTER",
	"LOGIN",
	"LOGOUT",
	"AUTH_SUCCESS",
	"AUTH_FAILURE",
	"GET_USERS",
	"USERS_LIST",
	"PRIVATE_MESSAGE",
	"MESSAGE_HISTORY_REQUEST",
	"MESSAGE_HISTORY_RESPONSE",
	"CREATE_GROUP",
	"GROUP_CREATED",
	"JOIN_GROUP",
	"LEAVE_GROUP",
	"GROUP_MESSAGE",
	"GET_GROUPS",
	"GROUPS_LIST",
	"GROUP_MEMBERS_REQUEST",
	"GROUP_MEMBERS_RESPONSE",
	"KICK_MEMBER",
	"ERROR_MSG",
	"SUCCESS_MSG",
}

func (t MessageType) String() string {
	if t.Valid() {
		return typeNames[t]
	}
	return fmt.Sprintf("MessageType(%d)", uint8(t))
}

// Valid reports whether t belongs to the closed enumeration.
func (t MessageType) Valid() bool { return t < typeCount }

// AllTypes lists every valid MessageType in wire order.
func AllTypes() []MessageType {
	out := make([]MessageType, 0, typeCount)
	for t := MessageType(0); t < typeCount; t++ {
		out = append(out, t)
	}
	return out
}

// ListSeparator joins username and group name lists in Content.
const ListSeparator = ","

// JoinList renders names the way USERS_LIST, GROUPS_LIST and
// GROUP_MEMBERS_RESPONSE carry them.
func JoinList(names []string) string {
	return strings.Join(names, ListSeparator)
}

// SplitList is the inverse of JoinList. An empty content yields no names.
func SplitList(content string) []string {
	if content == "" {
		return nil
	}
	return strings.Split(content, ListSeparator)
}

// Envelope is one logical protocol message.
type Envelope struct {
	Type      MessageType
	Sender    string
	Recipient string
	Content   string
	Timestamp time.Time
	ID        int64
}

// NewEnvelope returns an Envelope of the given type stamped with the current time.
func NewEnvelope(t MessageType) Envelope {
	return Envelope{Type: t, Timestamp: Now()}
}

// Reply builds a server response carrying content.
func Reply(t MessageType, content string) Envelope {
	e := NewEnvelope(t)
	e.Content = content
	return e
}

// Now returns the current time in the form the codec round-trips exactly:
// UTC, without a monotonic clock reading.
func Now() time.Time {
	return time.Now().UTC().Round(0)
}
