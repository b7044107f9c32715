// Package domain contains core concepts of the chat relay.
// This file defines Record, the append-only trace of a delivered message.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultHistoryLimit is how many records a history request replays.
const DefaultHistoryLimit = 100

// GroupHistoryPrefix marks a history request content that selects a group.
const GroupHistoryPrefix = "GROUP:"

// Record is immutable once appended.
type Record struct {
	ID        uuid.UUID
	Sender    string
	Target    string // recipient username or group name
	Content   string
	Timestamp time.Time
}

func NewRecord(sender, target, content string, at time.Time) Record {
	return Record{
		ID:        uuid.New(),
		Sender:    sender,
		Target:    target,
		Content:   content,
		Timestamp: at,
	}
}

type HistoryScope int

const (
	HistoryDirect HistoryScope = iota
	HistoryGroup
)

// HistorySelector says which conversation a history request replays.
type HistorySelector struct {
	Scope  HistoryScope
	Target string
}

// ParseHistorySelector reads a MESSAGE_HISTORY_REQUEST: a content of
// "GROUP:<name>" selects that group, anything else selects the direct
// conversation with recipient.
func ParseHistorySelector(recipient, content string) HistorySelector {
	if name, ok := strings.CutPrefix(content, GroupHistoryPrefix); ok {
		return HistorySelector{Scope: HistoryGroup, Target: name}
	}
	return HistorySelector{Scope: HistoryDirect, Target: recipient}
}

// ConversationKey identifies the direct conversation between a and b
// regardless of who sent first.
func ConversationKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}
