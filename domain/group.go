// Package domain contains core concepts of the chat relay.
// This file defines Group and its admission rules.
// Groups are never deleted and the admin is always a member.
package domain

import (
	"time"

	"github.com/samber/lo"
)

// MaxGroupMembers caps the member count of a group, admin included.
const MaxGroupMembers = 10

type Group struct {
	Name      string
	Admin     string
	Members   []string
	CreatedAt time.Time
}

func NewGroup(name, admin string, at time.Time) Group {
	return Group{
		Name:      name,
		Admin:     admin,
		Members:   []string{admin},
		CreatedAt: at,
	}
}

func (g Group) IsMember(username string) bool {
	return lo.Contains(g.Members, username)
}

func (g Group) IsAdmin(username string) bool {
	return g.Admin == username
}

func (g Group) IsFull() bool {
	return len(g.Members) >= MaxGroupMembers
}
