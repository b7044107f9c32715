// Package domain contains core concepts of the chat relay.
// This file defines Account, the persisted identity behind a login.
package domain

import "time"

type Account struct {
	Username   string
	Credential string // argon2id encoded hash, never the plain password
	Online     bool
	CreatedAt  time.Time
}
