package errors

import "fmt"

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")
	ErrEmptyWords  = fmt.Errorf("no words have been found")

	// ErrFraming is fatal to a session: the connection is closed without a response.
	ErrFraming = fmt.Errorf("framing error")

	ErrUserAlreadyExists  = fmt.Errorf("username already exists")
	ErrUserNotFound       = fmt.Errorf("user not found")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidName        = fmt.Errorf("invalid name")
	ErrInvalidPassword    = fmt.Errorf("invalid password")

	ErrGroupAlreadyExists  = fmt.Errorf("group already exists")
	ErrGroupNotFound       = fmt.Errorf("group not found")
	ErrGroupFull           = fmt.Errorf("group is full")
	ErrNotGroupMember      = fmt.Errorf("not a member of group")
	ErrNotGroupAdmin       = fmt.Errorf("only the group admin can kick members")
	ErrAdminCannotLeave    = fmt.Errorf("group admin cannot leave the group")
	ErrAdminCannotBeKicked = fmt.Errorf("group admin cannot be kicked")

	ErrSessionClosed = fmt.Errorf("session closed")
	ErrQueueFull     = fmt.Errorf("outbound queue full")
)
