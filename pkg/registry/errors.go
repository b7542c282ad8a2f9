package registry

import "errors"

var (
	ErrNilChannel      = errors.New("channel cannot be nil")
	ErrChannelNotFound = errors.New("channel not found")
	ErrChannelExists   = errors.New("channel already exists")
)
