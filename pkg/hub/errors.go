package hub

import "errors"

var (
	ErrSameChannel = errors.New("cannot synchronize a channel with itself")
	ErrClosed      = errors.New("hub closed")
)
