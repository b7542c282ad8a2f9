package series

import "errors"

var (
	ErrOutOfOrder       = errors.New("sample timestamp out of order")
	ErrInvalidTimestamp = errors.New("sample timestamp is not a finite number")
	ErrClosed           = errors.New("series buffer closed")
)
