package replay

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyStarted = errors.New("replay already started")
	ErrBadRow         = errors.New("bad row")
)

func NewOpenError(path string, err error) error {
	return fmt.Errorf("failed to open source %q: %w", path, err)
}

func newRowError(path string, line int, format string, args ...any) error {
	return fmt.Errorf("%w: %s:%d: %s", ErrBadRow, path, line, fmt.Sprintf(format, args...))
}
