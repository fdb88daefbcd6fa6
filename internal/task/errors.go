package task

import (
	"errors"
	"fmt"
)

// ErrInvalid is the parent of every validation failure. A call that returns
// an error wrapping ErrInvalid left the store unchanged.
var ErrInvalid = errors.New("invalid input")

var (
	ErrEmptyText       = fmt.Errorf("%w: text must not be empty", ErrInvalid)
	ErrIndexOutOfRange = fmt.Errorf("%w: index out of range", ErrInvalid)
	ErrUnknownFilter   = fmt.Errorf("%w: unknown filter", ErrInvalid)
	ErrUnknownPriority = fmt.Errorf("%w: unknown priority", ErrInvalid)
)

var (
	// ErrPersist means the mutation was applied in memory but the write to
	// storage failed. The store stays usable.
	ErrPersist = errors.New("persist tasks")

	// ErrInvalidSnapshot means an import was rejected; nothing changed.
	ErrInvalidSnapshot = errors.New("invalid snapshot")
)
