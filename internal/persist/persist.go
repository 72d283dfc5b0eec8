package persist

import "fmt"

// #region adapter

// Adapter is durable key/value storage for serialized profiles.
// Load returns (nil, nil) when no document exists for the key.
type Adapter interface {
	Load(key string) ([]byte, error)
	Save(key string, data []byte) error
	Close() error
}

// #endregion adapter

// #region error

// Error wraps a storage failure with the operation and key that caused it.
type Error struct {
	Op  string // "load" | "save"
	Key string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("persist %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// #endregion error
