package storage

import (
	"context"
	"errors"
	"fmt"
)

// Keys the authentication flow reads and writes.
const (
	KeyAuthToken       = "authToken"
	KeyAuthTokenSecret = "authTokenSecret"
	KeyConsumerKey     = "smugmugApiKey"
	KeyConsumerSecret  = "smugmugApiSecret"
)

// ErrNotFound is returned by drivers when a key has never been written.
var ErrNotFound = errors.New("storage: not found")

// Store is durable key/value storage for credential material. Read reports
// ok=false for a key that was never written.
type Store interface {
	Read(ctx context.Context, key string) (value string, ok bool, err error)
	Write(ctx context.Context, key, value string) error
}

// Deleter is implemented by stores that can remove keys.
type Deleter interface {
	Delete(ctx context.Context, key string) error
}

// Remove deletes key when s supports it and blanks it otherwise.
func Remove(ctx context.Context, s Store, key string) error {
	if d, ok := s.(Deleter); ok {
		return d.Delete(ctx, key)
	}
	return s.Write(ctx, key, "")
}

// PersistenceError reports a failed read or write. The device may no longer
// hold durable credentials.
type PersistenceError struct {
	Op  string // "read", "write", "delete"
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("storage: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
