// Package localstore provides the persistent key-value stores behind the
// overlay persistence layer. Two backends exist: a directory of JSON files
// (the default) and a single SQLite database.
package localstore

import "errors"

// ErrNotFound is returned by Get when the key has never been written or
// has been deleted.
var ErrNotFound = errors.New("localstore: key not found")

// Store is a minimal persistent key-value store. Implementations must be
// safe for concurrent use.
type Store interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
}
