package store

import "fmt"

// PersistenceError reports a record or summary that could not be written.
type PersistenceError struct {
	Path     string
	Attempts int
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist %s after %d attempt(s): %v", e.Path, e.Attempts, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// KeyCollisionError reports two images that would be stored under the same file.
type KeyCollisionError struct {
	Key    string
	First  string
	Second string
}

func (e *KeyCollisionError) Error() string {
	if e.Second == "" {
		return fmt.Sprintf("image %s maps to reserved file name %s", e.First, e.Key)
	}
	return fmt.Sprintf("images %s and %s both map to %s", e.First, e.Second, e.Key)
}
