package core

import "errors"

var (
	// ErrNotFound marks a missing room snapshot or asset.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks a write to an already-existing, write-once key.
	ErrConflict = errors.New("already exists")

	// ErrInvalidAsset marks an upload rejected by validation (bad content
	// type or empty body).
	ErrInvalidAsset = errors.New("invalid asset")
)
