// Package repository holds the storage sentinels shared by the sqlite layer
// and the services that consume it.
package repository

import "errors"

var (
	// ErrNotFound means no row matched, or a guarded update touched nothing.
	ErrNotFound = errors.New("not found")

	// ErrConflict means a unique key already holds the value.
	ErrConflict = errors.New("conflict: row already exists")

	// ErrForeignKeyViolation means a referenced row is missing.
	ErrForeignKeyViolation = errors.New("foreign key violation")

	// ErrInvalidInput means the write was rejected before reaching storage.
	ErrInvalidInput = errors.New("invalid input")
)
