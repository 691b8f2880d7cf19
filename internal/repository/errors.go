// Package repository holds the sentinel errors shared by every storage
// implementation. Consumers match on them with errors.Is.
package repository

import "errors"

var (
	ErrNotFound        = errors.New("record not found")
	ErrVersionConflict = errors.New("version conflict")
	ErrExpired         = errors.New("undo record expired")
	ErrAlreadyRestored = errors.New("undo record already restored")
	ErrDuplicate       = errors.New("record already exists")
)
