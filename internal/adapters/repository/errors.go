package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotFound     = errors.New("record not found")
	ErrReadOnly     = errors.New("write in read-only transaction")
	ErrClosed       = errors.New("store closed")
	ErrPathRequired = errors.New("path is required for a persistent store")
)
