package storage

import "errors"

var (
	// ErrNotFound is returned when a realm or token does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrDuplicate is returned when a uniqueness constraint is violated,
	// e.g. a second realm for the same (account, domain, realm_type) or a
	// second token with the same name under one realm.
	ErrDuplicate = errors.New("resource already exists")
)
