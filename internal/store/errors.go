package store

import "errors"

// ErrNotFound is returned when a contact lookup matches no document.
var ErrNotFound = errors.New("store: not found")
