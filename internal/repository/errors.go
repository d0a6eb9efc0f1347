package repository

import "errors"

// ErrNotFound is returned by every store when the requested row or document does not exist.
var ErrNotFound = errors.New("record not found")
