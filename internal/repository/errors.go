package repository

import "errors"

var (
	ErrNotFound         = errors.New("document not found")
	ErrDuplicateEditKey = errors.New("edit key already in use")
)
