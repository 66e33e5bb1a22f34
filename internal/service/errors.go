package service

import "errors"

var (
	ErrNotFound            = errors.New("feedback not found")
	ErrInvalidSubmission   = errors.New("invalid submission")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrUpstreamUnavailable = errors.New("text generation unavailable")
)
