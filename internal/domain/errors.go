package domain

import "errors"

var (
	// ErrNotFound indicates resource not found
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidRequest indicates invalid request
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUnauthorized indicates unauthorized access
	ErrUnauthorized = errors.New("unauthorized")
	// ErrRunActive indicates the run has not reached a terminal state yet
	ErrRunActive = errors.New("run still in progress")
	// ErrEmptyResponse indicates the model returned no usable output
	ErrEmptyResponse = errors.New("model returned empty response")
)
