package entities

import "errors"

// Sentinel errors. Callers wrap them with context and match with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")
	ErrUnsupportedType   = errors.New("unsupported file type")
	ErrDuplicate         = errors.New("already exists")
	ErrUpstream          = errors.New("upstream call failed")
	ErrConsistency       = errors.New("document store and vector store diverged")
	ErrAuth              = errors.New("could not validate credentials")
	ErrConfig            = errors.New("invalid configuration")
	ErrReindexInProgress = errors.New("reindex already in progress")
)
