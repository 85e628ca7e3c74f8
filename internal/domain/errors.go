// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a concurrent modification conflict.
var ErrConflict = errors.New("conflict: resource was modified by another request")

// ErrInvalidRepoURL indicates a repository URL that is neither HTTPS nor SSH form.
var ErrInvalidRepoURL = errors.New("invalid repository url")

// ErrConvoyCompleted indicates an attempt to add tasks to a convoy that already completed.
var ErrConvoyCompleted = errors.New("convoy already completed")
