package dirtree

import "errors"

var (
	// ErrNotFound indicates that a position or ref does not address a node.
	ErrNotFound = errors.New("dirtree: node not found")

	// ErrClosed indicates that the cache has been torn down.
	ErrClosed = errors.New("dirtree: cache closed")
)
