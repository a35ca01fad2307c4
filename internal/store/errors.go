package store

import (
	"errors"

	"github.com/hyperjump/tana/internal/vector"
)

var (
	// ErrCorruptWorkspaceState is returned when a workspace's index and ledger
	// on disk do not belong together or violate the ledger invariants.
	ErrCorruptWorkspaceState = errors.New("corrupt workspace state")

	// ErrInvalidWorkspaceID is returned for ids that are not safe to use as a path component.
	ErrInvalidWorkspaceID = errors.New("invalid workspace id")

	// ErrIO wraps disk read and write failures.
	ErrIO = errors.New("workspace i/o error")

	// ErrLengthMismatch is returned when parallel inputs differ in length.
	ErrLengthMismatch = errors.New("length mismatch")

	// ErrDimensionMismatch is returned when a vector does not have the store's dimension.
	ErrDimensionMismatch = vector.ErrDimensionMismatch

	// ErrClosed is returned by operations on a closed Store.
	ErrClosed = errors.New("store closed")
)
