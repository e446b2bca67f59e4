// Package store persists episode records.
//
// Every operation is atomic for a single record; there is no multi-record
// transaction. Updates use optimistic concurrency: the episode's Version
// must match the stored version or the write is rejected with
// ErrVersionConflict, so two concurrent learning passes cannot silently
// lose each other's writes.
package store

import (
	"context"
	"errors"

	"github.com/fyrsmithlabs/recalld/internal/episode"
)

// Sentinel errors for store operations.
var (
	// ErrNotFound is returned when no record matches the given ID.
	ErrNotFound = errors.New("episode not found")

	// ErrVersionConflict is returned when an update carries a stale version.
	ErrVersionConflict = errors.New("episode version conflict")

	// ErrAmbiguousID is returned when a short ID prefix matches more than one record.
	ErrAmbiguousID = errors.New("episode ID prefix is ambiguous")
)

// RecordError describes a persisted record that could not be read.
type RecordError struct {
	// Path or key of the offending record.
	Ref string
	// Err is the underlying parse or read error.
	Err error
}

func (r RecordError) Error() string {
	return r.Ref + ": " + r.Err.Error()
}

func (r RecordError) Unwrap() error { return r.Err }

// ListResult is the outcome of a full listing.
//
// Malformed records do not abort the listing; they are collected into
// Errors so corruption stays auditable instead of invisible.
type ListResult struct {
	Episodes []*episode.Episode
	Errors   []RecordError
}

// Store is the record store boundary of the learning core.
type Store interface {
	// Save persists a new episode. The stored version starts at 1.
	Save(ctx context.Context, ep *episode.Episode) error

	// List returns all readable episodes plus per-record read errors.
	List(ctx context.Context) (*ListResult, error)

	// Load returns the episode with the given ID. IDs may be abbreviated
	// to a unique prefix of at least 8 characters.
	Load(ctx context.Context, id string) (*episode.Episode, error)

	// Update overwrites the stored record if ep.Version matches the
	// stored version, then increments the version. Returns
	// ErrVersionConflict on a stale write and ErrNotFound when the
	// record no longer exists.
	Update(ctx context.Context, ep *episode.Episode) error

	// Delete removes the record. Returns ErrNotFound when absent.
	Delete(ctx context.Context, id string) error
}
