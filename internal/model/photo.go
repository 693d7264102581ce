// Package model defines shared types used across the sync engine, the
// provider client, and the cache store.
package model

import "time"

// Photo is the locally cached representation of one remote album item plus
// its parsed description. Instances are created by the sync engine and owned
// by the cache store from the moment they are upserted.
type Photo struct {
	// ID is the provider-assigned media item identifier. Immutable, unique,
	// and the cache's primary key.
	ID string

	// Name is the first non-empty line of the remote description, shown as
	// the missionary's name on the board.
	Name string

	// ExtraLines holds the remaining description lines in order (mission
	// name, dates serving, and so on).
	ExtraLines []string

	// Fingerprint is the remote change marker computed from the listing
	// metadata. When it differs from the remote item's current fingerprint
	// the photo is re-fetched.
	Fingerprint string

	// FileName is the content file under the cache's photos directory.
	// Owned exclusively by the cache store.
	FileName string

	// FetchedAt is when the content was last downloaded.
	FetchedAt time.Time
}
