package domain

import "context"

// Catalog is the registry's private index of records and the persistent
// high-water mark of allocated identifiers. Implementations must keep the
// high-water mark monotonic: nothing ever lowers it.
type Catalog interface {
	// AllocatedMax returns the highest identifier ever allocated, 0 if none.
	AllocatedMax(ctx context.Context) (int, error)

	// Allocate reserves the next identifier and durably records it before
	// returning, so it is consumed even if the caller then fails.
	// Returns AllocationExhaustedError when the space is used up.
	Allocate(ctx context.Context) (Identifier, error)

	// ReconcileAllocated raises the high-water mark to observedMax if it is
	// lower (for example after files were copied in by hand) and returns the
	// resulting value.
	ReconcileAllocated(ctx context.Context, observedMax int) (int, error)

	// Insert adds a live record. Returns DuplicateNameError if another live
	// record holds the same logical name.
	Insert(ctx context.Context, rec Record) error

	// Update replaces the logical name and summary of a live record.
	// Returns NotFoundError or DuplicateNameError.
	Update(ctx context.Context, rec Record) error

	// Tombstone retires a live record. Its identifier and name leave the
	// live set but the identifier stays counted by AllocatedMax.
	// Returns NotFoundError if no live record exists.
	Tombstone(ctx context.Context, id Identifier) error

	// FindByIdentifier returns the live record for id or NotFoundError.
	FindByIdentifier(ctx context.Context, id Identifier) (Record, error)

	// FindByName returns the live record holding name or NotFoundError.
	// The match is exact and case-sensitive.
	FindByName(ctx context.Context, name string) (Record, error)

	// List returns every live record ordered by logical name (byte order),
	// then identifier.
	List(ctx context.Context) ([]Record, error)

	// Close releases the underlying store.
	Close() error
}
