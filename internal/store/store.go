// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/sdmedia/clubbot/internal/domain"
)

// Repository defines the interface for persisting member records.
//
// All mutation is atomic per member: concurrent calls for the same member
// serialize so no patch is lost, and the conditional operations
// (ConsumeIntent, GrantSubscription) report false to the loser of a race
// instead of applying twice.
type Repository interface {
	// GetMember retrieves a member record. An unknown member yields the
	// zero record with MemberID set, never an error.
	GetMember(ctx context.Context, memberID int64) (domain.MemberRecord, error)

	// UpdateMember applies a field-level merge of patch to the current
	// persisted record, creating it if absent, and returns the new value.
	UpdateMember(ctx context.Context, memberID int64, patch domain.MemberPatch) (domain.MemberRecord, error)

	// ConsumeIntent clears the member's pending intent only if it currently
	// equals expected. Returns true when this call performed the clear, so
	// exactly one of any set of concurrent consumers wins.
	ConsumeIntent(ctx context.Context, memberID int64, expected domain.PendingIntent) (bool, error)

	// GrantSubscription sets the member's subscription end-date unless they
	// already hold a grant that is still live on today's date. Returns true
	// when the grant was applied, false when it was refused.
	GrantSubscription(ctx context.Context, memberID int64, end, today time.Time) (bool, error)

	// Snapshot enumerates all member records. The result is self-consistent
	// (every record existed at some instant during the call) but is not
	// linearizable with concurrent updates.
	Snapshot(ctx context.Context) ([]domain.MemberRecord, error)

	// Ping verifies the durable medium is reachable.
	Ping(ctx context.Context) error

	// Close closes the underlying database.
	Close() error
}
