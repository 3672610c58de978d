// Package domain contains core domain types for the club membership backend.
package domain

import (
	"time"
)

// PendingIntent is the single outstanding conversational intent for a
// member: what the bot is waiting for next from them. At most one intent
// is pending per member; setting a new one overwrites the previous.
type PendingIntent string

const (
	// IntentNone means no free-form reply is expected from the member.
	IntentNone PendingIntent = ""
	// IntentPaymentProof means the next payload is treated as a payment proof.
	IntentPaymentProof PendingIntent = "payment_proof"
	// IntentSupportMessage means the next text message is escalated to the
	// operator channel as a support query.
	IntentSupportMessage PendingIntent = "support"
)

// Valid reports whether the intent is one of the known values.
func (i PendingIntent) Valid() bool {
	switch i {
	case IntentNone, IntentPaymentProof, IntentSupportMessage:
		return true
	}
	return false
}

// MemberRecord is the persisted state for one member, keyed by their
// numeric transport identity. The zero value is the well-defined record
// for a member the system has never seen.
type MemberRecord struct {
	MemberID        int64
	Username        string
	SubscriptionEnd *time.Time // inclusive calendar date; nil = never granted
	PendingIntent   PendingIntent
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HasGrant reports whether the member has ever been granted access.
func (m *MemberRecord) HasGrant() bool {
	return m.SubscriptionEnd != nil
}

// MemberPatch is a field-level partial update of a MemberRecord. Only
// non-nil fields are applied; the store merges the patch into the current
// persisted value atomically per member.
type MemberPatch struct {
	Username        *string
	SubscriptionEnd *time.Time
	PendingIntent   *PendingIntent
}

// IsEmpty reports whether the patch changes nothing.
func (p MemberPatch) IsEmpty() bool {
	return p.Username == nil && p.SubscriptionEnd == nil && p.PendingIntent == nil
}
