// Package model holds the entities of the partner platform, their status
// enums and transition rules, and the request payloads the HTTP layer
// binds and validates.
package model

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// ID prefixes. Every primary key is prefix + ULID so ids sort by creation
// time and tell you what they point at.
const (
	PrefixProgram          = "prog_"
	PrefixPartner          = "pn_"
	PrefixEnrollment       = "pge_"
	PrefixReward           = "rw_"
	PrefixDiscount         = "disc_"
	PrefixCommission       = "cm_"
	PrefixPayout           = "po_"
	PrefixInvoice          = "inv_"
	PrefixFraudGroup       = "frg_"
	PrefixFraudEvent       = "fre_"
	PrefixBounty           = "bnty_"
	PrefixBountySubmission = "bnsub_"
	PrefixMessage          = "msg_"
	PrefixAuditLog         = "audit_"
	PrefixWebhook          = "wh_"
	PrefixWebhookEvent     = "evt_"
)

// NewID returns prefix followed by a new ULID.
func NewID(prefix string) string {
	return prefix + ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}
