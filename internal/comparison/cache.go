// Package comparison aggregates the evaluations of an RFP's proposals into
// a cached cross-vendor comparison and decides when that cache is stale.
package comparison

import (
	"time"

	"github.com/kalambet/procura/internal/rfp"
)

// IsValid reports whether a cached comparison still describes proposals.
// The cache must cover exactly as many proposals as exist now, and must be
// no older than the most recently updated proposal. When no proposal
// carries an update time the count check alone decides.
func IsValid(cache *rfp.ComparisonResult, updatedAt *time.Time, proposals []rfp.Proposal) bool {
	if cache == nil {
		return false
	}
	if len(cache.Evaluations) != len(proposals) {
		return false
	}
	var newest time.Time
	for _, p := range proposals {
		if p.UpdatedAt.After(newest) {
			newest = p.UpdatedAt
		}
	}
	if newest.IsZero() {
		return true
	}
	if updatedAt == nil {
		return false
	}
	return !updatedAt.Before(newest)
}
