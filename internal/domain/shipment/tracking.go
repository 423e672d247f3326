package shipment

import (
	"strings"

	"github.com/google/uuid"
)

// TrackingPrefix starts every tracking number.
const TrackingPrefix = "TRK-"

const trackingSuffixLen = 12

// NewTrackingNumber generates a candidate tracking number of the form
// TRK- followed by 12 uppercase hex characters. Uniqueness is enforced by the
// repository; callers regenerate on collision.
func NewTrackingNumber() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return TrackingPrefix + strings.ToUpper(hex[:trackingSuffixLen])
}
