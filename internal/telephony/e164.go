package telephony

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ttacon/libphonenumber"
)

var ErrInvalidNumber = errors.New("telephony: invalid phone number")

// defaultRegion is used for numbers supplied without a leading '+'.
const defaultRegion = "US"

// NormalizeE164 parses raw and returns it in E.164 form. Ownership is the
// carrier's call; this only rejects strings that cannot be a phone number.
func NormalizeE164(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidNumber)
	}
	num, err := libphonenumber.Parse(raw, defaultRegion)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidNumber, err)
	}
	// Possible rather than valid: carrier-owned test ranges (e.g. 555) must pass.
	if !libphonenumber.IsPossibleNumber(num) {
		return "", fmt.Errorf("%w: %q", ErrInvalidNumber, raw)
	}
	return libphonenumber.Format(num, libphonenumber.E164), nil
}

// TrunkFriendlyName builds a carrier trunk name that embeds the agent id and a
// millisecond timestamp, so retries for the same agent never collide.
// Only [A-Za-z0-9-] survive; everything else becomes '-'.
func TrunkFriendlyName(agentID string, now time.Time) string {
	var b strings.Builder
	for _, r := range agentID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	id := b.String()
	if len(id) > 40 {
		id = id[:40]
	}
	return fmt.Sprintf("agent-%s-%d", id, now.UnixMilli())
}
