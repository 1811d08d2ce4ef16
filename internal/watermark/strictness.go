package watermark

import "fmt"

// Strictness selects how a degraded year recompute is handled by callers
// that own a fetch client.
type Strictness string

const (
	// StrictnessDegrade accepts the documented approximation: an aged-out
	// year mark without history becomes today's observation.
	StrictnessDegrade Strictness = "degrade"

	// StrictnessRefetch makes the caller fetch a trailing-year window for
	// any symbol whose year mark would age out, so Apply recomputes the
	// true max instead of degrading.
	StrictnessRefetch Strictness = "refetch"
)

// ParseStrictness validates a configured strictness value.
func ParseStrictness(s string) (Strictness, error) {
	switch Strictness(s) {
	case StrictnessDegrade, StrictnessRefetch:
		return Strictness(s), nil
	default:
		return "", fmt.Errorf("invalid year strictness %q (expect degrade or refetch)", s)
	}
}
