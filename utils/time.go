package utils

import (
	"sync"
	"time"
)

const envTimezone = "PIX_TIMEZONE"

const defaultTimezone = "America/Sao_Paulo"

var (
	canonicalOnce sync.Once
	canonicalLoc  *time.Location
)

// CanonicalLocation resolves the timezone every timestamp in the system is
// normalized to. Bank notification emails state local times without an
// offset, so the location named by PIX_TIMEZONE is the single source of
// truth. Falls back to a fixed UTC-3 zone when the tz database entry is
// missing from the host.
func CanonicalLocation() *time.Location {
	canonicalOnce.Do(func() {
		name := GetEnv(envTimezone, defaultTimezone)

		loc, err := time.LoadLocation(name)
		if err != nil {
			loc = time.FixedZone("-03", -3*60*60)
		}
		canonicalLoc = loc
	})

	return canonicalLoc
}

// ToCanonical converts a timestamp to the canonical timezone. Every boundary
// that produces a local time (email parsing, deadline stamping) goes through
// here exactly once.
func ToCanonical(t time.Time) time.Time {
	return t.In(CanonicalLocation())
}
