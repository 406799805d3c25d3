package weather

import "time"

// FreshnessPolicy decides whether a stored snapshot may be served without
// asking upstream.
type FreshnessPolicy struct {
	now func() time.Time
}

// NewFreshnessPolicy returns a policy using now as its clock. A nil clock
// falls back to time.Now.
func NewFreshnessPolicy(now func() time.Time) FreshnessPolicy {
	if now == nil {
		now = time.Now
	}
	return FreshnessPolicy{now: now}
}

// AgeMinutes returns the whole minutes between now and LastUpdated, seconds
// discarded. A snapshot without LastUpdated has age 0.
func (p FreshnessPolicy) AgeMinutes(s WeatherSnapshot) int {
	if s.LastUpdated.IsZero() {
		return 0
	}
	d := p.clock().Sub(s.LastUpdated)
	if d < 0 {
		d = -d
	}
	return int(d / time.Minute)
}

// IsFresh reports AgeMinutes(s) <= maxAgeMinutes. The boundary is inclusive
// and a snapshot without LastUpdated is never fresh.
func (p FreshnessPolicy) IsFresh(s WeatherSnapshot, maxAgeMinutes int) bool {
	if s.LastUpdated.IsZero() {
		return false
	}
	return p.AgeMinutes(s) <= maxAgeMinutes
}

func (p FreshnessPolicy) clock() time.Time {
	if p.now == nil {
		return time.Now()
	}
	return p.now()
}

// RecencyCutoff is the boundary stores filter FindRecentByCity on: a row
// qualifies when LastUpdated is strictly after the returned instant. It
// matches IsFresh's whole-minute truncation, so age 30m59s with a 30 minute
// TTL passes both.
func RecencyCutoff(now time.Time, maxAgeMinutes int) time.Time {
	return now.Add(-time.Duration(maxAgeMinutes+1) * time.Minute)
}
