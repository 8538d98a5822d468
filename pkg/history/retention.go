package history

import (
	"time"

	"github.com/sirupsen/logrus"
)

// RetentionPolicy bounds how much history a store keeps. The zero value
// keeps everything.
type RetentionPolicy struct {
	// MaxEntries keeps only the newest MaxEntries entries per suite.
	MaxEntries int
	// MaxAge drops entries older than Now-MaxAge.
	MaxAge time.Duration
	// Now is the reference time for MaxAge. Zero means time.Now().
	Now time.Time
}

// IsZero reports whether the policy keeps everything.
func (p RetentionPolicy) IsZero() bool {
	return p.MaxEntries <= 0 && p.MaxAge <= 0
}

// Retain trims every suite according to policy and returns the number of
// entries removed. Suites emptied by the policy are kept with no entries.
// When anything was removed, lastUpdate becomes the newest remaining date,
// or 0 when no entries remain.
func (s *Store) Retain(policy RetentionPolicy) int {
	if policy.IsZero() {
		return 0
	}

	var cutoff int64
	if policy.MaxAge > 0 {
		now := policy.Now
		if now.IsZero() {
			now = time.Now()
		}

		cutoff = now.Add(-policy.MaxAge).UnixMilli()
	}

	var (
		removed int
		newest  int64
	)

	for suite, entries := range s.suites {
		start := 0

		if policy.MaxEntries > 0 && len(entries) > policy.MaxEntries {
			start = len(entries) - policy.MaxEntries
		}

		// Dates are non-decreasing, so the first entry at or past the
		// cutoff marks the start of what survives.
		for start < len(entries) && entries[start].Date < cutoff {
			start++
		}

		kept := make([]Entry, len(entries)-start)
		copy(kept, entries[start:])

		commits := make(map[string]struct{}, len(kept))
		for i := range kept {
			commits[kept[i].Commit.ID] = struct{}{}
		}

		s.suites[suite] = kept
		s.commits[suite] = commits

		if start > 0 {
			s.log.WithFields(logrus.Fields{
				"suite":   suite,
				"removed": start,
				"kept":    len(kept),
			}).Debug("Trimmed suite history")
		}

		removed += start

		if len(kept) > 0 {
			newest = max(newest, kept[len(kept)-1].Date)
		}
	}

	if removed > 0 {
		s.newest = newest
		s.lastUpdate = newest
	}

	return removed
}
