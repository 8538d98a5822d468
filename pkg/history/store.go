package history

import (
	"fmt"
	"iter"
	"sort"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

// Store owns a benchmark history document and keeps its invariants:
// chronological, commit-unique suites whose appends share one tool, and a
// lastUpdate equal to the newest entry date after any mutation. A loaded
// document reports its stored lastUpdate until it is first mutated.
//
// A Store is not safe for concurrent use. It performs no I/O; persisting
// the document and serializing concurrent writers is the caller's job (see
// the storage package).
type Store struct {
	log      logrus.FieldLogger
	alertCfg AlertConfig

	lastUpdate int64
	newest     int64
	repoURL    string
	suites     map[string][]Entry
	commits    map[string]map[string]struct{}
}

// Option configures a Store.
type Option func(*Store)

// WithAlertConfig sets the configuration Append uses for regression checks.
func WithAlertConfig(cfg AlertConfig) Option {
	return func(s *Store) {
		s.alertCfg = cfg
	}
}

// New creates an empty store for the given repository.
func New(log logrus.FieldLogger, repoURL string, opts ...Option) *Store {
	s := &Store{
		log:      log.WithField("component", "history"),
		alertCfg: DefaultAlertConfig(),
		repoURL:  repoURL,
		suites:   make(map[string][]Entry, 1),
		commits:  make(map[string]map[string]struct{}, 1),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// FromData wraps a decoded document. It rejects documents that record the
// same commit twice in one suite.
func FromData(log logrus.FieldLogger, data *Data, opts ...Option) (*Store, error) {
	s := New(log, data.RepoURL, opts...)
	s.lastUpdate = data.LastUpdate

	for suite, entries := range data.Entries {
		seen := make(map[string]struct{}, len(entries))

		var problems *multierror.Error

		for _, e := range entries {
			if _, dup := seen[e.Commit.ID]; dup {
				problems = multierror.Append(problems,
					fmt.Errorf("commit %s recorded more than once", e.Commit.ID))
			}

			seen[e.Commit.ID] = struct{}{}
		}

		if problems != nil {
			return nil, newMalformed(suite, "", problems)
		}

		cloned := make([]Entry, len(entries))
		for i := range entries {
			cloned[i] = entries[i].clone()
		}

		s.suites[suite] = cloned
		s.commits[suite] = seen

		if n := len(cloned); n > 0 {
			s.newest = max(s.newest, cloned[n-1].Date)
		}
	}

	return s, nil
}

// Append validates entry, evaluates it against the suite's history and
// records it. Nothing is recorded when an error is returned.
func (s *Store) Append(suite string, entry Entry) (*AppendResult, error) {
	if err := ValidateEntry(suite, &entry); err != nil {
		return nil, err
	}

	if _, dup := s.commits[suite][entry.Commit.ID]; dup {
		return nil, &DuplicateCommitError{Suite: suite, CommitID: entry.Commit.ID}
	}

	if entries := s.suites[suite]; len(entries) > 0 {
		latest := entries[len(entries)-1]

		var problems *multierror.Error

		if entry.Date < latest.Date {
			problems = multierror.Append(problems,
				fmt.Errorf("date %d precedes the latest entry date %d", entry.Date, latest.Date))
		}

		// A suite keeps a single tool.
		if entry.Tool != latest.Tool {
			problems = multierror.Append(problems,
				fmt.Errorf("tool %q does not match the suite's tool %q", entry.Tool, latest.Tool))
		}

		if problems != nil {
			return nil, newMalformed(suite, entry.Commit.ID, problems)
		}
	}

	stored := entry.clone()
	alerts := s.RegressionCheck(suite, stored, s.alertCfg)

	if s.commits[suite] == nil {
		s.commits[suite] = make(map[string]struct{}, 16)
	}

	s.suites[suite] = append(s.suites[suite], stored)
	s.commits[suite][stored.Commit.ID] = struct{}{}
	s.newest = max(s.newest, stored.Date)
	s.lastUpdate = s.newest

	s.log.WithFields(logrus.Fields{
		"suite":   suite,
		"commit":  stored.Commit.ID,
		"benches": len(stored.Benches),
		"alerts":  len(alerts),
	}).Debug("Appended entry")

	return &AppendResult{Stored: stored.clone(), Alerts: alerts}, nil
}

// RegressionCheck evaluates every bench of entry against the prior values
// of the same benchmark in suite. A suite or benchmark with no history
// yields no alerts.
func (s *Store) RegressionCheck(suite string, entry Entry, cfg AlertConfig) []Alert {
	entries := s.suites[suite]
	if len(entries) == 0 {
		return nil
	}

	var alerts []Alert

	for _, cur := range entry.Benches {
		window := make([]priorSample, 0, len(entries))

		for i := range entries {
			// Entries after an already recorded one are not prior to it.
			if entries[i].Commit.ID == entry.Commit.ID {
				break
			}

			if b, ok := entries[i].bench(cur.Name); ok {
				window = append(window, priorSample{
					value:    b.Value,
					commitID: entries[i].Commit.ID,
				})
			}
		}

		if alert := cfg.evaluate(entry.Tool, cur, window); alert != nil {
			alerts = append(alerts, *alert)
		}
	}

	return alerts
}

// Series returns the samples of benchName in suite, oldest first. The
// sequence is finite and may be ranged over any number of times; it reflects
// the suite as it was when Series was called.
func (s *Store) Series(suite, benchName string) (iter.Seq[Point], error) {
	entries, ok := s.suites[suite]
	if !ok {
		return nil, &UnknownSuiteError{Suite: suite}
	}

	return func(yield func(Point) bool) {
		for i := range entries {
			b, ok := entries[i].bench(benchName)
			if !ok {
				continue
			}

			if !yield(Point{
				Date:     entries[i].Date,
				Value:    b.Value,
				CommitID: entries[i].Commit.ID,
			}) {
				return
			}
		}
	}, nil
}

// Suites returns the suite names, sorted.
func (s *Store) Suites() []string {
	out := make([]string, 0, len(s.suites))
	for name := range s.suites {
		out = append(out, name)
	}

	sort.Strings(out)

	return out
}

// Entries returns a copy of the suite's entries, oldest first.
func (s *Store) Entries(suite string) ([]Entry, error) {
	entries, ok := s.suites[suite]
	if !ok {
		return nil, &UnknownSuiteError{Suite: suite}
	}

	out := make([]Entry, len(entries))
	for i := range entries {
		out[i] = entries[i].clone()
	}

	return out, nil
}

// BenchNames returns the distinct benchmark names recorded in suite, sorted.
func (s *Store) BenchNames(suite string) ([]string, error) {
	entries, ok := s.suites[suite]
	if !ok {
		return nil, &UnknownSuiteError{Suite: suite}
	}

	seen := make(map[string]struct{}, 16)
	for i := range entries {
		for _, b := range entries[i].Benches {
			seen[b.Name] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}

	sort.Strings(out)

	return out, nil
}

// LastUpdate returns the newest entry date in epoch milliseconds. It is 0
// once retention has removed every entry.
func (s *Store) LastUpdate() int64 {
	return s.lastUpdate
}

// RepoURL returns the repository the history belongs to.
func (s *Store) RepoURL() string {
	return s.repoURL
}

// Data returns the document for serialization.
func (s *Store) Data() *Data {
	entries := make(map[string][]Entry, len(s.suites))
	for suite := range s.suites {
		entries[suite], _ = s.Entries(suite)
	}

	return &Data{
		LastUpdate: s.lastUpdate,
		RepoURL:    s.repoURL,
		Entries:    entries,
	}
}
