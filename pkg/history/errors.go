package history

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// DuplicateCommitError is returned when an entry for the same commit has
// already been recorded for a suite. Callers re-running CI for a commit
// usually treat it as a no-op.
type DuplicateCommitError struct {
	Suite    string
	CommitID string
}

func (e *DuplicateCommitError) Error() string {
	return fmt.Sprintf("commit %s already recorded for suite %q", e.CommitID, e.Suite)
}

// UnknownSuiteError is returned when querying a suite that was never created.
type UnknownSuiteError struct {
	Suite string
}

func (e *UnknownSuiteError) Error() string {
	return fmt.Sprintf("unknown suite %q", e.Suite)
}

// MalformedEntryError is returned when an entry fails validation. It carries
// every problem found, not just the first.
type MalformedEntryError struct {
	Suite    string
	CommitID string
	Problems *multierror.Error
}

func (e *MalformedEntryError) Error() string {
	what := "entry"
	if e.CommitID != "" {
		what = "entry for commit " + e.CommitID
	}

	return fmt.Sprintf("malformed %s in suite %q: %v", what, e.Suite, e.Problems.ErrorOrNil())
}

// Unwrap exposes the individual validation problems.
func (e *MalformedEntryError) Unwrap() error {
	return e.Problems.ErrorOrNil()
}
