package history

import (
	"fmt"
	"math"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// ValidateEntry checks an entry before it is allowed anywhere near the
// store. It returns nil or a *MalformedEntryError listing every problem.
func ValidateEntry(suite string, entry *Entry) error {
	var problems *multierror.Error

	if suite == "" {
		problems = multierror.Append(problems, fmt.Errorf("suite name is required"))
	}

	if entry.Commit.ID == "" {
		problems = multierror.Append(problems, fmt.Errorf("commit.id is required"))
	}

	if !entry.Tool.Valid() {
		problems = multierror.Append(problems, fmt.Errorf("unknown tool %q", entry.Tool))
	}

	if entry.Date <= 0 {
		problems = multierror.Append(problems, fmt.Errorf("date must be a positive epoch-millis value"))
	}

	if len(entry.Benches) == 0 {
		problems = multierror.Append(problems, fmt.Errorf("benches must not be empty"))
	}

	seen := make(map[string]struct{}, len(entry.Benches))

	for i, b := range entry.Benches {
		if b.Name == "" {
			problems = multierror.Append(problems, fmt.Errorf("bench %d: name is required", i))

			continue
		}

		if _, dup := seen[b.Name]; dup {
			problems = multierror.Append(problems, fmt.Errorf("bench %q: duplicate name", b.Name))
		}

		seen[b.Name] = struct{}{}

		if math.IsNaN(b.Value) || math.IsInf(b.Value, 0) {
			problems = multierror.Append(problems, fmt.Errorf("bench %q: value must be finite", b.Name))
		}
	}

	if problems == nil {
		return nil
	}

	return newMalformed(suite, entry.Commit.ID, problems)
}

func newMalformed(suite, commitID string, problems *multierror.Error) *MalformedEntryError {
	problems.ErrorFormat = listProblems

	return &MalformedEntryError{
		Suite:    suite,
		CommitID: commitID,
		Problems: problems,
	}
}

func listProblems(errs []error) string {
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}

	return strings.Join(msgs, "; ")
}
