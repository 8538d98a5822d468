// Package commitinfo resolves the commit metadata recorded with each entry.
package commitinfo

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ethpandaops/benchtrack/pkg/history"
)

// Event is the subset of a GitHub Actions event payload naming the commit
// a benchmark ran against.
type Event struct {
	// Commit is set when the payload carries full commit metadata (push).
	Commit *history.CommitInfo

	// Owner, Repo and SHA identify a commit that must be fetched from the
	// API (pull_request).
	Owner string
	Repo  string
	SHA   string
}

type eventPerson struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

type eventPayload struct {
	HeadCommit *struct {
		ID        string      `json:"id"`
		Message   string      `json:"message"`
		Timestamp string      `json:"timestamp"`
		URL       string      `json:"url"`
		Author    eventPerson `json:"author"`
		Committer eventPerson `json:"committer"`
	} `json:"head_commit"`
	PullRequest *struct {
		Head struct {
			SHA string `json:"sha"`
		} `json:"head"`
	} `json:"pull_request"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
}

// FromEvent reads the event payload at path (usually $GITHUB_EVENT_PATH).
func FromEvent(path string) (*Event, error) {
	raw, err := os.ReadFile(path) //nolint:gosec // path from the command line
	if err != nil {
		return nil, fmt.Errorf("reading event payload: %w", err)
	}

	var payload eventPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("parsing event payload: %w", err)
	}

	if hc := payload.HeadCommit; hc != nil && hc.ID != "" {
		return &Event{Commit: &history.CommitInfo{
			Author:    history.Person(hc.Author),
			Committer: history.Person(hc.Committer),
			ID:        hc.ID,
			Message:   hc.Message,
			Timestamp: hc.Timestamp,
			URL:       hc.URL,
		}}, nil
	}

	if pr := payload.PullRequest; pr != nil && pr.Head.SHA != "" {
		owner, repo, ok := strings.Cut(payload.Repository.FullName, "/")
		if !ok {
			return nil, fmt.Errorf("event payload has no repository full_name")
		}

		return &Event{Owner: owner, Repo: repo, SHA: pr.Head.SHA}, nil
	}

	return nil, fmt.Errorf("event payload has neither head_commit nor pull_request head")
}
