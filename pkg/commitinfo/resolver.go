package commitinfo

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/go-github/v39/github"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/ethpandaops/benchtrack/pkg/history"
)

// Resolver fetches commit metadata from the GitHub API.
type Resolver struct {
	log    logrus.FieldLogger
	client *github.Client
}

// NewResolver creates a Resolver. An empty token makes anonymous requests;
// a non-empty apiURL targets a GitHub Enterprise server.
func NewResolver(log logrus.FieldLogger, token, apiURL string) (*Resolver, error) {
	httpClient := &http.Client{Timeout: 30 * time.Second}

	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(context.Background(), ts)
	}

	client := github.NewClient(httpClient)

	if apiURL != "" {
		var err error

		client, err = github.NewEnterpriseClient(apiURL, apiURL, httpClient)
		if err != nil {
			return nil, fmt.Errorf("creating github client for %s: %w", apiURL, err)
		}
	}

	return &Resolver{
		log:    log.WithField("component", "commitinfo"),
		client: client,
	}, nil
}

// Fetch returns the metadata of commit sha in owner/repo.
func (r *Resolver) Fetch(ctx context.Context, owner, repo, sha string) (*history.CommitInfo, error) {
	rc, _, err := r.client.Repositories.GetCommit(ctx, owner, repo, sha, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching commit %s: %w", sha, err)
	}

	c := rc.GetCommit()

	info := &history.CommitInfo{
		Author: history.Person{
			Email:    c.GetAuthor().GetEmail(),
			Name:     c.GetAuthor().GetName(),
			Username: rc.GetAuthor().GetLogin(),
		},
		Committer: history.Person{
			Email:    c.GetCommitter().GetEmail(),
			Name:     c.GetCommitter().GetName(),
			Username: rc.GetCommitter().GetLogin(),
		},
		ID:      rc.GetSHA(),
		Message: c.GetMessage(),
		URL:     rc.GetHTMLURL(),
	}

	if date := c.GetCommitter().GetDate(); !date.IsZero() {
		info.Timestamp = date.UTC().Format(time.RFC3339)
	}

	r.log.WithFields(logrus.Fields{
		"repo":   owner + "/" + repo,
		"commit": info.ID,
	}).Debug("Fetched commit")

	return info, nil
}

// FromEvent resolves the commit named by the event payload at path,
// fetching it from the API when the payload lacks full metadata.
func (r *Resolver) FromEvent(ctx context.Context, path string) (*history.CommitInfo, error) {
	ev, err := FromEvent(path)
	if err != nil {
		return nil, err
	}

	if ev.Commit != nil {
		return ev.Commit, nil
	}

	return r.Fetch(ctx, ev.Owner, ev.Repo, ev.SHA)
}
