// Package event defines the subset of GitHub webhook payloads that hookcord
// understands, and normalizes GitHub event types into notification kinds.
package event

import (
	"errors"
	"fmt"
)

// Kind is a normalized event category.
type Kind string

// Recognized kinds. Note that GitHub's "fork" event maps to KindForks.
const (
	KindPush        Kind = "push"
	KindPullRequest Kind = "pull_request"
	KindIssues      Kind = "issues"
	KindForks       Kind = "forks"
	KindStar        Kind = "star"
)

var kinds = map[string]Kind{
	"push":         KindPush,
	"pull_request": KindPullRequest,
	"issues":       KindIssues,
	"fork":         KindForks,
	"star":         KindStar,
}

// KindFor maps an X-GitHub-Event header value to a Kind.
// It reports false for event types that are not relayed.
func KindFor(eventType string) (Kind, bool) {
	k, ok := kinds[eventType]
	return k, ok
}

// ErrMissingField is returned by Payload.Validate when a field required by
// the event kind is absent.
var ErrMissingField = errors.New("missing payload field")

// Repository is the repository an event happened on.
type Repository struct {
	FullName string `json:"full_name"`
	HTMLURL  string `json:"html_url"`
	// Private is nil when the payload does not say. Such a repository is
	// never treated as public.
	Private *bool `json:"private"`
}

// User is the account that triggered an event.
type User struct {
	Login     string `json:"login"`
	HTMLURL   string `json:"html_url"`
	AvatarURL string `json:"avatar_url"`
}

// PullRequest holds the pull request fields used in notifications.
type PullRequest struct {
	Title  string `json:"title"`
	Number int    `json:"number"`
}

// Issue holds the issue fields used in notifications.
type Issue struct {
	Title  string `json:"title"`
	Number int    `json:"number"`
}

// Payload is the decoded webhook body. Fields irrelevant to the event type
// are left nil. Ref and Action are pointers so that an absent key can be told
// apart from an empty string.
type Payload struct {
	Repository  *Repository  `json:"repository"`
	Sender      *User        `json:"sender"`
	PullRequest *PullRequest `json:"pull_request"`
	Issue       *Issue       `json:"issue"`
	Ref         *string      `json:"ref"`
	Action      *string      `json:"action"`
}

// GetRef returns the Ref field if it's non-nil, zero value otherwise.
func (p *Payload) GetRef() string {
	if p == nil || p.Ref == nil {
		return ""
	}
	return *p.Ref
}

// GetAction returns the Action field if it's non-nil, zero value otherwise.
func (p *Payload) GetAction() string {
	if p == nil || p.Action == nil {
		return ""
	}
	return *p.Action
}

// Public reports whether the payload names a repository explicitly marked
// non-private. A missing or null "private" key is not public.
func (p *Payload) Public() bool {
	return p.Repository != nil && p.Repository.Private != nil && !*p.Repository.Private
}

// Validate checks that the fields a notification of kind k needs are present.
func (p *Payload) Validate(k Kind) error {
	if p.Repository == nil {
		return fmt.Errorf("%w: repository", ErrMissingField)
	}
	if p.Sender == nil {
		return fmt.Errorf("%w: sender", ErrMissingField)
	}

	switch k {
	case KindPush:
		if p.Ref == nil {
			return fmt.Errorf("%w: ref", ErrMissingField)
		}
	case KindPullRequest:
		if p.Action == nil {
			return fmt.Errorf("%w: action", ErrMissingField)
		}
		if p.PullRequest == nil {
			return fmt.Errorf("%w: pull_request", ErrMissingField)
		}
	case KindIssues:
		if p.Action == nil {
			return fmt.Errorf("%w: action", ErrMissingField)
		}
		if p.Issue == nil {
			return fmt.Errorf("%w: issue", ErrMissingField)
		}
	default:
	}
	return nil
}
