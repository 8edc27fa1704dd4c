// Package notify turns GitHub events into Discord embeds and sends them.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/codeGROOVE-dev/hookcord/pkg/discord"
	"github.com/codeGROOVE-dev/hookcord/pkg/event"
	"github.com/codeGROOVE-dev/hookcord/pkg/logger"
)

const (
	// FallbackDescription replaces a repository description that could not be fetched.
	FallbackDescription = "No description available"

	// DefaultAvatarURL is the organization logo used as the webhook avatar.
	DefaultAvatarURL = "https://avatars.githubusercontent.com/u/11489929?s=64&v=4"

	// EmbedColor is the accent color of every embed (#00ff8a).
	EmbedColor = 0x00ff8a
)

// DescriptionSource looks up a repository description by "owner/name".
type DescriptionSource interface {
	RepositoryDescription(ctx context.Context, fullName string) (string, error)
}

// Sender delivers a message to the destination channel.
type Sender interface {
	Send(ctx context.Context, msg *discord.Message) error
}

// Summary is the per-event text of a notification.
type Summary struct {
	Action string
	Title  string
	URL    string
}

// Summarize derives the action, title and link for an event.
// Kinds without a dedicated mapping use the kind as the action and leave
// Title and URL empty.
func Summarize(kind event.Kind, p *event.Payload) Summary {
	repoURL := p.Repository.HTMLURL
	fullName := p.Repository.FullName

	switch kind {
	case event.KindPush:
		return Summary{
			Action: "pushed",
			Title:  "Pushed to branch: " + branchName(p.GetRef()),
			URL:    repoURL + "/commits",
		}
	case event.KindPullRequest:
		return Summary{
			Action: p.GetAction(),
			Title:  fmt.Sprintf("Pull request %s: %s", p.GetAction(), p.PullRequest.Title),
			URL:    fmt.Sprintf("%s/pull/%d", repoURL, p.PullRequest.Number),
		}
	case event.KindIssues:
		return Summary{
			Action: p.GetAction(),
			Title:  fmt.Sprintf("Issue %s: %s", p.GetAction(), p.Issue.Title),
			URL:    fmt.Sprintf("%s/issues/%d", repoURL, p.Issue.Number),
		}
	case event.KindForks:
		return Summary{
			Action: "forked",
			Title:  "Forked repository: " + fullName,
			URL:    repoURL,
		}
	case event.KindStar:
		return Summary{
			Action: "starred",
			Title:  "Starred repository: " + fullName,
			URL:    repoURL,
		}
	default:
		return Summary{Action: string(kind)}
	}
}

// branchName returns the last path segment of a git ref.
func branchName(ref string) string {
	return ref[strings.LastIndex(ref, "/")+1:]
}

// BuildMessage assembles the Discord message for an event.
func BuildMessage(kind event.Kind, p *event.Payload, description, avatarURL string) *discord.Message {
	s := Summarize(kind, p)
	sender := p.Sender

	return &discord.Message{
		AvatarURL: avatarURL,
		Embeds: []discord.Embed{{
			Color: EmbedColor,
			Fields: []discord.Field{
				{
					Name:  "",
					Value: fmt.Sprintf("[%s](%s) - [%s](%s)", sender.Login, sender.HTMLURL, s.Title, s.URL),
				},
				{
					Name:  "Project",
					Value: fmt.Sprintf("[%s](%s)", p.Repository.FullName, p.Repository.HTMLURL),
				},
				{
					Name:  "Project Description",
					Value: description,
				},
			},
			Author: &discord.Author{
				Name:    sender.Login,
				URL:     sender.HTMLURL,
				IconURL: sender.AvatarURL,
			},
		}},
	}
}

// Notifier builds and sends notifications. It is safe for concurrent use.
type Notifier struct {
	descriptions DescriptionSource
	sender       Sender
	avatarURL    string
}

// New creates a Notifier. An empty avatarURL selects DefaultAvatarURL.
func New(descriptions DescriptionSource, sender Sender, avatarURL string) *Notifier {
	if avatarURL == "" {
		avatarURL = DefaultAvatarURL
	}
	return &Notifier{
		descriptions: descriptions,
		sender:       sender,
		avatarURL:    avatarURL,
	}
}

// Notify sends one notification for the event. A failed description lookup
// is logged and replaced by FallbackDescription; the returned error is the
// delivery outcome, which callers log rather than surface.
func (n *Notifier) Notify(ctx context.Context, kind event.Kind, p *event.Payload) error {
	description := n.describe(ctx, p.Repository.FullName)
	msg := BuildMessage(kind, p, description, n.avatarURL)

	if err := n.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send %s notification for %s: %w", kind, p.Repository.FullName, err)
	}

	logger.Debug(ctx, "discord notification sent", logger.Fields{
		"kind":       string(kind),
		"repository": p.Repository.FullName,
	})
	return nil
}

func (n *Notifier) describe(ctx context.Context, fullName string) string {
	description, err := n.descriptions.RepositoryDescription(ctx, fullName)
	if err != nil {
		logger.Warn(ctx, "repository description lookup failed", logger.Fields{
			"repository": fullName,
			"error":      err.Error(),
		})
		return FallbackDescription
	}
	return description
}
