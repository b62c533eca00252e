// Package summarizer produces the compact chat-history summary attached to
// unary chat requests.
package summarizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/insightlm/orchestrator/internal/model"
	"github.com/insightlm/orchestrator/internal/store"
)

const (
	// recentSessions is how many sessions feed one summary.
	recentSessions = 3
	// topicLength caps each topic line.
	topicLength = 60
	// recentTurns is how many turns of the newest session are included.
	recentTurns = 4
	// turnLength caps each included turn.
	turnLength = 120
)

// Summarizer derives a history summary from a principal's recent sessions.
type Summarizer struct {
	sessions store.Sessions
}

func New(sessions store.Sessions) *Summarizer {
	return &Summarizer{sessions: sessions}
}

// Summarize fetches the principal's most recent sessions and builds the
// summary string. An empty string means no usable history.
func (s *Summarizer) Summarize(ctx context.Context, userID string) (string, error) {
	all, err := s.sessions.List(ctx, userID)
	if err != nil {
		return "", err
	}
	if len(all) > recentSessions {
		all = all[:recentSessions]
	}
	return Build(all), nil
}

// Build assembles the summary from already-loaded sessions, newest first.
func Build(sessions []*model.ChatSession) string {
	if len(sessions) == 0 {
		return ""
	}

	var topics []string
	for _, cs := range sessions {
		if t := firstUserText(cs); t != "" {
			topics = append(topics, truncate(t, topicLength))
		}
	}

	var b strings.Builder
	if len(topics) > 0 {
		b.WriteString("Recent topics: ")
		b.WriteString(strings.Join(topics, "; "))
	}

	newest := sessions[0]
	turns := newest.Messages
	if len(turns) > recentTurns {
		turns = turns[len(turns)-recentTurns:]
	}
	if len(turns) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Latest exchange:\n")
		for _, m := range turns {
			fmt.Fprintf(&b, "%s: %s\n", m.Role, truncate(m.Text, turnLength))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func firstUserText(cs *model.ChatSession) string {
	for _, m := range cs.Messages {
		if m.Role == "user" && strings.TrimSpace(m.Text) != "" {
			return strings.TrimSpace(m.Text)
		}
	}
	return ""
}

// truncate caps s at n runes; a byte cut could split a multi-byte rune.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
