/* bot.go
 * Contains the Bot struct and the helpers used to parse and format bot messages. Requires a discord bot token
 * and ApiPtr, both of which are passed in from main.go
 */

package bot

import (
	"fmt"
	"strings"
	"tugofwar/api/api"
	"tugofwar/api/shared"

	"github.com/go-andiamo/splitter"
)

type Bot struct {
	BotToken string
	APIPtr   *api.API
	Notifier *Notifier // optional, attached to the session while the bot is running
}

func NewBot(botToken string, apiPtr *api.API) (*Bot, error) {
	if botToken == "" {
		return nil, fmt.Errorf("botToken is required but none was provided")
	}
	if apiPtr == nil {
		return nil, fmt.Errorf("apiPtr is required but none was provided")
	}

	return &Bot{
		BotToken: botToken,
		APIPtr:   apiPtr,
	}, nil
}

// parseCommand splits a message into its command and arguments. Arguments that contain spaces can be
// wrapped in double quotes
// Preconditions: Receives the raw message content
// Postconditions: Returns the lower cased command (e.g. "$match") and its arguments, or ok = false if the
// message is not a bot command
func parseCommand(content string) (string, []string, bool) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "$") {
		return "", nil, false
	}

	spaceSplitter, err := splitter.NewSplitter(' ', splitter.DoubleQuotes, splitter.LeftRightDoubleDoubleQuotes)
	if err != nil {
		return "", nil, false
	}
	raw, err := spaceSplitter.Split(content)
	if err != nil {
		return "", nil, false
	}

	// repeated spaces leave empty parts behind
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if len(part) >= 2 && part[0] == '"' && part[len(part)-1] == '"' {
			part = part[1 : len(part)-1]
		}
		parts = append(parts, part)
	}
	if len(parts) == 0 {
		return "", nil, false
	}
	return strings.ToLower(parts[0]), parts[1:], true
}

// formatClock renders seconds as m:ss, or h:mm:ss when an hour or more is left
func formatClock(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	h, m, s := seconds/3600, (seconds%3600)/60, seconds%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func formatWinner(winner *shared.Side) string {
	if winner == nil {
		return "Draw"
	}
	return fmt.Sprintf("Side %s", *winner)
}

// formatMatchSummary builds the `$match` reply
func formatMatchSummary(summary api.MatchSummary) string {
	var res strings.Builder
	res.WriteString(fmt.Sprintf("%s (round %d) match %s\n", summary.RoundName, summary.RoundNumber, summary.MatchID))
	res.WriteString(fmt.Sprintf("Side A %d - %d Side B\n", summary.ScoreA, summary.ScoreB))
	switch summary.Status {
	case shared.StatusWaiting:
		res.WriteString("Status: waiting to start\n")
	case shared.StatusActive:
		res.WriteString(fmt.Sprintf("Status: in progress, %s remaining\n", formatClock(summary.TimeRemaining)))
	case shared.StatusCompleted:
		res.WriteString(fmt.Sprintf("Status: completed, winner: %s\n", formatWinner(summary.WinningSide)))
	}
	return res.String()
}

// formatRoundState builds the `$round` reply
func formatRoundState(view api.RoundStateView) string {
	switch view.Status {
	case shared.RoundWaiting:
		return fmt.Sprintf("Round 1 has not started. It will run for %s", formatClock(view.Duration))
	case shared.RoundActive:
		return fmt.Sprintf("Round 1 is running, %s remaining", formatClock(view.TimeRemaining))
	default:
		return "Round 1 is over"
	}
}

// formatMatchCompleted builds the announcement posted when a match finishes
func formatMatchCompleted(event api.MatchCompletedEvent) string {
	reason := "reached the threshold"
	if event.IsTimeout {
		reason = "time ran out"
	}
	return fmt.Sprintf("%s match %s is over (%s). Side A %d - %d Side B. Winner: %s",
		shared.RoundName(event.RoundNumber), event.MatchID, reason, event.ScoreA, event.ScoreB, formatWinner(event.WinningSide))
}
