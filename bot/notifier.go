/* notifier.go
 * Contains the Discord implementation of api.Notifier, which announces completed matches in a channel
 */

package bot

import (
	"context"
	"fmt"
	"sync"
	"tugofwar/api/api"
)

// Notifier posts match results to a Discord channel. It drops nothing silently: while no session is
// attached MatchCompleted returns an error, which the api layer logs
type Notifier struct {
	ChannelID string

	mu      sync.RWMutex
	session DiscordSession
}

var _ api.Notifier = (*Notifier)(nil)

func NewNotifier(channelID string) *Notifier {
	return &Notifier{ChannelID: channelID}
}

// Attach sets the session used to post. Passing nil detaches it
func (n *Notifier) Attach(session DiscordSession) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.session = session
}

func (n *Notifier) MatchCompleted(ctx context.Context, event api.MatchCompletedEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	n.mu.RLock()
	session := n.session
	n.mu.RUnlock()
	if session == nil {
		return fmt.Errorf("discord session is not open")
	}

	if _, err := session.ChannelMessageSend(n.ChannelID, formatMatchCompleted(event)); err != nil {
		return fmt.Errorf("failed to post match result: %w", err)
	}
	return nil
}
