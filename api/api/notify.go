/* notify.go
 * Contains the fan out of match completion events to the configured notifiers
 */

package api

import (
	"context"
	"time"
	"tugofwar/api/store"

	"github.com/rs/zerolog/log"
)

const notifyTimeout = 5 * time.Second

// notifyCompleted tells every notifier about a completed match in the background, so a slow chat or broker
// doesn't hold up the sync that completed the match. Failures are logged and never returned
func (a *API) notifyCompleted(ctx context.Context, match store.Match, isTimeout bool) {
	if len(a.Notifiers) == 0 {
		return
	}

	event := MatchCompletedEvent{
		MatchID:     match.ID.Hex(),
		RoundNumber: match.RoundNumber,
		ScoreA:      match.ScoreA,
		ScoreB:      match.ScoreB,
		WinningSide: match.WinningSide,
		IsTimeout:   isTimeout,
		CompletedAt: a.Clock.Now().UTC(),
	}
	if match.EndTime != nil {
		event.CompletedAt = match.EndTime.UTC()
	}

	// detached from the request so a client disconnect doesn't drop the notification
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	a.notifications.Add(1)
	go func() {
		defer a.notifications.Done()
		defer cancel()
		for _, n := range a.Notifiers {
			if err := n.MatchCompleted(nctx, event); err != nil {
				log.Error().Err(err).Str("match_id", event.MatchID).Msg("failed to send match completed notification")
			}
		}
	}()
}

// WaitForNotifications blocks until every notification already started has been sent or has timed out.
// Call it before shutting down so results aren't lost with the process
func (a *API) WaitForNotifications() {
	a.notifications.Wait()
}
