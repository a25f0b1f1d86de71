/* publisher.go
 * Publishes match lifecycle events to NATS so other services can react to finished matches
 */

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"tugofwar/api/api"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// DefaultSubject is the subject completed matches are published on
const DefaultSubject = "tugofwar.match.completed"

// Conn is the part of a NATS connection the publisher needs. *nats.Conn satisfies it
type Conn interface {
	Publish(subj string, data []byte) error
}

// Publisher sends MatchCompletedEvents to NATS as JSON
type Publisher struct {
	Conn    Conn
	Subject string
}

var _ api.Notifier = (*Publisher)(nil)

// NewPublisher returns a Publisher on the given subject, or DefaultSubject when subject is empty
func NewPublisher(conn Conn, subject string) *Publisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Publisher{Conn: conn, Subject: subject}
}

// Connect dials the NATS server at url with reconnect handling logged through zerolog
// Preconditions: Receives a NATS url
// Postconditions: Returns the open connection, or an error if the server could not be reached
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("tugofwar"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return nc, nil
}

// MatchCompleted publishes the event. The context is checked before publishing only; nats.Conn.Publish
// buffers and does not block on the network
func (p *Publisher) MatchCompleted(ctx context.Context, event api.MatchCompletedEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := p.Conn.Publish(p.Subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.Subject, err)
	}
	log.Debug().Str("match_id", event.MatchID).Str("subject", p.Subject).Msg("published match completed")
	return nil
}
