/* handlers.go
 * Contains the command handlers. They take the DiscordSession interface so they can be tested without a
 * live connection
 */

package bot

import (
	"context"
	"errors"
	"strings"
	"time"
	"tugofwar/api/api"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

// commandTimeout bounds the API calls made while answering a single message
const commandTimeout = 10 * time.Second

// helpMessageHandler handles the $help command
func (b *Bot) helpMessageHandler(session DiscordSession, message *discordgo.MessageCreate) {
	var res strings.Builder
	res.WriteString("Tug of War Bot\n")
	res.WriteString("`$match <matchId>`: shows the score, status and time remaining of a match\n")
	res.WriteString("`$round`: shows the round 1 timer\n")
	res.WriteString("`$help`: shows this message\n")
	session.ChannelMessageSend(message.ChannelID, res.String())
}

// matchHandler handles the $match command
// Preconditions: Receives the session, the message and the command arguments. The first argument is the match id
// Postconditions: Sends the match summary, or a user facing error, to the channel the command was run in
func (b *Bot) matchHandler(ctx context.Context, session DiscordSession, message *discordgo.MessageCreate, args []string) {
	if len(args) == 0 {
		session.ChannelMessageSend(message.ChannelID, "Usage: `$match <matchId>`")
		return
	}

	summary, err := b.APIPtr.GetMatchSummary(ctx, args[0])
	if err != nil {
		var res string
		switch {
		case errors.Is(err, api.ErrValidation):
			res = "That is not a valid match id"
		case errors.Is(err, api.ErrNotFound):
			res = "No match found with that id"
		default:
			log.Error().Err(err).Str("match_id", args[0]).Msg("bot failed to load match summary")
			res = "An error occurred getting the match"
		}
		session.ChannelMessageSend(message.ChannelID, res)
		return
	}
	session.ChannelMessageSend(message.ChannelID, formatMatchSummary(summary))
}

// roundHandler handles the $round command
func (b *Bot) roundHandler(ctx context.Context, session DiscordSession, message *discordgo.MessageCreate) {
	view, err := b.APIPtr.GetRoundState(ctx)
	if err != nil {
		log.Error().Err(err).Msg("bot failed to load round state")
		session.ChannelMessageSend(message.ChannelID, "An error occurred getting the round timer")
		return
	}
	session.ChannelMessageSend(message.ChannelID, formatRoundState(view))
}

// newMessageHandler routes messages to the matching handler
// botUserID is the bot's user ID to prevent self-responses
func (b *Bot) newMessageHandler(session DiscordSession, message *discordgo.MessageCreate, botUserID string) {
	if message.Author == nil || message.Author.ID == botUserID {
		return
	}

	command, args, ok := parseCommand(message.Content)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	switch command {
	case "$help":
		b.helpMessageHandler(session, message)
	case "$match":
		b.matchHandler(ctx, session, message, args)
	case "$round":
		b.roundHandler(ctx, session, message)
	}
}
