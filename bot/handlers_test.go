/* handlers_test.go
 * Contains unit tests for bot command handlers using mock Discord session
 */

package bot

import (
	"errors"
	"testing"
	"time"
	"tugofwar/api/api"
	"tugofwar/api/shared"
	"tugofwar/api/store"

	"github.com/bwmarrin/discordgo"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

// createTestBot creates a Bot backed by an in memory store holding one active match, ten minutes into
// an hour long clock with a score of 30 to 10
func createTestBot(t *testing.T) (*Bot, *api.MockStore, store.Match) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(baseTime)
	mockStore := api.NewMockStore(clock.Now)

	match, questions := store.CreateSampleMatch(baseTime.Add(-10*time.Minute), 3600)
	match.ScoreA = 30
	match.ScoreB = 10
	mockStore.Seed(match, questions...)

	apiPtr, err := api.NewAPI(mockStore, api.NewMockJudge(), api.DefaultConfig(), api.WithClock(clock))
	require.NoError(t, err)

	bot, err := NewBot("test_token", apiPtr)
	require.NoError(t, err)
	return bot, mockStore, match
}

// createMockMessage creates a mock Discord message for testing
func createMockMessage(content, userID, username, channelID string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{
		Message: &discordgo.Message{
			Content:   content,
			ChannelID: channelID,
			Author: &discordgo.User{
				ID:       userID,
				Username: username,
			},
		},
	}
}

// region routing tests

func TestNewMessageHandler_Help(t *testing.T) {
	bot, _, _ := createTestBot(t)
	mockSession := NewMockDiscordSession()

	bot.newMessageHandler(mockSession, createMockMessage("$help", "user123", "TestUser", "channel123"), "bot")

	require.Len(t, mockSession.SentMessages, 1)
	msg := mockSession.GetLastMessage()
	assert.Equal(t, "channel123", msg.ChannelID)
	assert.Contains(t, msg.Content, "Tug of War Bot")
	assert.Contains(t, msg.Content, "$match")
	assert.Contains(t, msg.Content, "$round")
}

func TestNewMessageHandler_IgnoresOwnMessages(t *testing.T) {
	bot, _, _ := createTestBot(t)
	mockSession := NewMockDiscordSession()

	bot.newMessageHandler(mockSession, createMockMessage("$help", "bot", "Bot", "channel123"), "bot")
	assert.Empty(t, mockSession.SentMessages)
}

func TestNewMessageHandler_IgnoresUnknownAndPlainMessages(t *testing.T) {
	bot, _, _ := createTestBot(t)
	mockSession := NewMockDiscordSession()

	bot.newMessageHandler(mockSession, createMockMessage("hello there", "user123", "TestUser", "c"), "bot")
	bot.newMessageHandler(mockSession, createMockMessage("$unknown", "user123", "TestUser", "c"), "bot")
	// prefix of a real command is not that command
	bot.newMessageHandler(mockSession, createMockMessage("$matches", "user123", "TestUser", "c"), "bot")
	assert.Empty(t, mockSession.SentMessages)
}

// endregion

// region $match tests

func TestMatch_Success(t *testing.T) {
	bot, _, match := createTestBot(t)
	mockSession := NewMockDiscordSession()

	bot.newMessageHandler(mockSession, createMockMessage("$match "+match.ID.Hex(), "user123", "TestUser", "channel123"), "bot")

	require.Len(t, mockSession.SentMessages, 1)
	msg := mockSession.GetLastMessage()
	assert.Contains(t, msg.Content, "Semifinals (round 2)")
	assert.Contains(t, msg.Content, "Side A 30 - 10 Side B")
	assert.Contains(t, msg.Content, "50:00 remaining")
}

func TestMatch_Completed(t *testing.T) {
	bot, mockStore, match := createTestBot(t)
	end := baseTime.Add(-time.Minute)
	winner := shared.SideA
	match.Status = shared.StatusCompleted
	match.EndTime = &end
	match.WinningSide = &winner
	mockStore.Seed(match)
	mockSession := NewMockDiscordSession()

	bot.newMessageHandler(mockSession, createMockMessage("$match "+match.ID.Hex(), "u", "U", "c"), "bot")

	assert.Contains(t, mockSession.GetLastMessage().Content, "completed, winner: Side A")
}

func TestMatch_MissingArgument(t *testing.T) {
	bot, _, _ := createTestBot(t)
	mockSession := NewMockDiscordSession()

	bot.newMessageHandler(mockSession, createMockMessage("$match", "u", "U", "c"), "bot")

	assert.Contains(t, mockSession.GetLastMessage().Content, "Usage")
}

func TestMatch_InvalidID(t *testing.T) {
	bot, _, _ := createTestBot(t)
	mockSession := NewMockDiscordSession()

	bot.newMessageHandler(mockSession, createMockMessage("$match not-an-id", "u", "U", "c"), "bot")

	assert.Equal(t, "That is not a valid match id", mockSession.GetLastMessage().Content)
}

func TestMatch_NotFound(t *testing.T) {
	bot, _, _ := createTestBot(t)
	mockSession := NewMockDiscordSession()

	bot.newMessageHandler(mockSession, createMockMessage("$match 64b7f0000000000000000001", "u", "U", "c"), "bot")

	assert.Equal(t, "No match found with that id", mockSession.GetLastMessage().Content)
}

func TestMatch_StoreError(t *testing.T) {
	bot, mockStore, match := createTestBot(t)
	mockStore.GetMatchError = errors.New("connection refused")
	mockSession := NewMockDiscordSession()

	bot.newMessageHandler(mockSession, createMockMessage("$match "+match.ID.Hex(), "u", "U", "c"), "bot")

	msg := mockSession.GetLastMessage().Content
	assert.Equal(t, "An error occurred getting the match", msg)
	assert.NotContains(t, msg, "connection refused")
}

// endregion

// region $round tests

func TestRound_Waiting(t *testing.T) {
	bot, _, _ := createTestBot(t)
	mockSession := NewMockDiscordSession()

	bot.newMessageHandler(mockSession, createMockMessage("$round", "u", "U", "c"), "bot")

	assert.Equal(t, "Round 1 has not started. It will run for 1:00:00", mockSession.GetLastMessage().Content)
}

func TestRound_Active(t *testing.T) {
	bot, mockStore, _ := createTestBot(t)
	start := baseTime.Add(-15 * time.Minute)
	mockStore.Round = &store.RoundState{Key: store.RoundStateKey, Status: shared.RoundActive, Duration: 3600, StartTime: &start}
	mockSession := NewMockDiscordSession()

	bot.newMessageHandler(mockSession, createMockMessage("$round", "u", "U", "c"), "bot")

	assert.Equal(t, "Round 1 is running, 45:00 remaining", mockSession.GetLastMessage().Content)
}

func TestRound_Error(t *testing.T) {
	bot, mockStore, _ := createTestBot(t)
	mockStore.RoundStateError = errors.New("boom")
	mockSession := NewMockDiscordSession()

	bot.newMessageHandler(mockSession, createMockMessage("$round", "u", "U", "c"), "bot")

	assert.Equal(t, "An error occurred getting the round timer", mockSession.GetLastMessage().Content)
}

// endregion
