package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreyhq/drey/pkg/conversation"
)

func TestParseEvent(t *testing.T) {
	t.Run("parses a channel message", func(t *testing.T) {
		event := ParseEvent([]byte(`{
			"type": "message",
			"channel": "C100",
			"user": "U1",
			"text": "is the deploy pipeline broken?",
			"ts": "1718000000.000100",
			"event_ts": "1718000000.000200"
		}`))
		require.NotNil(t, event)
		assert.Equal(t, conversation.EventTypeMessage, event.EventType)
		assert.Equal(t, "C100", event.ChannelID)
		assert.Equal(t, "U1", event.UserID)
		assert.Equal(t, "is the deploy pipeline broken?", event.Text)
		assert.Empty(t, event.ThreadID)
		assert.Equal(t, "1718000000.000100", event.MessageTS)
		assert.Equal(t, "1718000000.000200", event.EventTS)
	})

	t.Run("maps app_mention to mention", func(t *testing.T) {
		event := ParseEvent([]byte(`{"type":"app_mention","channel":"C100","user":"U1","text":"<@BOT> status?","ts":"1.0"}`))
		require.NotNil(t, event)
		assert.Equal(t, conversation.EventTypeMention, event.EventType)
	})

	t.Run("keeps the thread timestamp", func(t *testing.T) {
		event := ParseEvent([]byte(`{"type":"message","channel":"C100","thread_ts":"1718000000.000100","ts":"1718000050.000300"}`))
		require.NotNil(t, event)
		assert.Equal(t, "1718000000.000100", event.ThreadID)
		assert.Equal(t, "C100|1718000000.000100", event.ConversationKey())
	})

	t.Run("event_ts defaults to ts", func(t *testing.T) {
		event := ParseEvent([]byte(`{"type":"message","channel":"C100","ts":"1718000000.000100"}`))
		require.NotNil(t, event)
		assert.Equal(t, "1718000000.000100", event.EventTS)
	})

	t.Run("drops unknown event types", func(t *testing.T) {
		assert.Nil(t, ParseEvent([]byte(`{"type":"reaction_added","channel":"C100"}`)))
	})

	t.Run("drops bot messages", func(t *testing.T) {
		assert.Nil(t, ParseEvent([]byte(`{"type":"message","channel":"C100","bot_id":"B1","text":"automated"}`)))
	})

	t.Run("drops subtyped messages", func(t *testing.T) {
		assert.Nil(t, ParseEvent([]byte(`{"type":"message","subtype":"message_changed","channel":"C100"}`)))
	})

	t.Run("drops malformed JSON", func(t *testing.T) {
		assert.Nil(t, ParseEvent([]byte(`{not json`)))
		assert.Nil(t, ParseEvent(nil))
	})

	t.Run("missing fields coerce to empty strings", func(t *testing.T) {
		event := ParseEvent([]byte(`{"type":"message"}`))
		require.NotNil(t, event)
		assert.Empty(t, event.ChannelID)
		assert.Empty(t, event.MessageTS)
	})
}
