package nats

import (
	"testing"

	"ai-sales-agent-be/pkg/events"

	"github.com/stretchr/testify/assert"
)

func TestSubjectPrefixesEventType(t *testing.T) {
	record := events.NewTurnRecord("42")
	ev := events.TurnEvent{Record: record}

	assert.Equal(t, "agent.conversation.turn", Subject(ev))
	assert.Equal(t, record.ID, ev.Key())
}
