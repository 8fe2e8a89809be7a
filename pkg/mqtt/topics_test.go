package mqtt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopics(t *testing.T) {
	assert.Equal(t, "bsb/get", GetTopic("bsb"))
	assert.Equal(t, "bsb/value/8700", ValueTopic("bsb", 8700))
	assert.Equal(t, "bsb/value/+", ValueFilter("bsb"))
	assert.Equal(t, "house/bsb/trigger/8700", TriggerTopic("house/bsb", 8700))
}

func TestParseValueTopic(t *testing.T) {
	id, err := ParseValueTopic("house/bsb", "house/bsb/value/8740")
	require.NoError(t, err)
	assert.Equal(t, 8740, id)

	for _, topic := range []string{
		"house/bsb/value/",
		"house/bsb/value/abc",
		"house/bsb/value/1/2",
		"house/bsb/trigger/1",
		"other/value/1",
	} {
		_, err := ParseValueTopic("house/bsb", topic)
		assert.Error(t, err, topic)
	}
}

func TestHandlerWithoutBroker(t *testing.T) {
	m := New()
	require.NoError(t, m.Connect("", ""))
	assert.False(t, m.IsConnected())
	assert.Error(t, m.Subscribe("bsb/value/+", func(Message) {}))
	assert.NoError(t, m.Disconnect())
}
