package mqueue

import (
	"encoding/json"
	"testing"

	"sttworker/internal/models"

	"github.com/stretchr/testify/require"
)

func TestQueueMessageRoundTrip(t *testing.T) {
	msg := models.QueueMessage{
		JobID:       "abc-123",
		Language:    "vi",
		Model:       "medium",
		Filename:    "interview.mp3",
		PublishedAt: 1700000000.5,
	}

	body, err := json.Marshal(msg)
	require.NoError(t, err)

	var got models.QueueMessage
	require.NoError(t, json.Unmarshal(body, &got))
	require.Equal(t, msg, got)
}

func TestMalformedPayloadFailsQueueMessageDecode(t *testing.T) {
	var raw json.RawMessage = []byte(`{not valid json`)
	var msg models.QueueMessage
	err := json.Unmarshal(raw, &msg)
	require.Error(t, err, "malformed payload must fail to decode so Consume rejects it, spec §4.8 step 2")
}
