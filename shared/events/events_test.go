package events

import (
	"encoding/json"
	"testing"

	"github.com/shipabox/shipment-saga/shared/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopic_Matches(t *testing.T) {
	tests := []struct {
		name    string
		topic   Topic
		pattern Topic
		want    bool
	}{
		{"exact", BoxWeighedEvent, BoxWeighedEvent, true},
		{"single segment wildcard", BoxWeighedEvent, "shipabox.*.box_weighed", true},
		{"catch all", BoxDeliveredEvent, "#", true},
		{"prefix", InvoicePaidEvent, "shipabox.customer.#", true},
		{"prefix mismatch", BoxWeighedEvent, "shipabox.customer.#", false},
		{"suffix", BoxSentByClerkEvent, "#box_sent", true},
		{"contains", TrackingProvidedEvent, "#clerk#", true},
		{"segment count mismatch", BoxWeighedEvent, "shipabox.*", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.topic.Matches(tt.pattern))
		})
	}
}

func TestEvent_UnmarshalPayload(t *testing.T) {
	id := models.GenerateUUID()
	payload := BoxWeighedData{
		Correlation: Correlation{CorrelationID: id},
		BoxMetrics:  BoxMetrics{BoxWeight: 12.5, BoxWeightUnit: "lb"},
	}

	t.Run("typed payload", func(t *testing.T) {
		evt := NewEvent(id, BoxWeighedEvent, payload)

		var got BoxWeighedData
		require.NoError(t, evt.UnmarshalPayload(&got))
		assert.Equal(t, payload, got)
	})

	t.Run("pointer payload", func(t *testing.T) {
		evt := NewEvent(id, BoxWeighedEvent, &payload)

		var got BoxWeighedData
		require.NoError(t, evt.UnmarshalPayload(&got))
		assert.Equal(t, 12.5, got.BoxWeight)
	})

	t.Run("payload decoded from the wire", func(t *testing.T) {
		raw, err := NewEvent(id, BoxWeighedEvent, payload).ToJSON()
		require.NoError(t, err)

		evt, err := FromJSON(raw)
		require.NoError(t, err)

		var got BoxWeighedData
		require.NoError(t, evt.UnmarshalPayload(&got))
		assert.Equal(t, id, got.GetCorrelationID())
		assert.Equal(t, "lb", got.BoxWeightUnit)
	})

	t.Run("non pointer receiver", func(t *testing.T) {
		evt := NewEvent(id, BoxWeighedEvent, payload)
		assert.ErrorIs(t, evt.UnmarshalPayload(BoxWeighedData{}), ErrInvalidReceiver)
	})

	t.Run("malformed payload", func(t *testing.T) {
		evt := NewEvent(id, BoxWeighedEvent, json.RawMessage(`{"box_weight":"heavy"}`))

		var got BoxWeighedData
		assert.ErrorIs(t, evt.UnmarshalPayload(&got), ErrInvalidPayload)
	})
}

func TestFromJSON_FillsTopicAndMetadata(t *testing.T) {
	evt, err := FromJSON([]byte(`{"id":"e1","event_type":"shipabox.clerk.box_sent","data":{}}`))
	require.NoError(t, err)

	assert.Equal(t, Topic(BoxSentByClerkEvent), evt.Topic)
	assert.NotNil(t, evt.Metadata)
}
