package infrastructure

import (
	"context"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/shipabox/shipment-saga/shared/events"
	"github.com/shipabox/shipment-saga/shared/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSNS struct {
	mu      sync.Mutex
	inputs  []*sns.PublishBatchInput
	failIDs map[string]bool
	err     error
}

func (f *fakeSNS) PublishBatch(_ context.Context, params *sns.PublishBatchInput, _ ...func(*sns.Options)) (*sns.PublishBatchOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, params)
	if f.err != nil {
		return nil, f.err
	}
	out := &sns.PublishBatchOutput{}
	for _, entry := range params.PublishBatchRequestEntries {
		if f.failIDs[aws.ToString(entry.Id)] {
			out.Failed = append(out.Failed, types.BatchResultErrorEntry{Id: entry.Id, Code: aws.String("InternalError")})
		}
	}
	return out, nil
}

func TestSNSEventPublisher_PublishesFullEnvelope(t *testing.T) {
	client := &fakeSNS{}
	publisher := NewSNSEventPublisher(client, "arn:aws:sns:us-east-1:000000000000:shipabox", nil)

	id := models.GenerateUUID()
	evt := events.NewEvent(id, events.BoxReceivedEvent, events.BoxReceivedData{
		Correlation: events.Correlation{CorrelationID: id},
		Customer:    events.Customer{CustomerName: "Alice", AddressCity: "Springfield"},
	}).WithCorrelationID(id).WithMetadata("source", "orchestrator")

	require.NoError(t, publisher.Publish(context.Background(), evt))
	require.Len(t, client.inputs, 1)

	entry := client.inputs[0].PublishBatchRequestEntries[0]
	assert.Equal(t, evt.ID.String(), aws.ToString(entry.Id))
	assert.Equal(t, events.BoxReceivedEvent, aws.ToString(entry.MessageAttributes["topic"].StringValue))
	assert.Equal(t, "orchestrator", aws.ToString(entry.MessageAttributes["source"].StringValue))

	decoded, err := decodeSQSBody(aws.ToString(entry.Message))
	require.NoError(t, err)
	assert.Equal(t, evt.ID, decoded.ID)
	assert.Equal(t, id, decoded.CorrelationID)

	var data events.BoxReceivedData
	require.NoError(t, decoded.UnmarshalPayload(&data))
	assert.Equal(t, "Alice", data.CustomerName)
	assert.Equal(t, id, data.CorrelationID)
}

func TestSNSEventPublisher_SplitsIntoBatches(t *testing.T) {
	client := &fakeSNS{}
	publisher := NewSNSEventPublisher(client, "arn", nil)

	evts := make([]*events.Event, 23)
	for i := range evts {
		evts[i] = events.NewEvent(models.GenerateUUID(), events.SagaFaultedEvent, events.SagaFaultedData{})
	}

	require.NoError(t, publisher.Publish(context.Background(), evts...))
	assert.Len(t, client.inputs, 3)
}

func TestSNSEventPublisher_ReportsRejectedEntries(t *testing.T) {
	evt := events.NewEvent(models.GenerateUUID(), events.BoxReceivedEvent, events.BoxReceivedData{})
	client := &fakeSNS{failIDs: map[string]bool{evt.ID.String(): true}}
	publisher := NewSNSEventPublisher(client, "arn", nil)

	err := publisher.Publish(context.Background(), evt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), evt.ID.String())
}

func TestSNSEventPublisher_NoEvents(t *testing.T) {
	client := &fakeSNS{}
	publisher := NewSNSEventPublisher(client, "arn", nil)

	require.NoError(t, publisher.Publish(context.Background()))
	assert.Empty(t, client.inputs)
}

func TestSplitToChunks(t *testing.T) {
	chunks := splitToChunks([]int{1, 2, 3, 4, 5}, 2)
	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, chunks)
	assert.Empty(t, splitToChunks([]int{}, 2))
}
