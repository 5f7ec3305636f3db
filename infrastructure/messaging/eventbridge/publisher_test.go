package eventbridge_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"graphengine/application/ports"
	"graphengine/domain/events"
	"graphengine/infrastructure/messaging/eventbridge"
	"graphengine/pkg/extensions"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) PutEvents(ctx context.Context, params *awseventbridge.PutEventsInput, optFns ...func(*awseventbridge.Options)) (*awseventbridge.PutEventsOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*awseventbridge.PutEventsOutput)
	return out, args.Error(1)
}

func batchEvents(n int) []events.DomainEvent {
	ts := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	out := make([]events.DomainEvent, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, events.NewBatchApplied("graph-1", "/Game/BP_Door", "EventGraph", i, 0, nil, ts))
	}
	return out
}

func TestPublisher_PublishBatchChunks(t *testing.T) {
	client := &mockClient{}
	var sizes []int
	client.On("PutEvents", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			sizes = append(sizes, len(args.Get(1).(*awseventbridge.PutEventsInput).Entries))
		}).
		Return(&awseventbridge.PutEventsOutput{}, nil)

	p := eventbridge.NewPublisher(client, "graph-bus", nil)
	require.NoError(t, p.PublishBatch(context.Background(), batchEvents(23)))
	assert.Equal(t, []int{10, 10, 3}, sizes)

	require.NoError(t, p.PublishBatch(context.Background(), nil))
	client.AssertNumberOfCalls(t, "PutEvents", 3)
}

func TestPublisher_Entry(t *testing.T) {
	client := &mockClient{}
	client.On("PutEvents", mock.Anything, mock.MatchedBy(func(in *awseventbridge.PutEventsInput) bool {
		if len(in.Entries) != 1 {
			return false
		}
		e := in.Entries[0]
		var detail map[string]interface{}
		if err := json.Unmarshal([]byte(aws.ToString(e.Detail)), &detail); err != nil {
			return false
		}
		return aws.ToString(e.EventBusName) == "graph-bus" &&
			aws.ToString(e.Source) == eventbridge.Source &&
			aws.ToString(e.DetailType) == "batch.applied" &&
			detail["asset_path"] == "/Game/BP_Door" &&
			len(e.Resources) == 1 && e.Resources[0] == "graphengine:graph/graph-1"
	})).Return(&awseventbridge.PutEventsOutput{}, nil)

	p := eventbridge.NewPublisher(client, "graph-bus", nil)
	require.NoError(t, p.Publish(context.Background(), batchEvents(1)[0]))
	client.AssertExpectations(t)
}

func TestPublisher_Failures(t *testing.T) {
	tests := []struct {
		name string
		out  *awseventbridge.PutEventsOutput
		err  error
	}{
		{name: "transport error", err: errors.New("connection reset")},
		{
			name: "failed entries",
			out: &awseventbridge.PutEventsOutput{
				FailedEntryCount: 1,
				Entries:          []types.PutEventsResultEntry{{ErrorCode: aws.String("ThrottlingException")}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockClient{}
			client.On("PutEvents", mock.Anything, mock.Anything).Return(tt.out, tt.err)

			p := eventbridge.NewPublisher(client, "graph-bus", nil)
			assert.Error(t, p.PublishBatch(context.Background(), batchEvents(15)))
			client.AssertNumberOfCalls(t, "PutEvents", 1)
		})
	}
}

func TestPlugin_PublishesBatchEvents(t *testing.T) {
	client := &mockClient{}
	client.On("PutEvents", mock.Anything, mock.Anything).Return(&awseventbridge.PutEventsOutput{}, nil)

	hooks := extensions.NewHookManager()
	require.NoError(t, eventbridge.NewPlugin(eventbridge.NewPublisher(client, "graph-bus", nil)).RegisterHooks(hooks))

	record := ports.BatchRecord{ID: "b1", Events: batchEvents(3)}
	require.NoError(t, hooks.Execute(context.Background(), extensions.HookAfterBatch, record))
	assert.Error(t, hooks.Execute(context.Background(), extensions.HookAfterBatch, 42))
	client.AssertNumberOfCalls(t, "PutEvents", 1)
}
