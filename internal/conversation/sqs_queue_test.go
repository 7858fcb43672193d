package conversation

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSQS struct {
	sent     []*sqs.SendMessageInput
	deleted  []string
	messages []sqstypes.Message
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.sent = append(f.sent, in)
	return &sqs.SendMessageOutput{}, nil
}

func (f *fakeSQS) ReceiveMessage(_ context.Context, _ *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	return &sqs.ReceiveMessageOutput{Messages: f.messages}, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func TestSQSQueueFIFOGroupsBySession(t *testing.T) {
	api := &fakeSQS{}
	q := NewSQSQueue(api, "https://sqs.eu-north-1.amazonaws.com/123/turns.fifo")

	job, body, err := encodeTurnJob(turnJob{SessionID: "s1", Message: "hi"})
	require.NoError(t, err)
	require.NoError(t, q.Send(context.Background(), body))

	require.Len(t, api.sent, 1)
	assert.Equal(t, "s1", aws.ToString(api.sent[0].MessageGroupId))
	assert.Equal(t, job.ID, aws.ToString(api.sent[0].MessageDeduplicationId))
}

func TestSQSQueueStandard(t *testing.T) {
	api := &fakeSQS{messages: []sqstypes.Message{{
		MessageId:     aws.String("m1"),
		Body:          aws.String(`{"id":"j1","session_id":"s1","message":"hi"}`),
		ReceiptHandle: aws.String("r1"),
	}}}
	q := NewSQSQueue(api, "https://sqs.eu-north-1.amazonaws.com/123/turns")

	require.NoError(t, q.Send(context.Background(), "not json is fine here"))
	assert.Nil(t, api.sent[0].MessageGroupId)

	msgs, err := q.Receive(context.Background(), 5, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "r1", msgs[0].ReceiptHandle)

	require.NoError(t, q.Delete(context.Background(), "r1"))
	require.NoError(t, q.Delete(context.Background(), ""))
	assert.Equal(t, []string{"r1"}, api.deleted)
}
