package messenger

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ZilDuck/nft-marketplace/internal/entity"
	"github.com/ZilDuck/nft-marketplace/internal/event"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	collection = entity.MustCollection("0x2222222222222222222222222222222222222222")
	seller     = entity.MustPrincipal("0x1111111111111111111111111111111111111111")
)

func soldEvent() event.Event {
	return event.New(event.TokenSoldEvent, event.TokenSold{
		Collection: collection,
		Buyer:      seller,
		Price:      1_000_000,
		TokenId:    7,
	})
}

type fakePublisher struct {
	name      string
	err       error
	published []event.Event
	closed    bool
}

func (p *fakePublisher) Name() string { return p.name }

func (p *fakePublisher) Publish(_ context.Context, e event.Event) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, e)
	return nil
}

func (p *fakePublisher) Close() error {
	p.closed = true
	return p.err
}

type fakeSqs struct {
	sqsiface.SQSAPI
	inputs []*sqs.SendMessageInput
}

func (f *fakeSqs) SendMessageWithContext(_ aws.Context, input *sqs.SendMessageInput, _ ...request.Option) (*sqs.SendMessageOutput, error) {
	f.inputs = append(f.inputs, input)
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

type fakeKafka struct {
	messages []kafka.Message
	closed   bool
}

func (f *fakeKafka) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeKafka) Close() error {
	f.closed = true
	return nil
}

func TestEncodeDecode(t *testing.T) {
	e := soldEvent()

	body, err := Encode(e)
	require.NoError(t, err)

	msg, err := Decode(body)
	require.NoError(t, err)
	assert.Equal(t, e.Id, msg.Id)
	assert.Equal(t, event.TokenSoldEvent, msg.Type)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.Equal(t, collection.String(), payload["nftAddress"])
	assert.Equal(t, seller.String(), payload["buyer"])
	assert.Equal(t, float64(7), payload["tokenId"])
}

func TestRoutingKey(t *testing.T) {
	assert.Equal(t, "zilliqa.marketplace.tokensold", RoutingKey("zilliqa.marketplace", event.TokenSoldEvent))
	assert.Equal(t, "local.tokensalecancelled", RoutingKey("local", event.TokenSaleCancelledEvent))
}

func TestPartitionKey(t *testing.T) {
	assert.Equal(t, entity.NewTokenKey(collection, 7).Slug(), PartitionKey(soldEvent()))
	assert.Equal(t, seller.String(), PartitionKey(event.New(event.ProceedsWithdrawnEvent, event.ProceedsWithdrawn{Principal: seller, Amount: 1})))
	assert.Equal(t, "operator", PartitionKey(event.New(event.OperatorTransferredEvent, event.OperatorTransferred{})))
}

func TestRelayPublishesToAll(t *testing.T) {
	failing := &fakePublisher{name: "failing", err: errors.New("broker down")}
	working := &fakePublisher{name: "working"}
	relay := NewRelay(failing, working)

	relay.Handle(soldEvent())
	relay.Handle(soldEvent())

	assert.Len(t, working.published, 2)
	assert.Equal(t, 2, relay.Publishers())

	err := relay.Close()
	assert.EqualError(t, err, "broker down")
	assert.True(t, working.closed)
}

func TestSqsPublisher(t *testing.T) {
	client := &fakeSqs{}
	e := soldEvent()

	require.NoError(t, NewSqsPublisher(client, "https://sqs/queue.fifo", true).Publish(context.Background(), e))
	require.Len(t, client.inputs, 1)

	input := client.inputs[0]
	assert.Equal(t, "https://sqs/queue.fifo", aws.StringValue(input.QueueUrl))
	assert.Equal(t, string(event.TokenSoldEvent), aws.StringValue(input.MessageAttributes["type"].StringValue))
	assert.Equal(t, string(event.TokenSoldEvent), aws.StringValue(input.MessageGroupId))
	assert.Equal(t, e.Id, aws.StringValue(input.MessageDeduplicationId))

	msg, err := Decode([]byte(aws.StringValue(input.MessageBody)))
	require.NoError(t, err)
	assert.Equal(t, e.Id, msg.Id)

	require.NoError(t, NewSqsPublisher(client, "https://sqs/queue", false).Publish(context.Background(), e))
	assert.Nil(t, client.inputs[1].MessageGroupId)
}

func TestKafkaPublisher(t *testing.T) {
	writer := &fakeKafka{}
	publisher := &KafkaPublisher{writer: writer, topic: "marketplace"}
	e := soldEvent()

	require.NoError(t, publisher.Publish(context.Background(), e))
	require.Len(t, writer.messages, 1)
	assert.Equal(t, []byte(PartitionKey(e)), writer.messages[0].Key)
	assert.Equal(t, kafka.Header{Key: "type", Value: []byte(event.TokenSoldEvent)}, writer.messages[0].Headers[0])

	require.NoError(t, publisher.Close())
	assert.True(t, writer.closed)
}

func TestAmqpPublisherRequiresKnownExchange(t *testing.T) {
	_, err := NewAmqpPublisher("amqp://localhost", "unknown", "local", false)
	assert.ErrorIs(t, err, ErrExchangeNotFound)

	p, err := NewAmqpPublisher("amqp://localhost", MarketplaceExchange, "local", true)
	require.NoError(t, err)
	assert.Equal(t, "amqp", p.Name())
	assert.NoError(t, p.Close())
}
