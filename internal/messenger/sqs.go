package messenger

import (
	"context"

	"github.com/ZilDuck/nft-marketplace/internal/event"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"
	"go.uber.org/zap"
)

// SqsPublisher sends each event as one SQS message. FIFO queues are grouped
// by event type.
type SqsPublisher struct {
	client   sqsiface.SQSAPI
	queueUrl string
	fifo     bool
}

func NewSqsSession(region, accessKey, secretKey, token string) (*session.Session, error) {
	cfg := &aws.Config{Region: aws.String(region)}
	if accessKey != "" {
		cfg.Credentials = credentials.NewStaticCredentials(accessKey, secretKey, token)
	}

	return session.NewSession(cfg)
}

func NewSqsPublisher(client sqsiface.SQSAPI, queueUrl string, fifo bool) *SqsPublisher {
	return &SqsPublisher{client: client, queueUrl: queueUrl, fifo: fifo}
}

func (p *SqsPublisher) Name() string {
	return "sqs"
}

func (p *SqsPublisher) Publish(ctx context.Context, e event.Event) error {
	body, err := Encode(e)
	if err != nil {
		return err
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueUrl),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]*sqs.MessageAttributeValue{
			"type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(e.Type)),
			},
		},
	}
	if p.fifo {
		input.MessageGroupId = aws.String(string(e.Type))
		input.MessageDeduplicationId = aws.String(e.Id)
	}

	out, err := p.client.SendMessageWithContext(ctx, input)
	if err != nil {
		zap.L().With(zap.Error(err), zap.String("queue", p.queueUrl)).Error("[Queue] Failed to send message")
		return err
	}

	zap.L().With(zap.String("queue", p.queueUrl), zap.String("messageId", aws.StringValue(out.MessageId))).Debug("[Queue] Sent message")

	return nil
}

func (p *SqsPublisher) Close() error {
	return nil
}
