package sqsmq

import (
	"context"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/zlnvch/notesync/mq"
)

// sqsAPI is the subset of the SQS client the queue calls.
type sqsAPI interface {
	ListQueues(ctx context.Context, params *sqs.ListQueuesInput, optFns ...func(*sqs.Options)) (*sqs.ListQueuesOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

func newSQSClient(ctx context.Context, devMode bool, sqsEndpoint string) (*sqs.Client, error) {
	if devMode {
		// Local SQS emulators accept any credentials
		cfg, err := config.LoadDefaultConfig(ctx,
			config.WithRegion("us-east-1"),
			config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider("dummy", "dummy", ""),
			),
		)
		if err != nil {
			return nil, err
		}

		return sqs.NewFromConfig(cfg, func(o *sqs.Options) {
			o.BaseEndpoint = aws.String(sqsEndpoint)
		}), nil
	}

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return sqs.NewFromConfig(cfg), nil
}

// findQueueURL pages through the queues whose name starts with queueName and
// returns the exact match.
func findQueueURL(ctx context.Context, client sqsAPI, queueName string) (string, bool, error) {
	var next *string
	for {
		out, err := client.ListQueues(ctx, &sqs.ListQueuesInput{
			QueueNamePrefix: aws.String(queueName),
			NextToken:       next,
		})
		if err != nil {
			return "", false, err
		}
		for _, q := range out.QueueUrls {
			if strings.HasSuffix(q, "/"+queueName) {
				return q, true, nil
			}
		}
		if out.NextToken == nil {
			return "", false, nil
		}
		next = out.NextToken
	}
}

func toMessage(msg types.Message) *mq.Message {
	count, _ := strconv.Atoi(msg.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)])
	return &mq.Message{
		Id:           aws.ToString(msg.ReceiptHandle),
		Body:         aws.ToString(msg.Body),
		ReceiveCount: count,
	}
}
