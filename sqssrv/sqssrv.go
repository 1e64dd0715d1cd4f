package sqssrv

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"
)

// Queue forwards relay results and removes the consumed input message.
type Queue struct {
	srv sqsiface.SQSAPI
}

// New return sqs queue for region
func New(region string) (*Queue, error) {
	awsSession, err := session.NewSession(&aws.Config{
		Region: aws.String(region)},
	)
	if err != nil {
		return nil, err
	}
	return NewWithClient(sqs.New(awsSession)), nil
}

func NewWithClient(srv sqsiface.SQSAPI) *Queue {
	return &Queue{srv: srv}
}

// Send send sqs message and remove from queue
func (q *Queue) Send(ctx context.Context, msg *sqs.SendMessageInput, delmsg *sqs.DeleteMessageInput) (*sqs.DeleteMessageOutput, error) {
	if _, err := q.srv.SendMessageWithContext(ctx, msg); err != nil {
		return nil, err
	}
	return q.srv.DeleteMessageWithContext(ctx, delmsg)
}
