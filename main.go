package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/daveham/FeaturesManager/app"
	"github.com/daveham/FeaturesManager/config"
	"github.com/daveham/FeaturesManager/relay"
	"github.com/daveham/FeaturesManager/sqssrv"
)

// Handler relays SQS messages describing SmugMug API calls.
// Required Enviroment variables:
// INPUT_QUEUE - SQS url to pull call payloads.
// OUTPUT_QUEUE - SQS url for results.
// STORAGE_DRIVER - "ssm" in Lambda; credentials are read with AWS_REGION and STORAGE_SSM_PREFIX.
// SMUGMUG_API_KEY, SMUGMUG_API_SECRET - used when storage holds no consumer credentials.
// RELAY_RETRIES - Number of trys before fail.
type Handler struct {
	App   *app.App
	Queue relay.Sender
}

// Handle Handles AWS SQS Messages in a Lambda.
func (h *Handler) Handle(ctx context.Context, event events.SQSEvent) (string, error) {
	client, err := h.App.APIClient(ctx)
	if err != nil {
		return "", err
	}
	r := &relay.Relay{
		API:         client,
		Queue:       h.Queue,
		InputQueue:  h.App.Config.InputQueue,
		OutputQueue: h.App.Config.OutputQueue,
		Retries:     h.App.Config.RelayRetries,
		Logger:      h.App.Logger,
	}

	var msgID string
	for _, sqsmsg := range event.Records {
		msgID = sqsmsg.MessageId
		call, err := relay.ParseCall(sqsmsg.Body, sqsmsg.ReceiptHandle)
		if err != nil {
			return msgID, err
		}
		if call.ID == "" {
			call.ID = msgID
		}
		if _, err := r.Handle(ctx, call); err != nil {
			return msgID, err
		}
	}
	return msgID, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %s", err)
	}
	a, err := app.New(cfg)
	if err != nil {
		log.Fatalf("app: %s", err)
	}
	defer a.Close()

	q, err := sqssrv.New(cfg.AWSRegion)
	if err != nil {
		log.Fatalf("sqs: %s", err)
	}
	h := &Handler{App: a, Queue: q}
	lambda.Start(h.Handle)
}
