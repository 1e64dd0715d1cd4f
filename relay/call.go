package relay

import (
	"encoding/json"
	"strconv"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/fatih/structs"

	"github.com/daveham/FeaturesManager/oauth"
)

// Call is an API request read from the input queue.
type Call struct {
	ID     string         `json:"id" structs:"id"`
	Method string         `json:"method" structs:"method"`
	Path   string         `json:"path" structs:"path"`
	Data   map[string]any `json:"data,omitempty" structs:"-"`
	// SQS Attributes
	MessageBody   string `json:"-" structs:"-"`
	ReceiptHandle string `json:"-" structs:"-"`
}

// ParseCall decodes an SQS message body.
func ParseCall(body, receiptHandle string) (*Call, error) {
	c := &Call{MessageBody: body, ReceiptHandle: receiptHandle}
	if err := json.Unmarshal([]byte(body), c); err != nil {
		return nil, err
	}
	if c.Method == "" {
		c.Method = "GET"
	}
	return c, nil
}

// RequestData returns Data in the form the signer takes.
func (c *Call) RequestData() oauth.Data {
	if len(c.Data) == 0 {
		return nil
	}
	return oauth.Data(c.Data)
}

// LogAttrs returns the identifying fields as slog key/value pairs.
func (c *Call) LogAttrs() []any {
	m := structs.Map(c)
	attrs := make([]any, 0, 2*len(m))
	for _, k := range []string{"id", "method", "path"} {
		attrs = append(attrs, k, m[k])
	}
	return attrs
}

// SqsDelMsg remove msg for processed message
func (c *Call) SqsDelMsg(inputQueue string) *sqs.DeleteMessageInput {
	return &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(inputQueue),
		ReceiptHandle: aws.String(c.ReceiptHandle),
	}
}

// Result is the relay's answer, sent to the output queue.
type Result struct {
	ID         string          `json:"id" structs:"id"`
	Method     string          `json:"method" structs:"method"`
	Path       string          `json:"path" structs:"path"`
	StatusCode int             `json:"status_code" structs:"status_code"`
	Attempts   int             `json:"attempts" structs:"attempts"`
	Response   json.RawMessage `json:"response,omitempty" structs:"-"`
	Error      string          `json:"error,omitempty" structs:"error,omitempty"`
}

// SqsMsgAttr return Result attributes
func (r *Result) SqsMsgAttr() map[string]*sqs.MessageAttributeValue {
	attrs := map[string]*sqs.MessageAttributeValue{}
	for k, v := range structs.Map(r) {
		switch t := v.(type) {
		case string:
			if t == "" {
				continue
			}
			attrs[k] = &sqs.MessageAttributeValue{
				DataType:    aws.String("String"),
				StringValue: aws.String(t),
			}
		case int:
			attrs[k] = &sqs.MessageAttributeValue{
				DataType:    aws.String("Number"),
				StringValue: aws.String(strconv.Itoa(t)),
			}
		}
	}
	return attrs
}

// SqsMsg return message to put into SQS.
func (r *Result) SqsMsg(outputQueue string) (*sqs.SendMessageInput, error) {
	jdoc, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return &sqs.SendMessageInput{
		QueueUrl:          aws.String(outputQueue),
		MessageAttributes: r.SqsMsgAttr(),
		MessageBody:       aws.String(string(jdoc)),
	}, nil
}
