package storage

import (
	"context"
	"errors"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ssm"
	"github.com/aws/aws-sdk-go/service/ssm/ssmiface"
)

// SSM keeps credentials as SecureString parameters under Prefix.
type SSM struct {
	srv    ssmiface.SSMAPI
	Prefix string
}

// NewSSM returns an SSM store for region.
func NewSSM(region, prefix string) (*SSM, error) {
	awsSession, err := session.NewSession(&aws.Config{
		Region: aws.String(region)},
	)
	if err != nil {
		return nil, err
	}
	return NewSSMWithClient(ssm.New(awsSession), prefix), nil
}

// NewSSMWithClient wraps an existing SSM client.
func NewSSMWithClient(srv ssmiface.SSMAPI, prefix string) *SSM {
	return &SSM{srv: srv, Prefix: prefix}
}

func (s *SSM) name(key string) string {
	if s.Prefix == "" {
		return "/" + key
	}
	return path.Join("/", s.Prefix, key)
}

func (s *SSM) Read(ctx context.Context, key string) (string, bool, error) {
	out, err := s.srv.GetParameterWithContext(ctx, &ssm.GetParameterInput{
		Name:           aws.String(s.name(key)),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		if errors.Is(mapParameterNotFound(err), ErrNotFound) {
			return "", false, nil
		}
		return "", false, &PersistenceError{Op: "read", Key: key, Err: err}
	}
	if out.Parameter == nil {
		return "", false, nil
	}
	return aws.StringValue(out.Parameter.Value), true, nil
}

// Write stores value. SSM rejects empty values, so an empty value removes
// the parameter instead.
func (s *SSM) Write(ctx context.Context, key, value string) error {
	if value == "" {
		return s.Delete(ctx, key)
	}
	_, err := s.srv.PutParameterWithContext(ctx, &ssm.PutParameterInput{
		Name:      aws.String(s.name(key)),
		Value:     aws.String(value),
		Type:      aws.String(ssm.ParameterTypeSecureString),
		Overwrite: aws.Bool(true),
	})
	if err != nil {
		return &PersistenceError{Op: "write", Key: key, Err: err}
	}
	return nil
}

func (s *SSM) Delete(ctx context.Context, key string) error {
	_, err := s.srv.DeleteParameterWithContext(ctx, &ssm.DeleteParameterInput{
		Name: aws.String(s.name(key)),
	})
	if err != nil && !errors.Is(mapParameterNotFound(err), ErrNotFound) {
		return &PersistenceError{Op: "delete", Key: key, Err: err}
	}
	return nil
}

func mapParameterNotFound(err error) error {
	var aerr awserr.Error
	if errors.As(err, &aerr) && aerr.Code() == ssm.ErrCodeParameterNotFound {
		return ErrNotFound
	}
	return err
}
