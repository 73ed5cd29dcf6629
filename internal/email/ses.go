package email

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/rs/zerolog/log"
)

const charset = "UTF-8"

// SESConfig holds the SES account and the addresses digests are sent with.
type SESConfig struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	From            string
	// ReplyTo is optional. Replies to a digest go here instead of From.
	ReplyTo string
	// ConfigurationSet is optional and enables SES event publishing.
	ConfigurationSet string
}

func (c SESConfig) validate() error {
	if c.AccessKeyID == "" || c.SecretAccessKey == "" || c.Region == "" {
		return errors.New("ses credentials and region are required")
	}
	if c.From == "" {
		return errors.New("ses sender is required")
	}
	return nil
}

// sesAPI is the part of *sesv2.Client the sender calls.
type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESClient sends plain-text mail through SESv2.
type SESClient struct {
	api sesAPI
	cfg SESConfig
}

// NewSESClient builds an SESv2 client from static credentials.
func NewSESClient(ctx context.Context, cfg SESConfig) (*SESClient, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &SESClient{api: sesv2.NewFromConfig(awsCfg), cfg: cfg}, nil
}

func (c *SESClient) Send(ctx context.Context, recipient string, msg Message) error {
	if c == nil || c.api == nil {
		return errors.New("ses client is not initialized")
	}
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return errors.New("recipient is required")
	}

	logger := log.Ctx(ctx).With().Str("recipient", recipient).Str("subject", msg.Subject).Logger()
	out, err := c.api.SendEmail(ctx, c.sendInput(recipient, msg))
	if err != nil {
		logger.Error().Err(err).Msg("Failed to send SES email")
		return fmt.Errorf("send ses email: %w", err)
	}
	logger.Debug().Str("message_id", aws.ToString(out.MessageId)).Msg("SES email accepted")
	return nil
}

func (c *SESClient) sendInput(recipient string, msg Message) *sesv2.SendEmailInput {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(c.cfg.From),
		Destination:      &types.Destination{ToAddresses: []string{recipient}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String(charset)},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(msg.Body), Charset: aws.String(charset)},
				},
			},
		},
	}
	if c.cfg.ReplyTo != "" {
		input.ReplyToAddresses = []string{c.cfg.ReplyTo}
	}
	if c.cfg.ConfigurationSet != "" {
		input.ConfigurationSetName = aws.String(c.cfg.ConfigurationSet)
	}
	return input
}
