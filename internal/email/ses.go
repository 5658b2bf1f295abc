package email

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/rs/zerolog/log"
)

type sendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESClient wraps AWS SESv2 sending.
type SESClient struct {
	client sendEmailAPI
	sender string
	tags   map[string]string
}

// NewSESClient initializes an SES client from a resolved AWS config. Tags are
// attached to every message as SES message tags.
func NewSESClient(awsCfg aws.Config, sender string, tags map[string]string) (*SESClient, error) {
	if awsCfg.Region == "" {
		return nil, fmt.Errorf("ses region is required")
	}
	if strings.TrimSpace(sender) == "" {
		return nil, fmt.Errorf("ses sender is required")
	}

	return &SESClient{
		client: sesv2.NewFromConfig(awsCfg),
		sender: strings.TrimSpace(sender),
		tags:   tags,
	}, nil
}

// Send delivers a simple email to a single recipient.
func (c *SESClient) Send(ctx context.Context, recipient, subject, body string) error {
	return c.SendFrom(ctx, recipient, subject, body, "")
}

// SendFrom delivers a simple email using an optional sender override.
func (c *SESClient) SendFrom(ctx context.Context, recipient, subject, body, sender string) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("ses client is not initialized")
	}
	if recipient == "" {
		return fmt.Errorf("recipient is required")
	}

	from := strings.TrimSpace(sender)
	if from == "" {
		from = c.sender
	}
	if from == "" {
		return fmt.Errorf("sender is required")
	}

	input := &sesv2.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{recipient},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject)},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(body)},
				},
			},
		},
		FromEmailAddress: aws.String(from),
		EmailTags:        c.messageTags(),
	}

	if _, err := c.client.SendEmail(ctx, input); err != nil {
		log.Error().
			Err(err).
			Str("recipient", recipient).
			Str("subject", subject).
			Time("timestamp", time.Now().UTC()).
			Msg("Failed to send SES email")
		return fmt.Errorf("send ses email: %w", err)
	}

	return nil
}

func (c *SESClient) messageTags() []types.MessageTag {
	if len(c.tags) == 0 {
		return nil
	}
	tags := make([]types.MessageTag, 0, len(c.tags))
	for name, value := range c.tags {
		tags = append(tags, types.MessageTag{Name: aws.String(name), Value: aws.String(value)})
	}
	return tags
}
