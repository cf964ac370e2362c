package notify

import (
	"context"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/fitdesk/fitdesk-api/internal/models"
	"github.com/rs/zerolog"
)

// snsAPI is the slice of the SNS client the channel uses; tests substitute
// a fake.
type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSChannel delivers SMS notifications via AWS SNS. The recipient
// identifier is an E.164 phone number.
type SNSChannel struct {
	client   snsAPI
	senderID string
	logger   zerolog.Logger
}

func NewSNSChannel(ctx context.Context, region, senderID string, logger zerolog.Logger) (*SNSChannel, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return &SNSChannel{
		client:   sns.NewFromConfig(cfg),
		senderID: senderID,
		logger:   logger.With().Str("channel", "sms").Logger(),
	}, nil
}

func (c *SNSChannel) Type() models.ChannelType {
	return models.ChannelSMS
}

func (c *SNSChannel) Send(ctx context.Context, recipient, subject, body string) error {
	message := body
	if subject != "" {
		message = subject + "\n" + body
	}
	input := &sns.PublishInput{
		Message:     &message,
		PhoneNumber: &recipient,
	}
	if c.senderID != "" {
		input.MessageAttributes = map[string]types.MessageAttributeValue{
			"AWS.SNS.SMS.SenderID": {
				DataType:    strPtr("String"),
				StringValue: &c.senderID,
			},
		}
	}

	out, err := c.client.Publish(ctx, input)
	if err != nil {
		return Transient(err)
	}

	event := c.logger.Info().Str("recipient", recipient)
	if out.MessageId != nil {
		event = event.Str("message_id", *out.MessageId)
	}
	event.Msg("sms sent")
	return nil
}

func (c *SNSChannel) String() string {
	return "SNSChannel"
}

func strPtr(s string) *string {
	return &s
}
