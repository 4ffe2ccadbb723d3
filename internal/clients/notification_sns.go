package clients

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/service"
)

var _ service.NotificationSender = (*SNSNotifier)(nil)

type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSNotifier publishes notifications to an SNS topic. Subscribers filter on
// the notification_type message attribute.
type SNSNotifier struct {
	client   snsAPI
	topicARN string
	logger   *logging.Logger
}

// NewSNSNotifier loads the default AWS configuration (environment, shared
// config, instance role) and targets the configured topic.
func NewSNSNotifier(ctx context.Context, cfg config.NotificationConfig) (*SNSNotifier, error) {
	if cfg.SNSTopicARN == "" {
		return nil, fmt.Errorf("NOTIFICATION_SNS_TOPIC_ARN not set")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return newSNSNotifier(sns.NewFromConfig(awsCfg), cfg.SNSTopicARN), nil
}

func newSNSNotifier(client snsAPI, topicARN string) *SNSNotifier {
	return &SNSNotifier{
		client:   client,
		topicARN: topicARN,
		logger:   logging.New("sns-notifier"),
	}
}

func (s *SNSNotifier) Send(ctx context.Context, n *models.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	out, err := s.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(s.topicARN),
		Subject:  aws.String(n.Subject),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"notification_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(n.Type)),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("sns publish failed for topic %s: %w", s.topicARN, err)
	}

	s.logger.WithContext(ctx).Debug("Notification published", logging.Fields{
		"topic_arn":  s.topicARN,
		"message_id": aws.ToString(out.MessageId),
		"recipient":  n.Recipient,
	})
	return nil
}

func (s *SNSNotifier) Close() error {
	return nil
}
