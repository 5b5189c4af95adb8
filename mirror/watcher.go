package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/tidwall/gjson"

	"github.com/gospellibrary/sdk-go/types"
)

// PollOptions contains options for polling publish notifications.
type PollOptions struct {
	MaxMessages     int32    // 1-10, default 10
	WaitTimeSeconds int32    // long polling wait, 0-20 seconds, default 20
	AutoAcknowledge *bool    // delete messages after receiving them (default: true)
	LanguageCodes   []string // only return notifications for these languages
}

// Watcher receives catalog publish notifications from an SQS queue.
type Watcher struct {
	sqs      SQSAPI
	queueURL string
	logger   *slog.Logger
}

// NewWatcher creates a watcher for queueURL.
func NewWatcher(client SQSAPI, queueURL string, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Watcher{sqs: client, queueURL: queueURL, logger: logger}
}

// Poll long-polls the queue once. Messages are published either directly by
// a Publisher or through an SNS topic subscription; both bodies are
// accepted. Messages that cannot be parsed are left on the queue.
//
// Messages are acknowledged as they are returned unless
// opts.AutoAcknowledge is false, in which case callers should call
// Acknowledge after processing each notification. Messages filtered out by
// LanguageCodes are left untouched.
func (w *Watcher) Poll(ctx context.Context, opts PollOptions) ([]types.Notification, error) {
	if opts.MaxMessages <= 0 || opts.MaxMessages > 10 {
		opts.MaxMessages = 10
	}
	if opts.WaitTimeSeconds <= 0 || opts.WaitTimeSeconds > 20 {
		opts.WaitTimeSeconds = 20
	}
	autoAcknowledge := true
	if opts.AutoAcknowledge != nil {
		autoAcknowledge = *opts.AutoAcknowledge
	}

	out, err := w.sqs.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:              aws.String(w.queueURL),
		MaxNumberOfMessages:   opts.MaxMessages,
		WaitTimeSeconds:       opts.WaitTimeSeconds,
		VisibilityTimeout:     300,
		MessageAttributeNames: []string{"All"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to poll SQS queue: %w", err)
	}

	var notifications []types.Notification
	for _, message := range out.Messages {
		body := aws.ToString(message.Body)
		notification, err := parseNotification(body)
		if err != nil {
			w.logger.Warn("failed to parse notification", "message_id", aws.ToString(message.MessageId), "error", err)
			continue
		}
		if len(opts.LanguageCodes) > 0 && !slices.Contains(opts.LanguageCodes, notification.LanguageCode) {
			continue
		}

		notification.MessageID = aws.ToString(message.MessageId)
		notification.ReceiptHandle = aws.ToString(message.ReceiptHandle)
		notification.RawMessage = body
		notifications = append(notifications, notification)

		if autoAcknowledge {
			if err := w.Acknowledge(ctx, notification.ReceiptHandle); err != nil {
				w.logger.Warn("failed to acknowledge notification", "message_id", notification.MessageID, "error", err)
			}
		}
	}
	return notifications, nil
}

// Acknowledge deletes a processed notification from the queue.
func (w *Watcher) Acknowledge(ctx context.Context, receiptHandle string) error {
	_, err := w.sqs.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(w.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	return nil
}

// parseNotification decodes a raw or SNS-wrapped notification body.
func parseNotification(body string) (types.Notification, error) {
	payload := body
	if gjson.Get(body, "Type").String() == "Notification" {
		message := gjson.Get(body, "Message")
		if message.Type != gjson.String {
			return types.Notification{}, fmt.Errorf("SNS envelope has no message")
		}
		payload = message.String()
	}

	var n types.Notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return types.Notification{}, fmt.Errorf("failed to parse notification payload: %w", err)
	}
	if n.EventType != types.EventCatalogPublished {
		return types.Notification{}, fmt.Errorf("unexpected event type %q", n.EventType)
	}
	return n, nil
}
