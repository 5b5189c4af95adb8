package mirror

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gospellibrary/sdk-go/types"
)

func notificationJSON(t *testing.T, lang string, version int) string {
	t.Helper()

	body, err := json.Marshal(types.Notification{
		EventType:      types.EventCatalogPublished,
		LanguageCode:   lang,
		SchemaVersion:  testSchema,
		CatalogVersion: version,
		S3Bucket:       testBucket,
		S3Key:          "v4/languages/" + lang + "/catalogs/1.xz",
	})
	require.NoError(t, err)
	return string(body)
}

func snsWrap(t *testing.T, message string) string {
	t.Helper()

	body, err := json.Marshal(map[string]string{
		"Type":     "Notification",
		"TopicArn": "arn:aws:sns:us-east-1:123456789012:catalogs",
		"Message":  message,
	})
	require.NoError(t, err)
	return string(body)
}

func TestWatcherPollRawAndSNS(t *testing.T) {
	queue := &fakeSQS{}
	queue.enqueue(
		notificationJSON(t, "eng", 42),
		snsWrap(t, notificationJSON(t, "spa", 17)),
		"not json",
		`{"event_type": "catalog.deleted", "language_code": "eng"}`,
	)
	w := NewWatcher(queue, testQueueURL, nil)

	got, err := w.Poll(context.Background(), PollOptions{})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "eng", got[0].LanguageCode)
	assert.Equal(t, 42, got[0].CatalogVersion)
	assert.Equal(t, "msg-1", got[0].MessageID)
	assert.Equal(t, "rh-1", got[0].ReceiptHandle)
	assert.Equal(t, notificationJSON(t, "eng", 42), got[0].RawMessage)

	assert.Equal(t, "spa", got[1].LanguageCode)
	assert.Equal(t, types.CatalogKey{LanguageCode: "spa", SchemaVersion: testSchema, Version: 17}, got[1].Key())

	// Parsed notifications are acknowledged; unparseable ones stay queued.
	assert.Equal(t, []string{"rh-1", "rh-2"}, queue.deleted)
	assert.Len(t, queue.queue, 2)
}

func TestWatcherPollManualAcknowledge(t *testing.T) {
	queue := &fakeSQS{}
	queue.enqueue(notificationJSON(t, "eng", 1))
	w := NewWatcher(queue, testQueueURL, nil)
	autoAck := false

	got, err := w.Poll(context.Background(), PollOptions{AutoAcknowledge: &autoAck})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Empty(t, queue.deleted)

	require.NoError(t, w.Acknowledge(context.Background(), got[0].ReceiptHandle))
	assert.Equal(t, []string{"rh-1"}, queue.deleted)
	assert.Empty(t, queue.queue)
}

func TestWatcherPollLanguageFilter(t *testing.T) {
	queue := &fakeSQS{}
	queue.enqueue(notificationJSON(t, "eng", 1), notificationJSON(t, "spa", 2))
	w := NewWatcher(queue, testQueueURL, nil)

	got, err := w.Poll(context.Background(), PollOptions{LanguageCodes: []string{"spa"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "spa", got[0].LanguageCode)
	assert.Equal(t, []string{"rh-2"}, queue.deleted)
}

func TestWatcherPollClampsOptions(t *testing.T) {
	queue := &fakeSQS{}
	for i := 0; i < 12; i++ {
		queue.enqueue(notificationJSON(t, "eng", i+1))
	}
	w := NewWatcher(queue, testQueueURL, nil)

	got, err := w.Poll(context.Background(), PollOptions{MaxMessages: 50, WaitTimeSeconds: 60})
	require.NoError(t, err)
	assert.Len(t, got, 10)
}

func TestParseNotificationSNSWithoutMessage(t *testing.T) {
	_, err := parseNotification(`{"Type": "Notification"}`)
	assert.Error(t, err)
}
