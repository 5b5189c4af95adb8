package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/gospellibrary/sdk-go/catalog"
	"github.com/gospellibrary/sdk-go/types"
)

// PublishOptions controls how one catalog is written to the mirror.
type PublishOptions struct {
	// Codec compresses the mirrored catalog. Nil keeps the upstream encoding.
	Codec catalog.Codec
	// Encrypt envelope encrypts every object written.
	Encrypt bool
}

// NewPublishOptions returns options that keep the upstream codec and
// encrypt objects.
func NewPublishOptions() PublishOptions {
	return PublishOptions{Encrypt: true}
}

// Publisher copies catalogs from an upstream Source into a mirror bucket.
type Publisher struct {
	upstream      catalog.Source
	upstreamCodec catalog.Codec
	s3            S3API
	sqs           SQSAPI
	envelope      *Envelope
	cfg           Config
	schemaVersion string
	logger        *slog.Logger
}

// PublisherConfig configures a Publisher.
type PublisherConfig struct {
	Mirror        Config
	SchemaVersion string
	Upstream      catalog.Source
	// UpstreamCodec is the encoding of upstream catalogs (default XZ).
	UpstreamCodec catalog.Codec
	S3            S3API
	// SQS may be nil when Mirror.QueueURL is empty.
	SQS      SQSAPI
	Envelope *Envelope
	Logger   *slog.Logger
}

// NewPublisher creates a Publisher.
func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	if cfg.Upstream == nil || cfg.S3 == nil {
		return nil, fmt.Errorf("%w: upstream source and S3 client are required", types.ErrInvalidInput)
	}
	if cfg.Mirror.Bucket == "" {
		return nil, fmt.Errorf("%w: mirror bucket is required", types.ErrInvalidInput)
	}
	if cfg.Mirror.QueueURL != "" && cfg.SQS == nil {
		return nil, fmt.Errorf("%w: SQS client is required when a queue URL is set", types.ErrInvalidInput)
	}
	if cfg.SchemaVersion == "" {
		cfg.SchemaVersion = types.DefaultSchemaVersion
	}
	if cfg.UpstreamCodec == nil {
		cfg.UpstreamCodec = catalog.XZ
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	return &Publisher{
		upstream:      cfg.Upstream,
		upstreamCodec: cfg.UpstreamCodec,
		s3:            cfg.S3,
		sqs:           cfg.SQS,
		envelope:      cfg.Envelope,
		cfg:           cfg.Mirror,
		schemaVersion: cfg.SchemaVersion,
		logger:        cfg.Logger,
	}, nil
}

// Publish mirrors the languages index, the language index and one catalog
// of languageCode. version 0 publishes the current version. The language
// index is only written when the published version is the current one, so
// readers of the mirror resolve the same version as upstream readers.
//
// The returned notification has been sent to the queue when one is
// configured.
func (p *Publisher) Publish(ctx context.Context, languageCode string, version int, opts PublishOptions) (*types.Notification, error) {
	if languageCode == "" {
		return nil, fmt.Errorf("%w: language code is required", types.ErrInvalidInput)
	}
	if opts.Encrypt && !p.envelope.CanSeal() {
		p.logger.Warn("encryption requested but no KMS key configured, skipping encryption")
		opts.Encrypt = false
	}
	codec := opts.Codec
	if codec == nil {
		codec = p.upstreamCodec
	}

	resolver := catalog.NewResolver(p.upstream, p.schemaVersion, p.logger)
	current, found, err := resolver.CurrentVersion(ctx, languageCode)
	if err != nil {
		return nil, err
	}
	if version == 0 {
		if !found {
			return nil, fmt.Errorf("%w: no current version for %s", types.ErrCatalogNotFound, languageCode)
		}
		version = current
	}
	key := types.CatalogKey{LanguageCode: languageCode, SchemaVersion: p.schemaVersion, Version: version}

	payload, err := p.upstream.Fetch(ctx, catalog.CatalogPath(p.schemaVersion, languageCode, version, p.upstreamCodec))
	if errors.Is(err, types.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", types.ErrCatalogNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch catalog %s: %w", key, err)
	}

	raw, err := p.upstreamCodec.Decode(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress catalog %s: %w", key, err)
	}
	metadata, err := catalogMetadata(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze catalog %s: %w", key, err)
	}
	if codec.Name() != p.upstreamCodec.Name() {
		p.logger.Info("re-encoding catalog", "catalog", key.String(), "from", p.upstreamCodec.Name(), "to", codec.Name())
		payload, err = codec.Encode(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to compress catalog %s: %w", key, err)
		}
	}

	if err := p.copyDocument(ctx, catalog.LanguagesPath(p.schemaVersion), opts); err != nil {
		return nil, err
	}
	if found && current == version {
		if err := p.copyDocument(ctx, catalog.IndexPath(p.schemaVersion, languageCode), opts); err != nil {
			return nil, err
		}
	}

	catalogKey := objectKey(p.cfg.Prefix, catalog.CatalogPath(p.schemaVersion, languageCode, version, codec))
	size, err := p.put(ctx, catalogKey, payload, metadata, opts)
	if err != nil {
		return nil, err
	}
	p.logger.Info("catalog mirrored", "catalog", key.String(), "bucket", p.cfg.Bucket, "key", catalogKey, "bytes", size)

	notification := &types.Notification{
		EventType:      types.EventCatalogPublished,
		LanguageCode:   languageCode,
		SchemaVersion:  p.schemaVersion,
		CatalogVersion: version,
		S3Bucket:       p.cfg.Bucket,
		S3Key:          catalogKey,
		SizeBytes:      size,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
	}
	return notification, p.notify(ctx, notification)
}

func (p *Publisher) copyDocument(ctx context.Context, relPath string, opts PublishOptions) error {
	data, err := p.upstream.Fetch(ctx, relPath)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", relPath, err)
	}
	_, err = p.put(ctx, objectKey(p.cfg.Prefix, relPath), data, nil, opts)
	return err
}

func (p *Publisher) put(ctx context.Context, key string, data []byte, metadata map[string]string, opts PublishOptions) (int64, error) {
	if metadata == nil {
		metadata = map[string]string{}
	}
	if opts.Encrypt {
		encrypted, err := p.envelope.Seal(ctx, data)
		if err != nil {
			return 0, fmt.Errorf("encryption of %s failed: %w", key, err)
		}
		data = encrypted
		metadata[MetadataEncryption] = EncryptionKMSEnvelope
	}

	_, err := p.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:   aws.String(p.cfg.Bucket),
		Key:      aws.String(key),
		Body:     bytes.NewReader(data),
		Metadata: metadata,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to upload s3://%s/%s: %w", p.cfg.Bucket, key, err)
	}
	return int64(len(data)), nil
}

func (p *Publisher) notify(ctx context.Context, n *types.Notification) error {
	if p.cfg.QueueURL == "" {
		return nil
	}

	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	out, err := p.sqs.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.cfg.QueueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"event_type":    {DataType: aws.String("String"), StringValue: aws.String(n.EventType)},
			"language_code": {DataType: aws.String("String"), StringValue: aws.String(n.LanguageCode)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	n.MessageID = aws.ToString(out.MessageId)
	return nil
}

// catalogMetadata summarizes a decompressed catalog as object metadata.
func catalogMetadata(ctx context.Context, raw []byte) (map[string]string, error) {
	tmp, err := os.CreateTemp("", "mirror-catalog-*.sqlite")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}

	result, err := catalog.Analyze(ctx, tmp.Name())
	if err != nil {
		return nil, err
	}

	var rows int64
	for _, count := range result.RowCounts() {
		rows += count
	}
	return map[string]string{
		"catalog-tables":     strconv.Itoa(len(result.Tables)),
		"catalog-rows":       strconv.FormatInt(rows, 10),
		"uncompressed-bytes": strconv.Itoa(len(raw)),
	}, nil
}
