package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/gospellibrary/sdk-go/types"
)

// MetadataEncryption is the object metadata key naming the payload encryption.
const MetadataEncryption = "encryption"

// Source reads catalog documents from a mirror bucket. It implements
// catalog.Source.
type Source struct {
	s3       S3API
	bucket   string
	prefix   string
	envelope *Envelope
}

// NewSource creates a source for bucket under prefix. envelope opens
// encrypted objects and may be nil for plaintext mirrors.
func NewSource(client S3API, bucket, prefix string, envelope *Envelope) *Source {
	return &Source{s3: client, bucket: bucket, prefix: prefix, envelope: envelope}
}

// Key returns the object key of a relative document path.
func (s *Source) Key(relPath string) string {
	return objectKey(s.prefix, relPath)
}

// Fetch downloads one document, decrypting it when its metadata says so.
// Missing objects match types.ErrNotFound.
func (s *Source) Fetch(ctx context.Context, relPath string) ([]byte, error) {
	key := s.Key(relPath)

	out, err := s.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if isNotFound(err) {
		return nil, fmt.Errorf("%w: s3://%s/%s", types.ErrNotFound, s.bucket, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get s3://%s/%s: %w", s.bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read s3://%s/%s: %w", s.bucket, key, err)
	}

	if out.Metadata[MetadataEncryption] == EncryptionKMSEnvelope {
		data, err = s.envelope.Open(ctx, data)
		if err != nil {
			return nil, fmt.Errorf("decryption of s3://%s/%s failed: %w", s.bucket, key, err)
		}
	}
	return data, nil
}

func objectKey(prefix, relPath string) string {
	if prefix == "" {
		return relPath
	}
	return path.Join(prefix, relPath)
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var noSuchKey *s3types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *s3types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var respErr *awshttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound
}
