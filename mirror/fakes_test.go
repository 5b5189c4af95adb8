package mirror

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strconv"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/stretchr/testify/require"

	"github.com/gospellibrary/sdk-go/catalog"
	"github.com/gospellibrary/sdk-go/catalogtest"
	"github.com/gospellibrary/sdk-go/client"
	"github.com/gospellibrary/sdk-go/types"
)

const (
	testBucket   = "catalog-mirror"
	testPrefix   = "mirror"
	testKeyID    = "alias/catalog-mirror"
	testQueueURL = "https://sqs.us-east-1.amazonaws.com/123456789012/catalogs"
	testSchema   = "v4"
	testVersion  = 42
)

type object struct {
	data     []byte
	metadata map[string]string
}

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]object
	getErr  error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string]object)}
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getErr != nil {
		return nil, f.getErr
	}
	obj, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:     io.NopCloser(bytes.NewReader(obj.data)),
		Metadata: obj.metadata,
	}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = object{data: data, metadata: in.Metadata}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) object(key string) (object, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[testBucket+"/"+key]
	return obj, ok
}

// fakeKMS wraps data keys by prefixing them with the key id.
type fakeKMS struct {
	encrypts int
	decrypts int
}

func (f *fakeKMS) Encrypt(_ context.Context, in *kms.EncryptInput, _ ...func(*kms.Options)) (*kms.EncryptOutput, error) {
	f.encrypts++
	blob := append([]byte(aws.ToString(in.KeyId)+":"), in.Plaintext...)
	return &kms.EncryptOutput{CiphertextBlob: blob, KeyId: in.KeyId}, nil
}

func (f *fakeKMS) Decrypt(_ context.Context, in *kms.DecryptInput, _ ...func(*kms.Options)) (*kms.DecryptOutput, error) {
	f.decrypts++
	prefix := []byte(testKeyID + ":")
	if !bytes.HasPrefix(in.CiphertextBlob, prefix) {
		return nil, errors.New("InvalidCiphertextException")
	}
	return &kms.DecryptOutput{Plaintext: bytes.TrimPrefix(in.CiphertextBlob, prefix)}, nil
}

type fakeSQS struct {
	mu       sync.Mutex
	next     int
	queue    []sqstypes.Message
	deleted  []string
	received int
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.push(aws.ToString(in.MessageBody))
	return &sqs.SendMessageOutput{MessageId: aws.String(id)}, nil
}

func (f *fakeSQS) ReceiveMessage(_ context.Context, in *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received++

	n := min(int(in.MaxNumberOfMessages), len(f.queue))
	return &sqs.ReceiveMessageOutput{Messages: append([]sqstypes.Message(nil), f.queue[:n]...)}, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	handle := aws.ToString(in.ReceiptHandle)
	f.deleted = append(f.deleted, handle)
	for i, m := range f.queue {
		if aws.ToString(m.ReceiptHandle) == handle {
			f.queue = append(f.queue[:i], f.queue[i+1:]...)
			break
		}
	}
	return &sqs.DeleteMessageOutput{}, nil
}

// push enqueues body and returns its message id. Callers hold f.mu.
func (f *fakeSQS) push(body string) string {
	f.next++
	id := "msg-" + strconv.Itoa(f.next)
	f.queue = append(f.queue, sqstypes.Message{
		MessageId:     aws.String(id),
		ReceiptHandle: aws.String("rh-" + strconv.Itoa(f.next)),
		Body:          aws.String(body),
	})
	return id
}

func (f *fakeSQS) enqueue(bodies ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, body := range bodies {
		f.push(body)
	}
}

type fakeSSM map[string]string

func (f fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	value, ok := f[aws.ToString(in.Name)]
	if !ok {
		return nil, &ssmtypes.ParameterNotFound{}
	}
	return &ssm.GetParameterOutput{Parameter: &ssmtypes.Parameter{Name: in.Name, Value: aws.String(value)}}, nil
}

type fakeSTS struct {
	arn string
	err error
}

func (f fakeSTS) GetCallerIdentity(context.Context, *sts.GetCallerIdentityInput, ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &sts.GetCallerIdentityOutput{Arn: aws.String(f.arn)}, nil
}

// newUpstream serves an English catalog at testVersion from a fixture CDN.
func newUpstream(t *testing.T) (catalog.Source, *catalogtest.Server) {
	t.Helper()

	srv := catalogtest.NewServer(t)
	srv.Put(catalog.LanguagesPath(testSchema), []byte(catalogtest.LanguagesJSON))
	srv.Put(catalog.IndexPath(testSchema, "eng"), []byte(`{"catalogVersion": `+strconv.Itoa(testVersion)+`}`))

	encoded, err := catalog.XZ.Encode(catalogtest.CatalogBytes(t, catalogtest.EnglishLocalized))
	require.NoError(t, err)
	srv.Put(catalog.CatalogPath(testSchema, "eng", testVersion, catalog.XZ), encoded)

	session := client.NewSession(types.Config{MaxRetries: -1})
	src, err := catalog.NewHTTPSource(session, srv.BaseURL())
	require.NoError(t, err)
	return src, srv
}
