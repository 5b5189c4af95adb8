package mirror

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveParameters(t *testing.T) {
	ssmClient := fakeSSM{
		ParameterPrefix + "s3_bucket":  testBucket,
		ParameterPrefix + "kms_key_id": testKeyID,
		ParameterPrefix + "queue_url":  testQueueURL,
	}

	cfg, err := ResolveParameters(context.Background(), ssmClient, Config{Prefix: testPrefix})
	require.NoError(t, err)
	assert.Equal(t, testBucket, cfg.Bucket)
	assert.Equal(t, testKeyID, cfg.KMSKeyID)
	assert.Equal(t, testQueueURL, cfg.QueueURL)
	assert.Equal(t, testPrefix, cfg.Prefix)
}

func TestResolveParametersKeepsExplicitValues(t *testing.T) {
	ssmClient := fakeSSM{ParameterPrefix + "s3_bucket": "from-ssm"}

	cfg, err := ResolveParameters(context.Background(), ssmClient, Config{Bucket: "explicit", QueueURL: testQueueURL})
	require.NoError(t, err)
	assert.Equal(t, "explicit", cfg.Bucket)
	assert.Empty(t, cfg.KMSKeyID)
	assert.Equal(t, testQueueURL, cfg.QueueURL)
}

func TestResolveParametersRequiresBucket(t *testing.T) {
	_, err := ResolveParameters(context.Background(), fakeSSM{}, Config{})
	assert.ErrorContains(t, err, "s3_bucket")
}

func TestValidateCredentials(t *testing.T) {
	arn, err := ValidateCredentials(context.Background(), fakeSTS{arn: "arn:aws:iam::123456789012:user/mirror"})
	require.NoError(t, err)
	assert.Equal(t, "arn:aws:iam::123456789012:user/mirror", arn)

	_, err = ValidateCredentials(context.Background(), fakeSTS{err: errors.New("ExpiredToken")})
	assert.ErrorContains(t, err, "invalid AWS credentials")
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("GOSPELLIBRARY_MIRROR_BUCKET", testBucket)
	t.Setenv("GOSPELLIBRARY_MIRROR_PREFIX", testPrefix)
	t.Setenv("GOSPELLIBRARY_MIRROR_REGION", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, testBucket, cfg.Bucket)
	assert.Equal(t, testPrefix, cfg.Prefix)
	assert.Equal(t, DefaultRegion, cfg.Region)
}

func TestLoadAWSConfigStaticCredentials(t *testing.T) {
	awsCfg, err := LoadAWSConfig(context.Background(), Config{
		Region:             "eu-west-1",
		AWSAccessKeyID:     "AKIDEXAMPLE",
		AWSSecretAccessKey: "secret",
	})
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", awsCfg.Region)

	creds, err := awsCfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AKIDEXAMPLE", creds.AccessKeyID)
}
