// Package mirror copies published catalogs into an S3 bucket and reads them
// back.
//
// A mirror holds the same relative layout as the CDN under an optional key
// prefix, so a mirror Source can stand in for the CDN anywhere a
// catalog.Source is accepted. Objects may be KMS envelope encrypted, and a
// publish can be announced on an SQS queue for downstream Watchers.
package mirror

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/caarlos0/env/v11"
)

// DefaultRegion is the default AWS region.
const DefaultRegion = "us-east-1"

// ParameterPrefix is the SSM path holding mirror settings.
const ParameterPrefix = "/gospellibrary/mirror/"

// S3API is the subset of the S3 client used by the mirror.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// KMSAPI is the subset of the KMS client used for envelope encryption.
type KMSAPI interface {
	Encrypt(ctx context.Context, params *kms.EncryptInput, optFns ...func(*kms.Options)) (*kms.EncryptOutput, error)
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// SQSAPI is the subset of the SQS client used for publish notifications.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SSMAPI is the subset of the SSM client used to resolve mirror settings.
type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// STSAPI is the subset of the STS client used to validate credentials.
type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// Config holds mirror settings. Bucket, KMSKeyID and QueueURL left empty are
// looked up in SSM by ResolveParameters.
type Config struct {
	Region             string `env:"GOSPELLIBRARY_MIRROR_REGION"`
	Profile            string `env:"GOSPELLIBRARY_MIRROR_PROFILE"`
	AWSAccessKeyID     string `env:"GOSPELLIBRARY_MIRROR_AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `env:"GOSPELLIBRARY_MIRROR_AWS_SECRET_ACCESS_KEY"`
	Bucket             string `env:"GOSPELLIBRARY_MIRROR_BUCKET"`
	Prefix             string `env:"GOSPELLIBRARY_MIRROR_PREFIX"`
	KMSKeyID           string `env:"GOSPELLIBRARY_MIRROR_KMS_KEY_ID"`
	QueueURL           string `env:"GOSPELLIBRARY_MIRROR_QUEUE_URL"`
}

// LoadConfig reads GOSPELLIBRARY_MIRROR_* environment variables.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	return cfg, nil
}

// LoadAWSConfig builds an AWS config for cfg. Static credentials are used
// when both keys are set; otherwise the default chain, optionally with a
// shared config profile.
func LoadAWSConfig(ctx context.Context, cfg Config) (aws.Config, error) {
	region := cfg.Region
	if region == "" {
		region = DefaultRegion
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	switch {
	case cfg.AWSAccessKeyID != "" && cfg.AWSSecretAccessKey != "":
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AWSAccessKeyID,
			cfg.AWSSecretAccessKey,
			"",
		)))
	case cfg.Profile != "":
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return awsCfg, nil
}

// ValidateCredentials checks the credentials with STS and returns the
// caller ARN.
func ValidateCredentials(ctx context.Context, client STSAPI) (string, error) {
	out, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("invalid AWS credentials: %w", err)
	}
	return aws.ToString(out.Arn), nil
}

// ResolveParameters fills the empty Bucket, KMSKeyID and QueueURL of cfg
// from SSM:
//   - /gospellibrary/mirror/s3_bucket (required)
//   - /gospellibrary/mirror/kms_key_id (optional, encryption disabled when missing)
//   - /gospellibrary/mirror/queue_url (optional, notifications disabled when missing)
func ResolveParameters(ctx context.Context, client SSMAPI, cfg Config) (Config, error) {
	if cfg.Bucket == "" {
		bucket, found, err := getParameter(ctx, client, "s3_bucket")
		if err != nil {
			return cfg, err
		}
		if !found {
			return cfg, fmt.Errorf("mirror bucket not configured: %s%s not found", ParameterPrefix, "s3_bucket")
		}
		cfg.Bucket = bucket
	}

	if cfg.KMSKeyID == "" {
		keyID, _, err := getParameter(ctx, client, "kms_key_id")
		if err != nil {
			return cfg, err
		}
		cfg.KMSKeyID = keyID
	}

	if cfg.QueueURL == "" {
		queueURL, _, err := getParameter(ctx, client, "queue_url")
		if err != nil {
			return cfg, err
		}
		cfg.QueueURL = queueURL
	}

	return cfg, nil
}

func getParameter(ctx context.Context, client SSMAPI, name string) (string, bool, error) {
	out, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(ParameterPrefix + name),
		WithDecryption: aws.Bool(true),
	})
	var notFound *ssmtypes.ParameterNotFound
	if errors.As(err, &notFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get %s%s from SSM: %w", ParameterPrefix, name, err)
	}
	if out.Parameter == nil {
		return "", false, nil
	}
	return aws.ToString(out.Parameter.Value), true, nil
}

// Clients bundles the AWS service clients a mirror needs.
type Clients struct {
	S3  *s3.Client
	KMS *kms.Client
	SQS *sqs.Client
	SSM *ssm.Client
	STS *sts.Client
}

// NewClients creates service clients from one AWS config.
func NewClients(awsCfg aws.Config) Clients {
	return Clients{
		S3:  s3.NewFromConfig(awsCfg),
		KMS: kms.NewFromConfig(awsCfg),
		SQS: sqs.NewFromConfig(awsCfg),
		SSM: ssm.NewFromConfig(awsCfg),
		STS: sts.NewFromConfig(awsCfg),
	}
}

// Connect loads AWS config, validates the credentials and resolves the
// remaining settings from SSM.
func Connect(ctx context.Context, cfg Config) (Clients, Config, error) {
	awsCfg, err := LoadAWSConfig(ctx, cfg)
	if err != nil {
		return Clients{}, cfg, err
	}

	clients := NewClients(awsCfg)
	if _, err := ValidateCredentials(ctx, clients.STS); err != nil {
		return Clients{}, cfg, err
	}

	cfg, err = ResolveParameters(ctx, clients.SSM, cfg)
	if err != nil {
		return Clients{}, cfg, err
	}
	return clients, cfg, nil
}
