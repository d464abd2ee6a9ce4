package aws

import (
	"context"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/d4a-protocol/d4a-test-helpers/pkg/signer/awsKmsSigner"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const kubernetesTokenPath = "/var/run/secrets/kubernetes.io/serviceaccount/token"

func LoadAWSConfig(ctx context.Context, regionOverride string) (aws.Config, error) {
	var options []func(*config.LoadOptions) error

	// Shared profiles don't exist inside a pod; rely on the service account.
	if !isInKubernetes() {
		options = append(options, config.WithSharedConfigProfile(getProfile()))
	}

	if regionOverride != "" {
		options = append(options, config.WithRegion(regionOverride))
	}

	return config.LoadDefaultConfig(ctx, options...)
}

func isInKubernetes() bool {
	_, err := os.Stat(kubernetesTokenPath)
	return err == nil
}

func getProfile() string {
	if profile := os.Getenv("AWS_PROFILE"); profile != "" {
		return profile
	}
	return "default"
}

func GetCallerIdentity(ctx context.Context, cfg aws.Config) (*sts.GetCallerIdentityOutput, error) {
	stsClient := sts.NewFromConfig(cfg)
	return stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
}

// NewKMSClientFactory returns a constructor for the KMS client used by
// awskms key references. The caller identity is logged at debug level so a
// misconfigured profile shows up before the first signing request.
func NewKMSClientFactory(region string, l *zap.Logger) func(ctx context.Context) (awsKmsSigner.KMSClient, error) {
	return func(ctx context.Context) (awsKmsSigner.KMSClient, error) {
		cfg, err := LoadAWSConfig(ctx, region)
		if err != nil {
			return nil, errors.Wrap(err, "failed to load AWS config")
		}

		if identity, err := GetCallerIdentity(ctx, cfg); err != nil {
			l.Sugar().Warnw("Failed to resolve AWS caller identity", "error", err)
		} else {
			l.Sugar().Debugw("Using AWS identity",
				zap.String("arn", aws.ToString(identity.Arn)),
				zap.String("region", cfg.Region),
			)
		}

		return kms.NewFromConfig(cfg), nil
	}
}
