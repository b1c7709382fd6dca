// Package awsconn builds the shared aws.Config used by the SQS, S3,
// DynamoDB, and Secrets Manager clients.
package awsconn

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// Options select the region, endpoint, and credentials for AWS clients.
// Zero values defer to the default credential chain.
type Options struct {
	Region      string
	EndpointURL string
	RoleARN     string
	SessionName string
}

// Load builds an aws.Config from the default credential chain plus the
// given options. Region resolution order: Options.Region, AWS_REGION,
// AWS_DEFAULT_REGION, then us-east-1.
func Load(ctx context.Context, opts Options) (aws.Config, error) {
	region := opts.Region
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	if region == "" {
		region = os.Getenv("AWS_DEFAULT_REGION")
	}
	if region == "" {
		region = "us-east-1"
	}

	configOpts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}

	// Custom endpoint for local stacks (localstack, minio-style setups).
	if opts.EndpointURL != "" {
		awsCfg.BaseEndpoint = aws.String(opts.EndpointURL)
	}

	if opts.RoleARN != "" {
		stsClient := sts.NewFromConfig(awsCfg)
		creds := stscreds.NewAssumeRoleProvider(stsClient, opts.RoleARN, func(o *stscreds.AssumeRoleOptions) {
			if opts.SessionName != "" {
				o.RoleSessionName = opts.SessionName
			} else {
				o.RoleSessionName = "docflow-ingestion"
			}
		})
		awsCfg.Credentials = aws.NewCredentialsCache(creds)
		slog.Debug("using assumed role", "role_arn", opts.RoleARN)
	}

	return awsCfg, nil
}
