package resolve

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/docflowhq/docflow/pkg/router"
)

// DefaultMaxFetchBytes caps how much of an object the resolver pulls; layout
// analysis only needs the leading pages.
const DefaultMaxFetchBytes = 20 << 20

// S3API is the subset of the S3 client used by S3Resolver.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Resolver range-gets the first MaxFetchBytes of (bucket, key). Missing
// objects are a miss, not an error.
type S3Resolver struct {
	client   S3API
	maxFetch int64
}

func NewS3Resolver(client S3API, maxFetch int64) *S3Resolver {
	if maxFetch <= 0 {
		maxFetch = DefaultMaxFetchBytes
	}
	return &S3Resolver{
		client:   client,
		maxFetch: maxFetch,
	}
}

func (r *S3Resolver) Fetch(ctx context.Context, desc *router.Descriptor) ([]byte, error) {
	if desc.Bucket == "" || desc.ObjectKey == "" {
		return nil, nil
	}

	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(desc.Bucket),
		Key:    aws.String(desc.ObjectKey),
		Range:  aws.String(fmt.Sprintf("bytes=0-%d", r.maxFetch-1)),
	})
	if err != nil {
		if isMissingObject(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching s3://%s/%s: %w", desc.Bucket, desc.ObjectKey, err)
	}
	defer out.Body.Close()

	content, err := io.ReadAll(io.LimitReader(out.Body, r.maxFetch))
	if err != nil {
		return nil, fmt.Errorf("reading s3://%s/%s: %w", desc.Bucket, desc.ObjectKey, err)
	}
	return content, nil
}

func isMissingObject(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NoSuchKey" || code == "NotFound" || code == "NoSuchBucket"
	}
	return false
}
