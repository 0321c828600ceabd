package assets

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ObjectGetter is the part of *s3.Client the S3 source needs.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source serves files stored in an S3 bucket.
//
// Example usage:
//
//	cfg := aws.Config{Region: "eu-west-1"}
//	client := s3.NewFromConfig(cfg)
//	src := assets.NewS3Source(client, "viewer-assets", "spc/")
type S3Source struct {
	client ObjectGetter
	bucket string
	prefix string
}

// NewS3Source creates a source reading keys below prefix in bucket.
func NewS3Source(client ObjectGetter, bucket, prefix string) *S3Source {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Source{client: client, bucket: bucket, prefix: prefix}
}

// Open implements Source. Buckets have no directories, so a name ending in
// "/" is served as that prefix's index file.
func (s *S3Source) Open(ctx context.Context, name string) (*Object, error) {
	if strings.HasSuffix(name, "/") || name == "" {
		name = path.Join(name, IndexFile)
	}
	key := s.prefix + name

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("assets: s3 get %s: %w", key, err)
	}

	obj := &Object{
		Body:        out.Body,
		Size:        aws.ToInt64(out.ContentLength),
		ModTime:     aws.ToTime(out.LastModified),
		ContentType: aws.ToString(out.ContentType),
	}
	// Buckets often store everything as binary/octet-stream.
	if obj.ContentType == "" || obj.ContentType == "binary/octet-stream" {
		obj.ContentType = ContentType(name)
	}
	return obj, nil
}
