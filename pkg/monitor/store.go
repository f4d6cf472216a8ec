package monitor

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/chronicle-ai/chronicle/pkg/models"
)

// Object is one artifact visible in the external object store.
type Object struct {
	// ID is the stable external identifier (the object key).
	ID string
	// Name is the object's base name, used for kind detection.
	Name string
	// Hash is the store-side content hash (ETag); a changed hash
	// re-qualifies a Succeeded file for processing.
	Hash string
}

// ObjectStore lists and fetches source artifacts.
type ObjectStore interface {
	List(ctx context.Context) ([]Object, error)
	Fetch(ctx context.Context, id string) ([]byte, error)
}

// S3Store implements ObjectStore over an S3 bucket prefix.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Store builds the store from the ambient AWS configuration.
func NewS3Store(ctx context.Context, bucket, prefix string) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return &S3Store{
		client: s3.NewFromConfig(awsCfg),
		bucket: bucket,
		prefix: prefix,
	}, nil
}

// List returns all objects under the configured prefix.
func (s *S3Store) List(ctx context.Context) ([]Object, error) {
	var out []Object
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, models.NewFault(models.FaultTransientExternal, "monitor.list", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == "" || strings.HasSuffix(key, "/") {
				continue
			}
			out = append(out, Object{
				ID:   key,
				Name: baseName(key),
				Hash: strings.Trim(aws.ToString(obj.ETag), `"`),
			})
		}
	}
	return out, nil
}

// Fetch downloads one object body.
func (s *S3Store) Fetch(ctx context.Context, id string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		return nil, models.NewFault(models.FaultTransientExternal, "monitor.fetch", err)
	}
	defer func() { _ = obj.Body.Close() }()

	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return nil, models.NewFault(models.FaultTransientExternal, "monitor.fetch", err)
	}
	return data, nil
}

func baseName(key string) string {
	if i := strings.LastIndexByte(key, '/'); i >= 0 {
		return key[i+1:]
	}
	return key
}
