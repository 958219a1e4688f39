package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/dmitrijs2005/pulsekeeper/internal/keylock"
)

// S3API is the subset of *s3.Client used by S3Store.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Config locates an S3-compatible endpoint (AWS or MinIO).
type S3Config struct {
	User         string
	Password     string
	Bucket       string
	Region       string
	BaseEndpoint string
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// NewS3Client builds a path-style client with static credentials.
func NewS3Client(ctx context.Context, c S3Config) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(c.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			c.User,
			c.Password,
			"",
		)))
	if err != nil {
		return nil, err
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if c.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(c.BaseEndpoint)
		}
		o.UsePathStyle = true
	}), nil
}

// S3Store keeps each record as the object <collection>/<key>.json.
// Create uses a conditional put (If-None-Match: *) so the bucket itself
// enforces exclusivity; Update replaces only the version it has just
// observed (If-Match: <etag>).
type S3Store struct {
	client S3API
	bucket string
	locks  *keylock.Locker
}

var _ DocumentStore = (*S3Store)(nil)

func NewS3Store(client S3API, bucket string) *S3Store {
	return &S3Store{client: client, bucket: bucket, locks: keylock.New()}
}

const s3Ext = ".json"

func objectKey(collection, key string) string {
	return path.Join(collection, key+s3Ext)
}

func (s *S3Store) Create(ctx context.Context, collection, key string, v any) error {
	if err := validateAddress(collection, key); err != nil {
		return err
	}
	body, err := json.Marshal(v)
	if err != nil {
		return storageFailure("encode", collection, key, err)
	}

	unlock := s.locks.Lock(collection, key)
	defer unlock()

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey(collection, key)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		IfNoneMatch: aws.String("*"),
	})
	if err != nil {
		if hasErrorCode(err, "PreconditionFailed", "ConditionalRequestConflict") {
			return alreadyExists(collection, key)
		}
		return storageFailure("put", collection, key, err)
	}
	return nil
}

func (s *S3Store) Read(ctx context.Context, collection, key string, v any) error {
	if err := validateAddress(collection, key); err != nil {
		return err
	}

	unlock := s.locks.Lock(collection, key)
	defer unlock()

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(collection, key)),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return notFound(collection, key)
		}
		return storageFailure("get", collection, key, err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return storageFailure("get", collection, key, err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return corrupt(collection, key, err)
	}
	return nil
}

func (s *S3Store) Update(ctx context.Context, collection, key string, v any) error {
	if err := validateAddress(collection, key); err != nil {
		return err
	}
	body, err := json.Marshal(v)
	if err != nil {
		return storageFailure("encode", collection, key, err)
	}

	unlock := s.locks.Lock(collection, key)
	defer unlock()

	etag, err := s.head(ctx, collection, key)
	if err != nil {
		return err
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey(collection, key)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		IfMatch:     etag,
	})
	if err != nil {
		if hasErrorCode(err, "PreconditionFailed") {
			// deleted or replaced by another writer since the head request
			return notFound(collection, key)
		}
		return storageFailure("put", collection, key, err)
	}
	return nil
}

func (s *S3Store) Delete(ctx context.Context, collection, key string) error {
	if err := validateAddress(collection, key); err != nil {
		return err
	}

	unlock := s.locks.Lock(collection, key)
	defer unlock()

	if _, err := s.head(ctx, collection, key); err != nil {
		return err
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(collection, key)),
	})
	if err != nil {
		return storageFailure("delete", collection, key, err)
	}
	return nil
}

func (s *S3Store) Keys(ctx context.Context, collection string) ([]string, error) {
	if err := validateName("collection", collection); err != nil {
		return nil, err
	}

	prefix := collection + "/"
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	keys := []string{}
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, storageFailure("list", collection, "", err)
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if strings.Contains(name, "/") || !strings.HasSuffix(name, s3Ext) {
				continue
			}
			keys = append(keys, strings.TrimSuffix(name, s3Ext))
		}
	}
	return keys, nil
}

// head returns the current ETag of the object.
func (s *S3Store) head(ctx context.Context, collection, key string) (*string, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(collection, key)),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, notFound(collection, key)
		}
		return nil, storageFailure("head", collection, key, err)
	}
	return out.ETag, nil
}

func isNoSuchKey(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	if errors.As(err, &nsk) || errors.As(err, &nf) {
		return true
	}
	return hasErrorCode(err, "NoSuchKey", "NotFound")
}

func hasErrorCode(err error, codes ...string) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, c := range codes {
		if apiErr.ErrorCode() == c {
			return true
		}
	}
	return false
}
