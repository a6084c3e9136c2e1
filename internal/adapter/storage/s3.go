package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	s3manager "github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	appconfig "github.com/semmidev/custos/internal/config"
	"github.com/semmidev/custos/internal/domain"
)

var errUploadAborted = errors.New("upload aborted")

type S3Storage struct {
	client   *s3.Client
	uploader *s3manager.Uploader
	bucket   string
	prefix   string
}

// NewS3 creates a new S3Storage instance using AWS SDK v2. Static keys are
// used when configured, otherwise the default credential chain applies. A
// custom endpoint switches to path-style addressing for MinIO and friends.
func NewS3(ctx context.Context, cfg appconfig.S3Config) (*S3Storage, error) {
	loadOpts := []func(*config.LoadOptions) error{}
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Storage{
		client:   client,
		uploader: s3manager.NewUploader(client),
		bucket:   cfg.Bucket,
		prefix:   normalizePrefix(cfg.Prefix),
	}, nil
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

func (s *S3Storage) key(name string) string {
	return s.prefix + name
}

// Create checks that the key is free and starts a streaming multipart
// upload fed by the returned writer. The object only becomes visible once
// the upload completes on Commit.
func (s *S3Storage) Create(ctx context.Context, name string) (domain.ArtifactWriter, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	key := s.key(name)
	exists, err := s.exists(ctx, key)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", domain.ErrArtifactExists, s.Location(name))
	}

	pr, pw := io.Pipe()
	w := &pipeWriter{pw: pw, done: make(chan error, 1), location: s.Location(name)}

	go func() {
		_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(key),
			Body:        pr,
			ContentType: aws.String("application/gzip"),
		})
		if err != nil {
			err = fmt.Errorf("failed to upload to S3: %w", err)
		}
		pr.CloseWithError(err)
		w.done <- err
	}()

	return w, nil
}

func (s *S3Storage) exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}

	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound {
		return false, nil
	}
	return false, fmt.Errorf("failed to check S3 object %s: %w", key, err)
}

// List returns the objects directly under the prefix. Keys in deeper
// "directories" are rolled up by the delimiter and skipped.
func (s *S3Storage) List(ctx context.Context) ([]domain.Object, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(s.prefix),
		Delimiter: aws.String("/"),
	})

	var objects []domain.Object
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list S3 objects: %w", err)
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), s.prefix)
			if name == "" || strings.Contains(name, "/") {
				continue
			}
			objects = append(objects, domain.Object{
				Name:    name,
				ModTime: aws.ToTime(obj.LastModified),
				Size:    aws.ToInt64(obj.Size),
			})
		}
	}

	return objects, nil
}

// Delete removes a file from S3
func (s *S3Storage) Delete(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}

	return nil
}

func (s *S3Storage) Location(name string) string {
	return "s3://" + path.Join(s.bucket, s.key(name))
}

func (s *S3Storage) Type() string {
	return "s3"
}

// pipeWriter feeds an upload running in another goroutine.
type pipeWriter struct {
	pw       *io.PipeWriter
	done     chan error
	location string

	once   sync.Once
	result error
}

func (w *pipeWriter) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

func (w *pipeWriter) finish(closeErr error) error {
	w.once.Do(func() {
		w.pw.CloseWithError(closeErr)
		w.result = <-w.done
	})
	return w.result
}

func (w *pipeWriter) Commit() (string, error) {
	if err := w.finish(nil); err != nil {
		return "", err
	}
	return w.location, nil
}

// Abort fails the upload so no object is created.
func (w *pipeWriter) Abort() error {
	err := w.finish(errUploadAborted)
	if err != nil && !errors.Is(err, errUploadAborted) {
		return err
	}
	return nil
}
