package storage

import (
	"context"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// S3 stores objects in a bucket under an optional key prefix.
type S3 struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

var _ Storage = (*S3)(nil)

func NewS3(client *s3.Client, bucket string, prefix string) *S3 {
	return &S3{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		prefix:   cleanKey(prefix),
	}
}

// NewS3FromConfig loads the default AWS configuration (environment, shared
// files) and builds an S3 storage. An empty endpoint keeps the AWS default.
func NewS3FromConfig(ctx context.Context, region string, endpoint string, bucket string, prefix string) (*S3, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "could not load aws config")
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3(client, bucket, prefix), nil
}

func (s *S3) key(name string) string {
	return Join(s.prefix, cleanKey(name))
}

func (s *S3) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		return nil, s.wrap(err, name)
	}
	return out.Body, nil
}

// Create streams the written bytes to a multipart upload. The object exists
// once Close returns without error.
func (s *S3) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	pr, pw := io.Pipe()
	w := &s3Writer{pw: pw, done: make(chan error, 1)}
	key := s.key(name)

	go func() {
		_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
			Body:   pr,
		})
		if err != nil {
			log.Debug().Err(err).Str("bucket", s.bucket).Str("key", key).Msg("s3 upload failed")
			_ = pr.CloseWithError(err)
		}
		w.done <- err
	}()

	return w, nil
}

func (s *S3) Stat(ctx context.Context, name string) (Info, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		return Info{}, s.wrap(err, name)
	}
	return Info{
		Name:    name,
		Size:    aws.ToInt64(out.ContentLength),
		ModTime: aws.ToTime(out.LastModified),
	}, nil
}

func (s *S3) URI(name string) string {
	return "s3://" + Join(s.bucket, s.key(name))
}

func (s *S3) wrap(err error, name string) error {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return errors.Wrap(ErrNotExist, s.URI(name))
	}
	return errors.Wrapf(err, "storage %s", s.URI(name))
}

type s3Writer struct {
	pw   *io.PipeWriter
	done chan error
}

func (w *s3Writer) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

func (w *s3Writer) Close() error {
	if err := w.pw.Close(); err != nil {
		return err
	}
	return <-w.done
}

// CloseWithError fails the upload, which aborts it; no object is created.
func (w *s3Writer) CloseWithError(err error) error {
	if err == nil {
		err = errUploadAborted
	}
	_ = w.pw.CloseWithError(err)
	<-w.done
	return nil
}
