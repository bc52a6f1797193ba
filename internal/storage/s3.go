package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/cockroachdb/errors"
	"github.com/rxledger/statements/internal/config"
	ierr "github.com/rxledger/statements/internal/errors"
	"github.com/rxledger/statements/internal/logger"
)

type s3Store struct {
	client  *s3.Client
	bucket  string
	prefix  string
	subpath string
	logger  *logger.Logger
}

// NewS3Store stores files as objects; relative paths become object keys under key_prefix
func NewS3Store(cfg *config.Configuration, logger *logger.Logger) (FileStore, error) {
	if cfg.Storage.S3.Bucket == "" {
		return nil, ierr.NewError("missing s3 bucket").
			WithHint("storage.s3.bucket is required when storage.provider is s3").
			Mark(ierr.ErrValidation)
	}

	awsCfg, err := awsConfig.LoadDefaultConfig(context.Background(),
		awsConfig.WithRegion(cfg.Storage.S3.Region),
	)
	if err != nil {
		return nil, ierr.WithError(err).WithHint("failed to load aws config").
			Mark(ierr.ErrHTTPClient)
	}

	return &s3Store{
		client:  s3.NewFromConfig(awsCfg),
		bucket:  cfg.Storage.S3.Bucket,
		prefix:  strings.Trim(cfg.Storage.S3.KeyPrefix, "/"),
		subpath: cfg.Storage.Subpath,
		logger:  logger,
	}, nil
}

func (s *s3Store) objectKey(relPath string) (string, error) {
	cleaned, err := cleanRelative(relPath)
	if err != nil {
		return "", err
	}
	if s.prefix == "" {
		return cleaned, nil
	}
	return path.Join(s.prefix, cleaned), nil
}

func (s *s3Store) Save(ctx context.Context, name string, data []byte) (string, error) {
	rel := relativePath(s.subpath, name)
	key, err := s.objectKey(rel)
	if err != nil {
		return "", err
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(ContentTypeXLSX),
		IfNoneMatch: aws.String("*"),
	})
	if err != nil {
		if isPreconditionFailed(err) {
			return "", ierr.WithError(err).
				WithHintf("Statement file %s already exists", rel).
				Mark(ierr.ErrAlreadyExists)
		}
		return "", ierr.WithError(err).WithHint("failed to upload statement").
			WithMessagef("bucket:%s, key:%s", s.bucket, key).
			Mark(ierr.ErrHTTPClient)
	}

	s.logger.Debugw("uploaded statement file", "bucket", s.bucket, "key", key)
	return rel, nil
}

func (s *s3Store) Open(ctx context.Context, relPath string) ([]byte, error) {
	key, err := s.objectKey(relPath)
	if err != nil {
		return nil, err
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ierr.WithError(err).
				WithHintf("Statement file %s was not found", relPath).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).WithHint("failed to get statement").
			WithMessagef("bucket:%s, key:%s", s.bucket, key).
			Mark(ierr.ErrHTTPClient)
	}
	defer result.Body.Close()

	return io.ReadAll(result.Body)
}

func (s *s3Store) Exists(ctx context.Context, relPath string) (bool, error) {
	key, err := s.objectKey(relPath)
	if err != nil {
		return false, err
	}

	_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, ierr.WithError(err).
			WithHint("failed to check if statement exists").
			Mark(ierr.ErrHTTPClient)
	}
	return true, nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nf)
}

// isPreconditionFailed reports a conditional write rejected because the key
// exists. S3 answers 412, or 409 when a concurrent write to the key wins.
func isPreconditionFailed(err error) bool {
	var re *awshttp.ResponseError
	if !errors.As(err, &re) {
		return false
	}
	return re.HTTPStatusCode() == http.StatusPreconditionFailed || re.HTTPStatusCode() == http.StatusConflict
}
