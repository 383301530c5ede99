package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"nimbusdrive/internal/domain"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultChunkSize = 5 * 1024 * 1024 // 5MB
)

// S3Backend предоставляет методы для работы с S3-совместимым хранилищем
type S3Backend struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

// NewS3Backend создает новый экземпляр клиента S3
func NewS3Backend(conf *Config) (*S3Backend, error) {
	if conf == nil {
		return nil, fmt.Errorf("configuration is required")
	}

	if conf.AccessKeyID == "" || conf.SecretAccessKey == "" || conf.Bucket == "" {
		return nil, fmt.Errorf("missing required configuration: accessKeyID, secretAccessKey, and bucket are required")
	}

	creds := aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
		conf.AccessKeyID,
		conf.SecretAccessKey,
		"",
	))

	opts := s3.Options{
		Region:           conf.Region,
		Credentials:      creds,
		RetryMode:        aws.RetryModeAdaptive,
		RetryMaxAttempts: 3,
	}
	if conf.Endpoint != "" {
		opts.BaseEndpoint = aws.String(conf.Endpoint)
	}

	client := s3.New(opts)

	backend := &S3Backend{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  conf.Bucket,
	}

	// Проверяем подключение к бакету
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	_, err := backend.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(conf.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to access bucket %s: %w", conf.Bucket, err)
	}

	return backend, nil
}

func (b *S3Backend) Kind() domain.BackendKind {
	return domain.BackendS3
}

// Put загружает объект в S3
func (b *S3Backend) Put(ctx context.Context, r io.Reader, key string, contentType string) (*PutResult, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}

	// Читаем тело в буфер: PutObject требует известную длину для подписи
	buf := bytes.NewBuffer(make([]byte, 0, defaultChunkSize))
	if _, err := io.Copy(buf, r); err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}

	size := int64(buf.Len())

	input := &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(buf.Bytes()),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	out, err := b.client.PutObject(ctx, input)
	if err != nil {
		return nil, wrapS3Error(err, "failed to upload object to S3")
	}

	return &PutResult{
		Key:       key,
		SizeBytes: size,
		ETag:      aws.ToString(out.ETag),
		Location:  fmt.Sprintf("s3://%s/%s", b.bucket, key),
	}, nil
}

// GetStream получает объект из S3
func (b *S3Backend) GetStream(ctx context.Context, key string) (Object, error) {
	result, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, wrapS3Error(err, "failed to get object from S3")
	}

	return &object{
		ReadCloser:    result.Body,
		contentLength: aws.ToInt64(result.ContentLength),
		contentType:   aws.ToString(result.ContentType),
	}, nil
}

// SignedURL выдает временную ссылку на чтение через нативную подпись S3
func (b *S3Backend) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := b.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", wrapS3Error(err, "failed to presign object url")
	}

	return req.URL, nil
}

// Delete удаляет объект из S3. Удаление отсутствующего ключа в S3
// само по себе успех, поэтому дополнительной проверки не нужно.
func (b *S3Backend) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrInvalidKey
	}

	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if errors.Is(wrapS3Error(err, ""), ErrNotFound) {
			return nil
		}
		return wrapS3Error(err, "failed to delete object from S3")
	}

	return nil
}

// Stat возвращает метаданные объекта, не читая его содержимое
func (b *S3Backend) Stat(ctx context.Context, key string) (*ObjectInfo, error) {
	out, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if errors.Is(wrapS3Error(err, ""), ErrNotFound) {
			return &ObjectInfo{Key: key, Exists: false}, nil
		}
		return nil, wrapS3Error(err, "failed to stat object in S3")
	}

	return &ObjectInfo{
		Key:          key,
		SizeBytes:    aws.ToInt64(out.ContentLength),
		LastModified: aws.ToTime(out.LastModified),
		ContentType:  aws.ToString(out.ContentType),
		Exists:       true,
	}, nil
}

// Copy выполняет копирование на стороне S3 без прокачки байтов через сервис
func (b *S3Backend) Copy(ctx context.Context, srcKey, dstKey string) error {
	if srcKey == "" || dstKey == "" {
		return ErrInvalidKey
	}

	_, err := b.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(b.bucket),
		Key:        aws.String(dstKey),
		CopySource: aws.String(url.PathEscape(b.bucket + "/" + srcKey)),
	})
	if err != nil {
		return wrapS3Error(err, "failed to copy object in S3")
	}

	return nil
}

// List перечисляет ключи под префиксом пользователя
func (b *S3Backend) List(ctx context.Context, prefix string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}

	out, err := b.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(b.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, wrapS3Error(err, "failed to list objects in S3")
	}

	keys := make([]string, 0, len(out.Contents))
	for _, obj := range out.Contents {
		keys = append(keys, aws.ToString(obj.Key))
	}

	return keys, nil
}

// wrapS3Error приводит ошибки SDK к таксономии пакета. Проверяются и
// коды API, и типизированные ошибки; наружу уходит только sentinel.
func wrapS3Error(err error, msg string) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		}
	}

	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	if msg == "" {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrBackendUnavailable, msg, err)
}
