package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/config"
)

// MaxImageBytes is the largest accepted profile image.
const MaxImageBytes = 5 << 20

var (
	ErrUnsupportedImage = errors.New("image must be jpeg, png or webp")
	ErrImageTooLarge    = errors.New("image exceeds 5 MiB")
	ErrInvalidSlot      = errors.New("image slot must be 1 or 2")
)

var extensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

// ObjectPutter is the part of the minio client the image store needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

func NewMinioClient(cfg config.MinioConfig) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}
	return client, nil
}

// EnsureBucket creates bucket when it does not exist yet.
func EnsureBucket(ctx context.Context, client *minio.Client, bucket string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if exists {
		return nil
	}
	if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	return nil
}

// CheckBucket fails when bucket cannot be reached or no longer exists.
func CheckBucket(ctx context.Context, client *minio.Client, bucket string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", bucket)
	}
	return nil
}

type ImageStore struct {
	client    ObjectPutter
	bucket    string
	publicURL string
}

// NewImageStore uploads into bucket. publicURL is the base the returned object URLs start with.
func NewImageStore(client ObjectPutter, bucket, publicURL string) *ImageStore {
	return &ImageStore{client: client, bucket: bucket, publicURL: strings.TrimRight(publicURL, "/")}
}

// ObjectKey names image n of a user.
func ObjectKey(userID string, n int, ext string) string {
	return fmt.Sprintf("usuarios/%s/%d.%s", userID, n, ext)
}

// UploadProfileImage sniffs the content type, stores the image and returns its public URL.
func (s *ImageStore) UploadProfileImage(ctx context.Context, userID string, n int, r io.Reader) (string, error) {
	if n != 1 && n != 2 {
		return "", ErrInvalidSlot
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxImageBytes+1))
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if len(data) > MaxImageBytes {
		return "", ErrImageTooLarge
	}

	contentType := mimetype.Detect(data).String()
	ext, ok := extensions[contentType]
	if !ok {
		return "", fmt.Errorf("%w: got %s", ErrUnsupportedImage, contentType)
	}

	key := ObjectKey(userID, n, ext)
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s to %s: %w", key, s.bucket, err)
	}
	return fmt.Sprintf("%s/%s/%s", s.publicURL, s.bucket, key), nil
}
