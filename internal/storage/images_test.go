package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPutter struct {
	bucket, key, contentType string
	body                     []byte
	err                      error
}

func (p *recordingPutter) PutObject(_ context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if p.err != nil {
		return minio.UploadInfo{}, p.err
	}
	p.bucket, p.key, p.contentType = bucket, key, opts.ContentType
	p.body, _ = io.ReadAll(r)
	return minio.UploadInfo{Bucket: bucket, Key: key, Size: size}, nil
}

// smallest valid PNG header is enough for sniffing
var pngBytes = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func TestUploadProfileImage(t *testing.T) {
	putter := &recordingPutter{}
	store := NewImageStore(putter, "imagenes", "http://localhost:9000/")

	url, err := store.UploadProfileImage(context.Background(), "u1", 2, bytes.NewReader(pngBytes))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/imagenes/usuarios/u1/2.png", url)
	assert.Equal(t, "usuarios/u1/2.png", putter.key)
	assert.Equal(t, "image/png", putter.contentType)
	assert.Equal(t, pngBytes, putter.body)
}

func TestUploadProfileImage_Rejects(t *testing.T) {
	store := NewImageStore(&recordingPutter{}, "imagenes", "http://cdn")
	ctx := context.Background()

	_, err := store.UploadProfileImage(ctx, "u1", 1, bytes.NewReader([]byte("plain text, not an image")))
	assert.ErrorIs(t, err, ErrUnsupportedImage)

	big := append(append([]byte{}, pngBytes...), make([]byte, MaxImageBytes)...)
	_, err = store.UploadProfileImage(ctx, "u1", 1, bytes.NewReader(big))
	assert.ErrorIs(t, err, ErrImageTooLarge)

	_, err = store.UploadProfileImage(ctx, "u1", 3, bytes.NewReader(pngBytes))
	assert.ErrorIs(t, err, ErrInvalidSlot)
}

func TestUploadProfileImage_StoreError(t *testing.T) {
	boom := errors.New("bucket gone")
	store := NewImageStore(&recordingPutter{err: boom}, "imagenes", "http://cdn")

	_, err := store.UploadProfileImage(context.Background(), "u1", 1, bytes.NewReader(pngBytes))
	assert.ErrorIs(t, err, boom)
}
