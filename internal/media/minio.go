// Package media stores user-uploaded files in S3-compatible object storage.
package media

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// allowed image types for avatar uploads
var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// Config holds object storage settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
}

// Store uploads media objects to a single bucket and hands back public URLs.
type Store struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return &Store{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimSuffix(cfg.PublicURL, "/"),
	}, nil
}

// ErrUnsupportedType is returned for uploads outside the image whitelist.
var ErrUnsupportedType = fmt.Errorf("unsupported content type")

// UploadAvatar stores an avatar image under avatars/<userID><ext> and
// returns its public URL. Re-uploading overwrites the previous avatar.
func (s *Store) UploadAvatar(ctx context.Context, userID, contentType string, body io.Reader, size int64) (string, error) {
	ext, ok := allowedImageTypes[contentType]
	if !ok {
		return "", ErrUnsupportedType
	}

	objectName := "avatars/" + userID + ext
	_, err := s.client.PutObject(ctx, s.bucket, objectName, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload avatar: %w", err)
	}

	return s.publicURL + "/" + s.bucket + "/" + objectName, nil
}

// RemoveAvatar deletes every known avatar variant for the user. Missing
// objects are not an error.
func (s *Store) RemoveAvatar(ctx context.Context, userID string) error {
	for _, ext := range allowedImageTypes {
		objectName := "avatars/" + userID + ext
		if err := s.client.RemoveObject(ctx, s.bucket, objectName, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("remove avatar: %w", err)
		}
	}
	return nil
}
