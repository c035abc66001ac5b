package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/File-Sharing-BondBridg/Link-Service/internal/logger"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
)

// ErrObjectNotFound means the locator no longer resolves to an object.
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo describes an object opened for delivery.
type ObjectInfo struct {
	Size        int64
	ContentType string
}

type MinioService struct {
	Client     *minio.Client
	BucketName string
	log        zerolog.Logger
}

// NewMinioService connects to MinIO and creates the bucket if needed.
func NewMinioService(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinioService, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	log := logger.With("minio")

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		log.Info().Str("bucket", bucket).Msg("created bucket")
	}

	log.Info().Str("endpoint", endpoint).Msg("connected to MinIO")
	return &MinioService{Client: client, BucketName: bucket, log: log}, nil
}

// CheckConnection is used by the health check.
func (m *MinioService) CheckConnection(ctx context.Context) error {
	if m == nil || m.Client == nil {
		return fmt.Errorf("minio service not initialized")
	}
	_, err := m.Client.BucketExists(ctx, m.BucketName)
	return err
}

func (m *MinioService) Upload(ctx context.Context, reader io.Reader, size int64, objectName, contentType string) error {
	_, err := m.Client.PutObject(ctx, m.BucketName, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", objectName, err)
	}
	return nil
}

// Open streams an object. The caller closes the reader.
func (m *MinioService) Open(ctx context.Context, objectName string) (io.ReadCloser, ObjectInfo, error) {
	obj, err := m.Client.GetObject(ctx, m.BucketName, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, ObjectInfo{}, translateMinioErr(objectName, err)
	}

	// GetObject is lazy; Stat surfaces a missing key.
	stat, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, ObjectInfo{}, translateMinioErr(objectName, err)
	}

	return obj, ObjectInfo{Size: stat.Size, ContentType: stat.ContentType}, nil
}

func (m *MinioService) Delete(ctx context.Context, objectName string) error {
	err := m.Client.RemoveObject(ctx, m.BucketName, objectName, minio.RemoveObjectOptions{})
	if err != nil {
		return translateMinioErr(objectName, err)
	}
	return nil
}

// DeleteObjectsByPrefix removes every object under prefix, e.g. "<user>/".
func (m *MinioService) DeleteObjectsByPrefix(ctx context.Context, prefix string) error {
	objectsCh := m.Client.ListObjects(ctx, m.BucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})

	removed := 0
	errorCh := m.Client.RemoveObjects(ctx, m.BucketName, countObjects(objectsCh, &removed), minio.RemoveObjectsOptions{})
	if err := drainRemoveErrors(errorCh, m.log); err != nil {
		return err
	}

	m.log.Info().Str("prefix", prefix).Int("objects", removed).Msg("deleted objects by prefix")
	return nil
}

// drainRemoveErrors reads errorCh until it closes so the minio producers can
// finish, and returns the first error seen.
func drainRemoveErrors(errorCh <-chan minio.RemoveObjectError, log zerolog.Logger) error {
	var first error
	for removeErr := range errorCh {
		if removeErr.Err == nil {
			continue
		}
		log.Error().Err(removeErr.Err).Str("object", removeErr.ObjectName).Msg("failed to delete object")
		if first == nil {
			first = removeErr.Err
		}
	}
	return first
}

func countObjects(in <-chan minio.ObjectInfo, n *int) <-chan minio.ObjectInfo {
	out := make(chan minio.ObjectInfo)
	go func() {
		defer close(out)
		for obj := range in {
			if obj.Err != nil || obj.Key == "" {
				continue
			}
			*n++
			out <- obj
		}
	}()
	return out
}

func translateMinioErr(objectName string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("%s: %w", objectName, ErrObjectNotFound)
	default:
		return fmt.Errorf("object storage error on %s: %w", objectName, err)
	}
}

// GetContentType maps a lowercase extension to a MIME type.
func GetContentType(extension string) string {
	switch extension {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".pdf":
		return "application/pdf"
	case ".txt":
		return "text/plain; charset=utf-8"
	case ".mp4":
		return "video/mp4"
	case ".mp3":
		return "audio/mpeg"
	default:
		return "application/octet-stream"
	}
}

// FileType buckets an extension into the coarse type shown in listings.
func FileType(extension string) string {
	switch extension {
	case ".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp":
		return "image"
	case ".pdf", ".doc", ".docx", ".txt":
		return "document"
	case ".mp4", ".avi", ".mov", ".mkv":
		return "video"
	case ".mp3", ".wav", ".ogg":
		return "audio"
	default:
		return "other"
	}
}
