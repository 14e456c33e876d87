package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/andresuchdata/fleetdocs/internal/config"
)

// ErrDisabled is returned by NewFromConfig when archiving is switched off.
var ErrDisabled = errors.New("object storage disabled")

// ObjectInfo represents metadata for a remote file/object.
type ObjectInfo struct {
	Key  string
	Size int64
}

// ObjectStorage captures the S3-compatible operations used to archive
// certificate scans and exported worklists.
type ObjectStorage interface {
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
	DownloadObject(ctx context.Context, key string, destPath string) error
	GetObject(ctx context.Context, key string) ([]byte, error)
	UploadObject(ctx context.Context, key string, data []byte, contentType string) error
}

// NewFromConfig builds the configured backend.
func NewFromConfig(ctx context.Context, cfg config.StorageConfig) (ObjectStorage, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "minio":
		return NewMinioClient(ctx, MinioConfig{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			UseSSL:    cfg.UseSSL,
		})
	case "s3", "sevalla":
		return NewS3Client(S3Config{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			UseSSL:    cfg.UseSSL,
		})
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// CertificateKey is the archive key of a certificate scan.
func CertificateKey(shipID, certificateID, filename string) string {
	return path.Join("certificates", sanitize(shipID), sanitize(certificateID), sanitize(filename))
}

// ExportKey is the archive key of an exported worklist.
func ExportKey(companyID, filename string) string {
	return path.Join("exports", sanitize(companyID), sanitize(filename))
}

func sanitize(part string) string {
	part = strings.TrimSpace(part)
	part = strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(part)
	if part == "" {
		return "_"
	}
	return part
}
