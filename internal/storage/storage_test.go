package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/fleetdocs/internal/config"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "certificates/s1/c1/IOPP.pdf", CertificateKey("s1", "c1", "IOPP.pdf"))
	assert.Equal(t, "certificates/s1/c1/__etc_passwd", CertificateKey("s1", "c1", "../etc/passwd"))
	assert.Equal(t, "exports/_/upcoming.xlsx", ExportKey(" ", "upcoming.xlsx"))
}

func TestNewFromConfig(t *testing.T) {
	ctx := context.Background()

	_, err := NewFromConfig(ctx, config.StorageConfig{Enabled: false})
	assert.ErrorIs(t, err, ErrDisabled)

	_, err = NewFromConfig(ctx, config.StorageConfig{Enabled: true, Driver: "ftp"})
	assert.Error(t, err)

	_, err = NewFromConfig(ctx, config.StorageConfig{Enabled: true, Driver: "minio", Bucket: "b"})
	assert.Error(t, err)

	_, err = NewFromConfig(ctx, config.StorageConfig{Enabled: true, Driver: "s3", Endpoint: "s3.local", Bucket: "b"})
	assert.Error(t, err)
}

func TestEndpointURL(t *testing.T) {
	require.Equal(t, "https://s3.local", endpointURL("s3.local", true))
	require.Equal(t, "http://s3.local", endpointURL("s3.local", false))
	require.Equal(t, "http://minio:9000", endpointURL("http://minio:9000", true))
}
