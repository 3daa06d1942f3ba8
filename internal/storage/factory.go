package storage

import (
	"context"
	"path"
	"strings"
	"unicode"

	"github.com/timmy/catalogx/internal/config"
)

// NewStorage creates an ObjectStorage instance based on the configuration.
// Parameters:
//   - ctx: context used while loading cloud credentials.
//   - cfg: storage configuration; type "local" or any S3 flavour.
// Returns:
//   - ObjectStorage: initialized storage client implementation.
//   - error: non-nil if the storage client cannot be created.
func NewStorage(ctx context.Context, cfg *config.StorageConfig) (ObjectStorage, error) {
	if cfg.IsLocal() {
		return NewLocalStorage(cfg.LocalDir)
	}

	storeType := StorageType(cfg.Type)
	if storeType == StorageTypeS3Compatible && cfg.Endpoint != "" {
		storeType = detectStorageType(cfg.Endpoint)
	}

	s3Storage, err := NewS3Storage(ctx, &S3Config{
		Type:      storeType,
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		UseSSL:    cfg.UseSSL,
		Bucket:    cfg.Bucket,
		Region:    cfg.Region,
	})
	if err != nil {
		return nil, err
	}
	if err := s3Storage.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return s3Storage, nil
}

// detectStorageType attempts to detect the storage type from the endpoint
func detectStorageType(endpoint string) StorageType {
	endpoint = strings.ToLower(endpoint)

	switch {
	case strings.Contains(endpoint, "r2.cloudflarestorage.com"):
		return StorageTypeR2
	case strings.Contains(endpoint, "amazonaws.com"):
		return StorageTypeS3
	default:
		return StorageTypeS3Compatible
	}
}

// DocumentKey builds the company-scoped key of an uploaded document:
// <prefix>/<companyID>/<type>/<jobID>/<sanitized name>. The job id makes
// concurrent uploads of the same file name distinct.
func DocumentKey(prefix, companyID, exchangeType, jobID, fileName string) string {
	return path.Join(strings.Trim(prefix, "/"), companyID, exchangeType, jobID, SanitizeFileName(fileName))
}

// SanitizeFileName keeps letters, digits, dot, dash and underscore of the
// base name; anything else becomes '_'.
func SanitizeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.TrimLeft(b.String(), ".")
	if out == "" {
		return "document.xml"
	}
	return out
}
