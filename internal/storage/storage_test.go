package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, err := NewLocalStorage(root)
	require.NoError(t, err)

	key := DocumentKey("exchange", "c1", "price", "job-1", "offers.xml")
	body := "<КоммерческаяИнформация/>"
	require.NoError(t, s.Upload(ctx, key, strings.NewReader(body), int64(len(body)), "application/xml"))

	ok, err := s.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	rc, err := s.Download(ctx, key)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, body, string(got))

	require.NoError(t, s.Delete(ctx, key))
	require.NoError(t, s.Delete(ctx, key), "delete is idempotent")
	_, err = s.Download(ctx, key)
	assert.True(t, errors.Is(err, ErrObjectNotFound))
}

func TestLocalStorageShortWriteLeavesNothing(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, err := NewLocalStorage(root)
	require.NoError(t, err)

	err = s.Upload(ctx, "a/b.xml", strings.NewReader("abc"), 10, "application/xml")
	require.Error(t, err)

	ok, err := s.Exists(ctx, "a/b.xml")
	require.NoError(t, err)
	assert.False(t, ok)

	entries, err := os.ReadDir(filepath.Join(root, "a"))
	require.NoError(t, err)
	assert.Empty(t, entries, "temp file removed")
}

func TestLocalStorageStaysInsideRoot(t *testing.T) {
	root := t.TempDir()
	s, err := NewLocalStorage(root)
	require.NoError(t, err)

	p, err := s.path("../../etc/passwd")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p, root))
}

func TestDocumentKey(t *testing.T) {
	testCases := []struct {
		name string
		file string
		want string
	}{
		{"plain", "import.xml", "exchange/c1/catalog/j1/import.xml"},
		{"path stripped", `C:\exports\import.xml`, "exchange/c1/catalog/j1/import.xml"},
		{"spaces and cyrillic", "выгрузка 1.xml", "exchange/c1/catalog/j1/выгрузка_1.xml"},
		{"hidden", "../.xml", "exchange/c1/catalog/j1/xml"},
		{"empty", "", "exchange/c1/catalog/j1/document.xml"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DocumentKey("/exchange/", "c1", "catalog", "j1", tc.file))
		})
	}
}

func TestDetectStorageType(t *testing.T) {
	assert.Equal(t, StorageTypeR2, detectStorageType("https://acc.r2.cloudflarestorage.com"))
	assert.Equal(t, StorageTypeS3, detectStorageType("s3.eu-central-1.amazonaws.com"))
	assert.Equal(t, StorageTypeS3Compatible, detectStorageType("minio:9000"))
	assert.Equal(t, "minio:9000", normalizeEndpoint("http://minio:9000/bucket"))
}
