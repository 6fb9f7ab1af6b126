package download

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func digestOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func serve(t *testing.T, path string, payload []byte, status int) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != path {
			http.NotFound(w, r)
			return
		}

		w.WriteHeader(status)
		w.Write(payload)
	}))
	t.Cleanup(server.Close)

	return server
}

func TestFetch(t *testing.T) {
	payload := []byte("tool binary")
	server := serve(t, "/tool.bin", payload, http.StatusOK)

	dest := filepath.Join(t.TempDir(), "bin", "tool.bin")
	err := Fetch(context.Background(), server.URL+"/tool.bin", dest, digestOf(payload))
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	_, err = os.Stat(dest + ".tmp")
	assert.True(t, os.IsNotExist(err), "the temporary download file must be cleaned up")
}

func TestFetchRejectsNon2xx(t *testing.T) {
	server := serve(t, "/tool.bin", []byte("nope"), http.StatusOK)

	dest := filepath.Join(t.TempDir(), "tool.bin")
	err := Fetch(context.Background(), server.URL+"/missing.bin", dest, digestOf([]byte("nope")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}

func TestFetchRejectsChecksumMismatch(t *testing.T) {
	server := serve(t, "/tool.bin", []byte("actual payload"), http.StatusOK)

	dest := filepath.Join(t.TempDir(), "tool.bin")
	err := Fetch(context.Background(), server.URL+"/tool.bin", dest, digestOf([]byte("expected payload")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum mismatch")

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr), "a corrupt download must not survive")
}

func TestFetchRequiresChecksum(t *testing.T) {
	err := Fetch(context.Background(), "http://localhost/tool.bin", filepath.Join(t.TempDir(), "x"), "")
	assert.ErrorContains(t, err, "no checksum")
}

func tarGzArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name: name,
			Mode: 0660,
			Size: int64(len(content)),
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}

	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func TestFetchArchiveTarGz(t *testing.T) {
	payload := tarGzArchive(t, map[string]string{
		"signclient-1.0/bin/signclient": "#!/bin/sh\n",
		"signclient-1.0/README":         "readme",
	})
	server := serve(t, "/signclient.tar.gz", payload, http.StatusOK)

	destDir := filepath.Join(t.TempDir(), "signclient")
	err := FetchArchive(context.Background(), server.URL+"/signclient.tar.gz", destDir,
		digestOf(payload), 1, []string{filepath.Join("bin", "signclient")})
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(destDir, "bin", "signclient"))
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&0100, "markExec must set the executable bit")

	data, err := os.ReadFile(filepath.Join(destDir, "README"))
	require.NoError(t, err)
	assert.Equal(t, "readme", string(data))
}

func TestFetchArchiveZip(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	entry, err := zw.Create("tool/tool.exe")
	require.NoError(t, err)
	_, err = entry.Write([]byte("binary"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	server := serve(t, "/tool.zip", buf.Bytes(), http.StatusOK)

	destDir := t.TempDir()
	err = FetchArchive(context.Background(), server.URL+"/tool.zip", destDir, digestOf(buf.Bytes()), 0, nil)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(destDir, "tool", "tool.exe"))
	require.NoError(t, err)
	assert.Equal(t, "binary", string(data))
}

func TestFetchArchiveUnsupportedFormat(t *testing.T) {
	err := FetchArchive(context.Background(), "http://localhost/tool.rar", t.TempDir(), "aa", 0, nil)
	assert.ErrorContains(t, err, "not supported")
}

func TestEntryDestRejectsEscapes(t *testing.T) {
	_, err := entryDest(t.TempDir(), "../../etc/passwd", 0)
	assert.ErrorContains(t, err, "escapes")
}

func TestEntryDestStrip(t *testing.T) {
	dest, err := entryDest("/out", "pkg-1.0/bin/tool", 1)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/out", "bin", "tool"), dest)

	dest, err = entryDest("/out", "pkg-1.0", 1)
	require.NoError(t, err)
	assert.Empty(t, dest)
}
