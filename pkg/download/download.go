// Package download fetches pinned external tools and other build inputs over
// HTTP, verifies them against a known checksum and optionally unpacks them.
package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/schollz/progressbar/v3"

	"github.com/shipit-build/shipit/pkg/logctx"
)

var client = &http.Client{
	Timeout: time.Minute * 30,
}

func progressBar(length int64, desc string) *progressbar.ProgressBar {
	if os.Getenv("CI") == "true" {
		// progress bars just produce newline noise on CI logs
		return progressbar.NewOptions64(length, progressbar.OptionSetVisibility(false))
	}

	return progressbar.DefaultBytes(length, desc)
}

// Fetch downloads the given URL into dest and verifies the payload against
// the hex-encoded SHA-256 checksum. Responses outside the 2xx range and
// checksum mismatches are errors; a partial file never survives either.
func Fetch(ctx context.Context, url, dest, checksum string) error {
	if checksum == "" {
		return eris.Errorf("no checksum pinned for %s", url)
	}

	err := os.MkdirAll(filepath.Dir(dest), 0770)
	if err != nil {
		return eris.Wrapf(err, "failed to create directory for %s", dest)
	}

	tmp := dest + ".tmp"
	handle, err := os.Create(tmp)
	if err != nil {
		return eris.Wrapf(err, "failed to create %s", tmp)
	}
	defer func() {
		handle.Close()
		os.Remove(tmp)
	}()

	err = fetchInto(ctx, handle, url, checksum)
	if err != nil {
		return err
	}

	err = handle.Close()
	if err != nil {
		return eris.Wrapf(err, "failed to finish writing %s", tmp)
	}

	err = os.Rename(tmp, dest)
	if err != nil {
		return eris.Wrapf(err, "failed to move download to %s", dest)
	}

	return nil
}

func fetchInto(ctx context.Context, handle *os.File, url, checksum string) error {
	logctx.FromContext(ctx).Info().Str("url", url).Msg("downloading")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return eris.Wrapf(err, "failed to build request for %s", url)
	}

	resp, err := client.Do(req)
	if err != nil {
		return eris.Wrapf(err, "failed to start download for %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return eris.Errorf("download of %s failed with status %s", url, resp.Status)
	}

	hash := sha256.New()
	bar := progressBar(resp.ContentLength, "     download")
	defer bar.Finish()

	_, err = io.Copy(io.MultiWriter(handle, hash, bar), resp.Body)
	if err != nil {
		return eris.Wrapf(err, "failed during download of %s", url)
	}

	digest := hex.EncodeToString(hash.Sum(nil))
	if digest != checksum {
		return eris.Errorf("checksum mismatch for %s: expected %s, got %s", url, checksum, digest)
	}

	return nil
}

// FetchArchive downloads the given URL to a temporary file, verifies it and
// extracts it below destDir. strip removes that many leading path elements
// from every archive entry; markExec marks the listed files as executable
// after extraction (zip archives don't carry permission bits).
func FetchArchive(ctx context.Context, url, destDir, checksum string, strip int, markExec []string) error {
	extractor, err := getExtractor(url)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp("", "shipit-dl-*")
	if err != nil {
		return eris.Wrap(err, "failed to create a temporary download file")
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	err = fetchInto(ctx, tmp, url, checksum)
	if err != nil {
		return err
	}

	_, err = tmp.Seek(0, io.SeekStart)
	if err != nil {
		return eris.Wrap(err, "failed to rewind the downloaded archive")
	}

	err = extractor(tmp, destDir, strip)
	if err != nil {
		return eris.Wrapf(err, "failed to extract %s", url)
	}

	for _, binPath := range markExec {
		binPath = filepath.Join(destDir, binPath)
		info, err := os.Stat(binPath)
		if err != nil {
			return eris.Wrapf(err, "failed to read permissions for %s", binPath)
		}

		err = os.Chmod(binPath, info.Mode()|0700)
		if err != nil {
			return eris.Wrapf(err, "failed to mark %s as executable", binPath)
		}
	}

	return nil
}
