package download

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/ulikunitz/xz"
)

type archiveExtractor func(f *os.File, destDir string, strip int) error

func getExtractor(url string) (archiveExtractor, error) {
	switch {
	case strings.HasSuffix(url, ".zip"):
		return extractZip, nil
	case strings.HasSuffix(url, ".tar.gz"), strings.HasSuffix(url, ".tgz"):
		return func(f *os.File, destDir string, strip int) error {
			reader, err := gzip.NewReader(f)
			if err != nil {
				return err
			}
			defer reader.Close()

			return extractTar(reader, destDir, strip)
		}, nil
	case strings.HasSuffix(url, ".tar.bz2"):
		return func(f *os.File, destDir string, strip int) error {
			return extractTar(bzip2.NewReader(f), destDir, strip)
		}, nil
	case strings.HasSuffix(url, ".tar.xz"):
		return func(f *os.File, destDir string, strip int) error {
			reader, err := xz.NewReader(f)
			if err != nil {
				return err
			}

			return extractTar(reader, destDir, strip)
		}, nil
	}

	return nil, eris.Errorf("archive format of %s is not supported", url)
}

// entryDest maps an archive entry to its destination path, dropping the first
// strip path elements. Entries consumed entirely by strip map to "" and
// should be skipped.
func entryDest(destDir, item string, strip int) (string, error) {
	parts := strings.Split(filepath.Clean(filepath.FromSlash(item)), string(filepath.Separator))
	if len(parts) <= strip {
		return "", nil
	}

	dest := filepath.Join(destDir, filepath.Join(parts[strip:]...))
	if !strings.HasPrefix(dest, filepath.Clean(destDir)+string(filepath.Separator)) {
		return "", eris.Errorf("archive entry %s escapes the destination directory", item)
	}

	return dest, nil
}

func writeEntry(dest string, mode os.FileMode, r io.Reader) error {
	err := os.MkdirAll(filepath.Dir(dest), 0770)
	if err != nil {
		return eris.Wrapf(err, "failed to create directory %s", filepath.Dir(dest))
	}

	handle, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return eris.Wrapf(err, "failed to create file %s", dest)
	}
	defer handle.Close()

	_, err = io.Copy(handle, r)
	if err != nil {
		return eris.Wrapf(err, "failed to write extracted file %s", dest)
	}

	return handle.Close()
}

func extractZip(f *os.File, destDir string, strip int) error {
	stat, err := f.Stat()
	if err != nil {
		return err
	}

	archive, err := zip.NewReader(f, stat.Size())
	if err != nil {
		return err
	}

	for _, item := range archive.File {
		if strings.HasSuffix(item.Name, "/") {
			continue
		}

		dest, err := entryDest(destDir, item.Name, strip)
		if err != nil {
			return err
		}
		if dest == "" {
			continue
		}

		itemHandle, err := item.Open()
		if err != nil {
			return eris.Wrapf(err, "failed to open archive entry %s", item.Name)
		}

		err = writeEntry(dest, 0660, itemHandle)
		itemHandle.Close()
		if err != nil {
			return err
		}
	}

	return nil
}

func extractTar(r io.Reader, destDir string, strip int) error {
	archive := tar.NewReader(r)

	for {
		item, err := archive.Next()
		if err != nil {
			if err == io.EOF {
				break
			}

			return eris.Wrap(err, "failed to read archive entry")
		}

		info := item.FileInfo()
		if info.IsDir() {
			continue
		}

		dest, err := entryDest(destDir, item.Name, strip)
		if err != nil {
			return err
		}
		if dest == "" {
			continue
		}

		if item.Typeflag == tar.TypeSymlink {
			err = os.MkdirAll(filepath.Dir(dest), 0770)
			if err != nil {
				return eris.Wrapf(err, "failed to create directory for %s", dest)
			}

			err = os.Symlink(item.Linkname, dest)
			if err != nil {
				return eris.Wrapf(err, "failed to create symlink %s pointing to %s", dest, item.Linkname)
			}
			continue
		}

		err = writeEntry(dest, info.Mode(), archive)
		if err != nil {
			return err
		}
	}

	return nil
}
