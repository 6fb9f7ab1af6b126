// Package pack implements the .spk bundle format the packages target
// produces: a flat container of brotli-compressed files with a JSON index at
// the end. The index offset lives in the fixed-size header so readers can
// jump straight to it.
package pack

import (
	"encoding/binary"
	"encoding/json"
	"io"
	"os"

	"github.com/andybalholm/brotli"
	"github.com/rotisserie/eris"
)

var magic = [4]byte{'S', 'P', 'K', '1'}

// headerSize covers the magic plus the int64 index offset.
const headerSize = 4 + 8

// Entry describes one file inside a bundle.
type Entry struct {
	Name string `json:"name"`
	// Offset marks where the brotli stream starts in the bundle file.
	Offset int64 `json:"offset"`
	// Size is the compressed length, DecSize the original file size.
	Size    int64 `json:"size"`
	DecSize int64 `json:"decSize"`
}

// Writer creates .spk bundles.
type Writer struct {
	hdl     *os.File
	entries []Entry
	names   map[string]bool
}

// NewWriter creates the named bundle file and prepares it for writing.
func NewWriter(filename string) (*Writer, error) {
	hdl, err := os.Create(filename)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to create bundle %s", filename)
	}

	// skip the header, it's filled in on Close
	_, err = hdl.Seek(headerSize, io.SeekStart)
	if err != nil {
		hdl.Close()
		return nil, eris.Wrap(err, "failed to reserve the bundle header")
	}

	return &Writer{
		hdl:   hdl,
		names: make(map[string]bool),
	}, nil
}

// Add compresses the given reader into the bundle under the given name.
func (w *Writer) Add(name string, reader io.Reader) error {
	if w.names[name] {
		return eris.Errorf("bundle already contains %s", name)
	}

	offset, err := w.hdl.Seek(0, io.SeekCurrent)
	if err != nil {
		return eris.Wrap(err, "failed to determine the current bundle position")
	}

	brw := brotli.NewWriterLevel(w.hdl, brotli.BestCompression)
	decSize, err := io.Copy(brw, reader)
	if err != nil {
		return eris.Wrapf(err, "failed to compress %s", name)
	}

	err = brw.Close()
	if err != nil {
		return eris.Wrapf(err, "failed to finish the compressed stream for %s", name)
	}

	newPos, err := w.hdl.Seek(0, io.SeekCurrent)
	if err != nil {
		return eris.Wrap(err, "failed to determine the current bundle position")
	}

	w.names[name] = true
	w.entries = append(w.entries, Entry{
		Name:    name,
		Offset:  offset,
		Size:    newPos - offset,
		DecSize: decSize,
	})
	return nil
}

// AddFile compresses the named file into the bundle.
func (w *Writer) AddFile(name, path string) error {
	handle, err := os.Open(path)
	if err != nil {
		return eris.Wrapf(err, "failed to open %s", path)
	}
	defer handle.Close()

	return w.Add(name, handle)
}

// Close writes the index and the header and closes the bundle file.
func (w *Writer) Close() error {
	indexOffset, err := w.hdl.Seek(0, io.SeekCurrent)
	if err != nil {
		w.hdl.Close()
		return eris.Wrap(err, "failed to determine the index position")
	}

	encoder := json.NewEncoder(w.hdl)
	err = encoder.Encode(w.entries)
	if err != nil {
		w.hdl.Close()
		return eris.Wrap(err, "failed to write the bundle index")
	}

	_, err = w.hdl.Seek(0, io.SeekStart)
	if err != nil {
		w.hdl.Close()
		return eris.Wrap(err, "failed to seek to the bundle header")
	}

	_, err = w.hdl.Write(magic[:])
	if err == nil {
		err = binary.Write(w.hdl, binary.LittleEndian, indexOffset)
	}
	if err != nil {
		w.hdl.Close()
		return eris.Wrap(err, "failed to write the bundle header")
	}

	return w.hdl.Close()
}
