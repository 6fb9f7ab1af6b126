package pack

import (
	"encoding/binary"
	"encoding/json"
	"io"
	"os"

	"github.com/andybalholm/brotli"
	"github.com/rotisserie/eris"
)

// Reader opens .spk bundles for inspection and extraction.
type Reader struct {
	hdl     *os.File
	entries []Entry
	index   map[string]*Entry
}

// OpenReader opens the named bundle and parses its index.
func OpenReader(filename string) (*Reader, error) {
	hdl, err := os.Open(filename)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to open bundle %s", filename)
	}

	var header [4]byte
	_, err = io.ReadFull(hdl, header[:])
	if err != nil {
		hdl.Close()
		return nil, eris.Wrapf(err, "failed to read the header of %s", filename)
	}

	if header != magic {
		hdl.Close()
		return nil, eris.Errorf("%s is not a .spk bundle", filename)
	}

	var indexOffset int64
	err = binary.Read(hdl, binary.LittleEndian, &indexOffset)
	if err != nil {
		hdl.Close()
		return nil, eris.Wrapf(err, "failed to read the index offset of %s", filename)
	}

	_, err = hdl.Seek(indexOffset, io.SeekStart)
	if err != nil {
		hdl.Close()
		return nil, eris.Wrapf(err, "failed to seek to the index of %s", filename)
	}

	var entries []Entry
	err = json.NewDecoder(hdl).Decode(&entries)
	if err != nil {
		hdl.Close()
		return nil, eris.Wrapf(err, "failed to parse the index of %s", filename)
	}

	index := make(map[string]*Entry, len(entries))
	for idx := range entries {
		index[entries[idx].Name] = &entries[idx]
	}

	return &Reader{
		hdl:     hdl,
		entries: entries,
		index:   index,
	}, nil
}

// Entries returns the bundle index in the order the files were added.
func (r *Reader) Entries() []Entry {
	return r.entries
}

// Open returns a reader for the decompressed content of the named entry.
func (r *Reader) Open(name string) (io.Reader, error) {
	entry, ok := r.index[name]
	if !ok {
		return nil, eris.Errorf("bundle doesn't contain %s", name)
	}

	section := io.NewSectionReader(r.hdl, entry.Offset, entry.Size)
	return brotli.NewReader(section), nil
}

// Close closes the underlying bundle file.
func (r *Reader) Close() error {
	return r.hdl.Close()
}
