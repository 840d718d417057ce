package track

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
)

// Source is raw audio content that can be opened more than once.
type Source interface {
	Name() string
	Open() (io.ReadCloser, error)
}

type fileSource string

// File returns a Source reading the file at path.
func File(path string) Source {
	return fileSource(path)
}

func (f fileSource) Name() string {
	return filepath.Base(string(f))
}

func (f fileSource) Open() (io.ReadCloser, error) {
	return os.Open(string(f))
}

type bytesSource struct {
	name string
	data []byte
}

// Bytes returns a Source over data held in memory.
func Bytes(name string, data []byte) Source {
	return bytesSource{name: name, data: data}
}

func (b bytesSource) Name() string {
	return b.name
}

func (b bytesSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b.data)), nil
}
