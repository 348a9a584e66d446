// Package mmap provides read-only memory mappings for local snapshot blobs.
package mmap

import "os"

// Mapping is a read-only view of a file. The byte slice stays valid until
// Close.
type Mapping struct {
	f    *os.File
	data []byte
}

// Open maps the file at path read-only. Empty files yield an empty mapping
// without a map syscall.
func Open(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	size := info.Size()
	if size == 0 {
		return &Mapping{f: f}, nil
	}

	data, err := mmap(f, int(size))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Mapping{f: f, data: data}, nil
}

// Bytes returns the mapped contents.
func (m *Mapping) Bytes() []byte {
	return m.data
}

// Len returns the mapped length in bytes.
func (m *Mapping) Len() int {
	return len(m.data)
}

// Close unmaps the view and closes the file.
func (m *Mapping) Close() error {
	var unmapErr error
	if m.data != nil {
		unmapErr = munmap(m.data)
		m.data = nil
	}
	closeErr := m.f.Close()
	if unmapErr != nil {
		return unmapErr
	}
	return closeErr
}
