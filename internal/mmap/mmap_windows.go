//go:build windows

package mmap

import (
	"io"
	"os"
)

// No mapping on windows, the file is read into memory instead. Snapshot
// blobs are small enough that this is acceptable.
func mmap(f *os.File, size int) ([]byte, error) {
	data := make([]byte, size)
	if _, err := io.ReadFull(io.NewSectionReader(f, 0, int64(size)), data); err != nil {
		return nil, err
	}
	return data, nil
}

func munmap(_ []byte) error {
	return nil
}
