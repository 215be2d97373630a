//go:build unix

package trace

import (
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// mapFile maps f read-only. The second return value reports whether the
// bytes came from mmap (and need munmap) or from a plain read fallback.
func mapFile(f *os.File, size int64) ([]byte, bool, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_PRIVATE)
	if err == nil {
		return data, true, nil
	}
	// Some filesystems (and size-0 edge cases) refuse mmap; fall back to
	// reading the file into memory so the rest of the pipeline is unaffected.
	if _, serr := f.Seek(0, io.SeekStart); serr != nil {
		return nil, false, err
	}
	buf := make([]byte, size)
	if _, rerr := io.ReadFull(f, buf); rerr != nil {
		return nil, false, err
	}
	return buf, false, nil
}

func unmap(data []byte, mapped bool) {
	if mapped {
		_ = unix.Munmap(data)
	}
}
