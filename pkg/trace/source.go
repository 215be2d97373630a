package trace

import (
	"os"

	tderrors "github.com/tracedump/tracedump/pkg/errors"
)

// Source is an open, memory-mapped trace capture. It is created once per
// invocation, owned exclusively by the caller, and released with Close at
// process exit.
type Source struct {
	f      *os.File
	data   []byte
	mapped bool

	// Header is the parsed capture header.
	Header *Header
}

// Open opens path, maps it read-only and parses the header. I/O failures
// come back with an I/O code, malformed headers with a format code; neither
// is recovered from here.
func Open(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		code := tderrors.CodeOpenFailed
		if os.IsNotExist(err) {
			code = tderrors.CodeFileNotFound
		}
		return nil, tderrors.Wrap(err, code, "opening trace").WithContext("path", path)
	}

	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, tderrors.Wrap(err, tderrors.CodeOpenFailed, "stat trace").WithContext("path", path)
	}
	if st.Size() == 0 {
		f.Close()
		return nil, tderrors.New(tderrors.CodeBadMagic, "empty trace file").WithContext("path", path)
	}

	data, mapped, err := mapFile(f, st.Size())
	if err != nil {
		f.Close()
		return nil, tderrors.Wrap(err, tderrors.CodeMmapFailed, "mapping trace").WithContext("path", path)
	}

	h, err := ParseHeader(data)
	if err != nil {
		unmap(data, mapped)
		f.Close()
		return nil, err
	}

	return &Source{f: f, data: data, mapped: mapped, Header: h}, nil
}

// Reader returns a fresh event reader positioned at the first record.
// Readers share the mapping and must not outlive the source.
func (s *Source) Reader() *Reader {
	return &Reader{
		h:    s.Header,
		data: s.data,
		off:  int(s.Header.DataOffset),
		ord:  s.Header.ByteOrder(),
	}
}

// Size returns the mapped file size in bytes.
func (s *Source) Size() int64 { return int64(len(s.data)) }

// Close unmaps the file and closes the handle.
func (s *Source) Close() error {
	if s.data != nil {
		unmap(s.data, s.mapped)
		s.data = nil
	}
	if s.f != nil {
		err := s.f.Close()
		s.f = nil
		return err
	}
	return nil
}
