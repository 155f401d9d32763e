package gateway

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

const (
	// DefaultSpoolMemoryBytes is the in-memory buffering threshold before a
	// request body spills to a temp file.
	DefaultSpoolMemoryBytes = 1 << 20
	// DefaultMaxBodyBytes is the operator-configurable upload ceiling.
	DefaultMaxBodyBytes = 20 << 30
)

// bodySpool buffers a request body so the failover loop can replay it on
// every attempt. Bodies up to the memory threshold stay in RAM; larger
// ones spill to a request-scoped temp file removed by Close on all exit
// paths.
type bodySpool struct {
	mem  []byte
	file *os.File
	size int64
}

// spoolBody drains r into a replayable spool. maxBytes caps the accepted
// body size; exceeding it returns an error.
func spoolBody(r io.Reader, memLimit, maxBytes int64) (*bodySpool, error) {
	if r == nil {
		return &bodySpool{}, nil
	}
	if memLimit <= 0 {
		memLimit = DefaultSpoolMemoryBytes
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, memLimit))
	if err != nil {
		return nil, err
	}
	if n < memLimit {
		if n > maxBytes {
			return nil, fmt.Errorf("gateway: request body exceeds %d bytes", maxBytes)
		}
		return &bodySpool{mem: buf.Bytes(), size: n}, nil
	}

	// Body continues past the memory threshold; spill everything to disk.
	f, err := os.CreateTemp("", "meshgw-body-*")
	if err != nil {
		return nil, err
	}
	s := &bodySpool{file: f}
	if _, err := f.Write(buf.Bytes()); err != nil {
		s.Close()
		return nil, err
	}
	rest, err := io.Copy(f, io.LimitReader(r, maxBytes-n+1))
	if err != nil {
		s.Close()
		return nil, err
	}
	s.size = n + rest
	if s.size > maxBytes {
		s.Close()
		return nil, fmt.Errorf("gateway: request body exceeds %d bytes", maxBytes)
	}
	return s, nil
}

// Size returns the buffered body length in bytes.
func (s *bodySpool) Size() int64 {
	return s.size
}

// NewReader returns a fresh reader over the full body for one attempt.
func (s *bodySpool) NewReader() io.ReadCloser {
	if s.file != nil {
		return io.NopCloser(io.NewSectionReader(s.file, 0, s.size))
	}
	return io.NopCloser(bytes.NewReader(s.mem))
}

// Close releases the spool, deleting the temp file if one was created.
func (s *bodySpool) Close() {
	if s.file != nil {
		name := s.file.Name()
		s.file.Close()
		os.Remove(name)
		s.file = nil
	}
	s.mem = nil
}
