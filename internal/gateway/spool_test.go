package gateway

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"
)

func TestSpoolSmallBodyStaysInMemory(t *testing.T) {
	s, err := spoolBody(strings.NewReader("hello"), 1024, 1<<20)
	if err != nil {
		t.Fatalf("spoolBody: %v", err)
	}
	defer s.Close()

	if s.file != nil {
		t.Fatal("small body must not spill to disk")
	}
	if s.Size() != 5 {
		t.Fatalf("Size = %d", s.Size())
	}
}

func TestSpoolLargeBodySpillsAndReplays(t *testing.T) {
	body := bytes.Repeat([]byte("x"), 4096)
	s, err := spoolBody(bytes.NewReader(body), 1024, 1<<20)
	if err != nil {
		t.Fatalf("spoolBody: %v", err)
	}
	defer s.Close()

	if s.file == nil {
		t.Fatal("large body must spill to disk")
	}
	if s.Size() != int64(len(body)) {
		t.Fatalf("Size = %d, want %d", s.Size(), len(body))
	}

	// Every attempt gets the full body from the start.
	for i := 0; i < 3; i++ {
		got, err := io.ReadAll(s.NewReader())
		if err != nil {
			t.Fatalf("read #%d: %v", i, err)
		}
		if !bytes.Equal(got, body) {
			t.Fatalf("replay #%d mismatch: %d bytes", i, len(got))
		}
	}
}

func TestSpoolCloseRemovesTempFile(t *testing.T) {
	s, err := spoolBody(bytes.NewReader(bytes.Repeat([]byte("x"), 4096)), 1024, 1<<20)
	if err != nil {
		t.Fatalf("spoolBody: %v", err)
	}
	name := s.file.Name()
	s.Close()

	if _, err := os.Stat(name); !os.IsNotExist(err) {
		t.Fatalf("temp file %s survived Close", name)
	}
}

func TestSpoolEnforcesCeiling(t *testing.T) {
	_, err := spoolBody(bytes.NewReader(bytes.Repeat([]byte("x"), 4096)), 16, 2048)
	if err == nil {
		t.Fatal("expected ceiling error")
	}
}

func TestSpoolNilBody(t *testing.T) {
	s, err := spoolBody(nil, 1024, 1<<20)
	if err != nil {
		t.Fatalf("spoolBody: %v", err)
	}
	defer s.Close()
	if s.Size() != 0 {
		t.Fatalf("Size = %d", s.Size())
	}
	got, _ := io.ReadAll(s.NewReader())
	if len(got) != 0 {
		t.Fatalf("read %d bytes from empty spool", len(got))
	}
}
