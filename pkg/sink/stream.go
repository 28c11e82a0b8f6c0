package sink

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kasyap/okx-corr/pkg/logger"
)

const megabyte = 1024 * 1024

// Stream is one append-only CSV record stream on a rotating file. Rotation is
// driven here rather than inside lumberjack so every file, including each one
// started by a rotation, begins with the header. The first write failure
// disables the stream for the rest of the run.
type Stream struct {
	mu       sync.Mutex
	path     string
	w        *lumberjack.Logger
	header   []byte
	maxBytes int64
	size     int64
	disabled bool
	log      *slog.Logger
}

// OpenStream prepares the stream at path, writing header when the file is new
// or empty. A stream that cannot be prepared is returned disabled.
func OpenStream(path string, header []string, rotateMB int, log *slog.Logger) *Stream {
	s := &Stream{path: path, log: logger.Component(log, "sink").With("path", path)}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		s.disable(fmt.Errorf("create directory: %w", err))
		return s
	}
	if fi, err := os.Stat(path); err == nil {
		s.size = fi.Size()
	}

	hdr, err := encodeRow(header)
	if err != nil {
		s.disable(fmt.Errorf("encode header: %w", err))
		return s
	}
	s.header = hdr
	s.w = logger.RollingFile(path, rotateMB, 0, 0)
	s.maxBytes = int64(s.w.MaxSize) * megabyte

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.size == 0 {
		if err := s.writeHeader(); err != nil {
			s.disable(err)
		}
	}
	return s
}

func encodeRow(fields []string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(fields); err != nil {
		return nil, err
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func (s *Stream) writeHeader() error {
	n, err := s.w.Write(s.header)
	s.size += int64(n)
	return err
}

// Write appends one row. A row that would push the file past its size limit
// first rotates the file and starts the new one with the header.
func (s *Stream) Write(fields ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disabled {
		return
	}
	row, err := encodeRow(fields)
	if err != nil {
		s.disable(err)
		return
	}

	if s.size > 0 && s.size+int64(len(row)) >= s.maxBytes {
		if err := s.w.Rotate(); err != nil {
			s.disable(fmt.Errorf("rotate: %w", err))
			return
		}
		s.size = 0
	}
	if s.size == 0 {
		if err := s.writeHeader(); err != nil {
			s.disable(err)
			return
		}
	}

	n, err := s.w.Write(row)
	s.size += int64(n)
	if err != nil {
		s.disable(err)
	}
}

// Disabled reports whether the stream stopped accepting rows.
func (s *Stream) Disabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disabled
}

func (s *Stream) disable(err error) {
	s.disabled = true
	s.log.Error("record stream disabled", logger.KeyError, err)
	if s.w != nil {
		_ = s.w.Close()
	}
}

func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil || s.disabled {
		return nil
	}
	s.disabled = true
	return s.w.Close()
}
