package sink

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// fileRecord is the persisted JSONL envelope. For decoded events Data holds
// the sender's original JSON object verbatim; for fallbacks RawData holds the
// undecodable text.
type fileRecord struct {
	Timestamp string          `json:"timestamp"`
	Address   string          `json:"address"`
	Data      json.RawMessage `json:"data,omitempty"`
	RawData   string          `json:"raw_data,omitempty"`
}

// File persists entries as JSON lines in a daily-rotated file named
// loglib-YYYY-MM-DD.jsonl inside the working directory. The rotation date is
// checked on every write.
type File struct {
	mu      sync.Mutex
	dir     string
	curDate string
	f       *os.File
	now     func() time.Time
}

// NewFile creates the working directory if needed and returns a file sink.
// The log file itself is opened lazily on first write.
func NewFile(dir string, now func() time.Time) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("file sink: create directory %s: %w", dir, err)
	}
	if now == nil {
		now = time.Now
	}
	return &File{dir: dir, now: now}, nil
}

// Write appends one JSONL record.
func (s *File) Write(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.file()
	if err != nil {
		return err
	}

	rec := fileRecord{
		Timestamp: e.Received.Format(time.RFC3339),
		Address:   e.Source,
	}
	if e.Event != nil {
		// Raw is the sender's JSON object when decoding succeeded.
		rec.Data = json.RawMessage(e.Raw)
	} else {
		rec.RawData = e.Raw
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("file sink: marshal: %w", err)
	}
	line = append(line, '\n')

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("file sink: write: %w", err)
	}
	return nil
}

// Close closes the current log file.
func (s *File) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

// file returns the handle for today's log file, rotating when the date
// changed since the last write. Caller holds the lock.
func (s *File) file() (*os.File, error) {
	date := s.now().Format("2006-01-02")
	if s.f != nil && date == s.curDate {
		return s.f, nil
	}

	if s.f != nil {
		s.f.Close()
		s.f = nil
	}

	path := filepath.Join(s.dir, "loglib-"+date+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("file sink: open %s: %w", path, err)
	}
	s.f = f
	s.curDate = date
	return f, nil
}
