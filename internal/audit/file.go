package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// DefaultFilePath is where the text audit log is written
const DefaultFilePath = "docs/data_sources.log"

const separator = "--------------------------------------------------"

// FileSink appends human readable blocks to a text file
type FileSink struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

// OpenFile opens path for appending, creating parent directories
func OpenFile(path string) (*FileSink, error) {
	if path == "" {
		path = DefaultFilePath
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}

	return &FileSink{f: f, path: path}, nil
}

func (s *FileSink) Record(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.f.WriteString(Format(e))
	return err
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}

// Format renders an entry as a text block
func Format(e Entry) string {
	ts := e.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] Dataset: %s\n", ts.Format(time.DateTime), e.Dataset)
	if e.Stage != "" {
		fmt.Fprintf(&b, "Stage: %s\n", e.Stage)
	}
	if e.URL != "" {
		fmt.Fprintf(&b, "URL: %s\n", e.URL)
	}
	if len(e.Params) > 0 {
		// Maps marshal with sorted keys
		params, _ := json.Marshal(e.Params)
		fmt.Fprintf(&b, "Params: %s\n", params)
	}

	status := string(e.Outcome)
	if e.Reason != "" {
		status += " (" + e.Reason + ")"
	}
	fmt.Fprintf(&b, "Status: %s\n", status)

	if e.Pages > 0 {
		fmt.Fprintf(&b, "Pages: %d\n", e.Pages)
	}
	if e.Outcome != OutcomeFailed {
		fmt.Fprintf(&b, "Records: %d\n", e.Records)
	}
	if e.Key != "" {
		fmt.Fprintf(&b, "Key: %s\n", e.Key)
	}
	if e.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", e.Error)
	}
	if e.RunID != "" {
		fmt.Fprintf(&b, "Run: %s\n", e.RunID)
	}
	b.WriteString(separator + "\n")

	return b.String()
}
