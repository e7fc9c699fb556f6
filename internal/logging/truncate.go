package logging

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
)

// OpenLogFile opens path for appending, first discarding all but the most
// recent keepLines lines of any existing content. The file and its parent
// directory are created if missing.
func OpenLogFile(path string, keepLines int) (*os.File, error) {
	if keepLines <= 0 {
		keepLines = 2000
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	if err := truncateToTail(path, keepLines); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// truncateToTail rewrites path so it holds only its last keepLines lines.
// A missing file is left alone.
func truncateToTail(path string, keepLines int) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read log file: %w", err)
	}

	lines := bytes.Split(data, []byte("\n"))
	// A trailing newline yields one empty final element; it is not a line.
	if len(lines) > 0 && len(lines[len(lines)-1]) == 0 {
		lines = lines[:len(lines)-1]
	}

	if len(lines) <= keepLines {
		return nil
	}

	tail := bytes.Join(lines[len(lines)-keepLines:], []byte("\n"))
	tail = append(tail, '\n')

	if err := os.WriteFile(path, tail, 0600); err != nil {
		return fmt.Errorf("truncate log file: %w", err)
	}
	return nil
}
