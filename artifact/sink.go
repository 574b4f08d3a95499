// Package artifact persists captured browser output, screenshots mostly,
// through pluggable sinks.
package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Sink stores one named artifact and reports where it ended up.
type Sink interface {
	Save(ctx context.Context, name string, data []byte) (location string, err error)
}

var _ Sink = (*FileSink)(nil)

// FileSink writes artifacts into a directory, creating it on first use.
type FileSink struct {
	Dir string
}

func (s *FileSink) Save(ctx context.Context, name string, data []byte) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}
	path := filepath.Join(s.Dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return path, nil
}
