// Copyright © NGRSoftlab 2020-2025

package scriptcopy

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Content is the data to copy. Exactly one of StreamContent, FileContent
// or StringContent; the set is closed
type Content interface {
	// Open returns a fresh reader over the content
	Open() (io.ReadCloser, error)
	isContent()
}

// StreamContent copies everything read from Reader. It can be opened once
type StreamContent struct {
	Reader io.Reader
}

// FileContent copies an existing local file
type FileContent struct {
	Path string
}

// StringContent copies a literal string, usually script text
type StringContent struct {
	Text string
}

func (StreamContent) isContent() {}
func (FileContent) isContent()   {}
func (StringContent) isContent() {}

// Open wraps Reader without taking ownership of it
func (c StreamContent) Open() (io.ReadCloser, error) {
	if c.Reader == nil {
		return nil, fmt.Errorf("stream content: reader is nil")
	}
	return io.NopCloser(c.Reader), nil
}

// Open opens the file for reading
func (c FileContent) Open() (io.ReadCloser, error) {
	if c.Path == "" {
		return nil, fmt.Errorf("file content: path is empty")
	}
	f, err := os.Open(c.Path)
	if err != nil {
		return nil, fmt.Errorf("open source file: %w", err)
	}
	return f, nil
}

// AbsPath returns the absolute path of the file
func (c FileContent) AbsPath() (string, error) {
	if c.Path == "" {
		return "", fmt.Errorf("file content: path is empty")
	}
	return filepath.Abs(c.Path)
}

// Open reads from Text
func (c StringContent) Open() (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(c.Text)), nil
}
