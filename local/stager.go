// Copyright © NGRSoftlab 2020-2025

package local

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ngrsoftlab/scriptcopy"
	"github.com/ngrsoftlab/scriptcopy/datacontext"
)

const tempPattern = "scriptcopy-*.tmp"

// StagedFile is a local file ready to be handed to a copy script
type StagedFile struct {
	Path  string // absolute path
	Owned bool   // created by the Stager, removed by Cleanup
}

// Name returns the base name of the staged file
func (sf *StagedFile) Name() string {
	return filepath.Base(sf.Path)
}

// Cleanup removes the file if the Stager created it. Safe to call on nil
func (sf *StagedFile) Cleanup() error {
	if sf == nil || !sf.Owned {
		return nil
	}
	if err := os.Remove(sf.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove staged file: %w", err)
	}
	return nil
}

// Stager materializes copy content as local files
type Stager struct {
	tmpDir string
	mode   os.FileMode
}

// NewStager creates a Stager writing temp files to tmpDir (os.TempDir() if empty)
func NewStager(tmpDir string) *Stager {
	return &Stager{tmpDir: tmpDir, mode: 0o600}
}

// WithMode sets the permission bits of created temp files
func (st *Stager) WithMode(mode os.FileMode) *Stager {
	st.mode = mode
	return st
}

// Stage turns content into a local file.
// With expandTokens every variant is copied to a new temp file and @namespace.key@
// tokens are replaced from dc. Without it an existing file is used in place and
// other content is written byte for byte
func (st *Stager) Stage(content scriptcopy.Content, dc datacontext.DataContext, expandTokens bool) (*StagedFile, error) {
	if content == nil {
		return nil, fmt.Errorf("no content to stage")
	}

	if fc, ok := content.(scriptcopy.FileContent); ok && !expandTokens {
		abs, err := fc.AbsPath()
		if err != nil {
			return nil, fmt.Errorf("resolve source file: %w", err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("stat source file: %w", err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("source %q is a directory", abs)
		}
		return &StagedFile{Path: abs, Owned: false}, nil
	}

	reader, err := content.Open()
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	if expandTokens {
		data, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("read content: %w", err)
		}
		return st.write(func(w io.Writer) error {
			_, err := w.Write(datacontext.ReplaceTokens(data, dc))
			return err
		})
	}

	return st.write(func(w io.Writer) error {
		_, err := io.Copy(w, reader)
		return err
	})
}

// write creates a temp file and fills it with fill, removing it on any failure
func (st *Stager) write(fill func(io.Writer) error) (*StagedFile, error) {
	f, err := os.CreateTemp(st.tmpDir, tempPattern)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	staged := &StagedFile{Path: f.Name(), Owned: true}

	if err := fill(f); err != nil {
		f.Close()
		staged.Cleanup()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Chmod(st.mode); err != nil {
		f.Close()
		staged.Cleanup()
		return nil, fmt.Errorf("chmod temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		staged.Cleanup()
		return nil, fmt.Errorf("close temp file: %w", err)
	}

	abs, err := filepath.Abs(staged.Path)
	if err != nil {
		staged.Cleanup()
		return nil, fmt.Errorf("resolve temp file: %w", err)
	}
	staged.Path = abs
	return staged, nil
}
