// Copyright © NGRSoftlab 2020-2025

package ssh

import (
	"os"
	"testing"
)

func TestNewSFTPConfig(t *testing.T) {
	tests := []struct {
		name    string
		opts    []SFTPOption
		wantBuf int
		wantDir os.FileMode
	}{
		{"default", nil, defaultSFTPBufferSize, defaultSFTPDirMode},
		{"buffer", []SFTPOption{WithSFTPBufferSize(1024)}, 1024, defaultSFTPDirMode},
		{"buffer_ignored", []SFTPOption{WithSFTPBufferSize(0)}, defaultSFTPBufferSize, defaultSFTPDirMode},
		{"dir_mode", []SFTPOption{WithSFTPDirMode(0o700)}, defaultSFTPBufferSize, 0o700},
		{"dir_mode_ignored", []SFTPOption{WithSFTPDirMode(0)}, defaultSFTPBufferSize, defaultSFTPDirMode},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := newSFTPConfig(tc.opts...)
			if cfg.bufferSize != tc.wantBuf {
				t.Errorf("bufferSize = %d; want %d", cfg.bufferSize, tc.wantBuf)
			}
			if cfg.dirMode != tc.wantDir {
				t.Errorf("dirMode = %o; want %o", cfg.dirMode, tc.wantDir)
			}
		})
	}
}
