// Copyright © NGRSoftlab 2020-2025

package ssh

import "os"

const (
	defaultSFTPBufferSize = 2 << 14
	defaultSFTPDirMode    = 0o755
)

// SFTPOption configures an SFTPTransfer
type SFTPOption func(*sftpConfig)

type sftpConfig struct {
	bufferSize int
	dirMode    os.FileMode // mode for created parent directories
}

func newSFTPConfig(opts ...SFTPOption) *sftpConfig {
	cfg := &sftpConfig{
		bufferSize: defaultSFTPBufferSize,
		dirMode:    defaultSFTPDirMode,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithSFTPBufferSize sets the size of the copy buffer
func WithSFTPBufferSize(n int) SFTPOption {
	return func(c *sftpConfig) {
		if n > 0 {
			c.bufferSize = n
		}
	}
}

// WithSFTPDirMode sets the mode of parent directories created on the node
func WithSFTPDirMode(mode os.FileMode) SFTPOption {
	return func(c *sftpConfig) {
		if mode != 0 {
			c.dirMode = mode
		}
	}
}
