// Copyright © NGRSoftlab 2020-2025

package ssh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ngrsoftlab/scriptcopy"
	"github.com/ngrsoftlab/scriptcopy/utils"
	"github.com/pkg/sftp"
)

const defaultRemoteDir = "/tmp/"

// SFTPTransfer uploads content over the sftp subsystem of an SSH connection
type SFTPTransfer struct {
	client *Client
	cfg    *sftpConfig
}

func NewSFTPTransfer(client *Client, opts ...SFTPOption) *SFTPTransfer {
	return &SFTPTransfer{client: client, cfg: newSFTPConfig(opts...)}
}

// RemotePath picks the upload target for localPath: an empty destination means
// the node's /tmp, a destination ending in "/" receives the local base name
func RemotePath(destination, localPath string) string {
	if destination == "" {
		destination = defaultRemoteDir
	}
	if strings.HasSuffix(destination, "/") {
		return destination + filepath.Base(localPath)
	}
	return destination
}

// Upload writes content to remotePath with the given mode, creating parent
// directories, and returns remotePath. The copy stops when ctx is done
func (t *SFTPTransfer) Upload(ctx context.Context, content scriptcopy.Content, remotePath string, mode os.FileMode) (string, error) {
	if t == nil || t.client == nil {
		return "", utils.ErrClientNil
	}
	if content == nil {
		return "", fmt.Errorf("sftp: no content")
	}
	if remotePath == "" || strings.HasSuffix(remotePath, "/") {
		return "", fmt.Errorf("sftp: remote path %q does not name a file", remotePath)
	}

	reader, err := content.Open()
	if err != nil {
		return "", fmt.Errorf("sftp read source data: %w", err)
	}
	defer reader.Close()

	sftpCli, sess, err := t.openSFTPSession(ctx)
	if err != nil {
		return "", err
	}
	defer func() {
		sftpCli.Close()
		sess.Close()
		sess.Wait()
	}()

	dir := path.Dir(remotePath)
	if _, err := sftpCli.Stat(dir); errors.Is(err, os.ErrNotExist) {
		if err := sftpCli.MkdirAll(dir); err != nil {
			return "", fmt.Errorf("sftp create target dir: %w", err)
		}
		if err := sftpCli.Chmod(dir, t.cfg.dirMode); err != nil {
			return "", fmt.Errorf("sftp chmod dir: %w", err)
		}
	}

	f, err := sftpCli.OpenFile(remotePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC)
	if err != nil {
		return "", fmt.Errorf("sftp open file: %w", err)
	}
	defer f.Close()

	if err := copyContext(ctx, f, reader, t.cfg.bufferSize); err != nil {
		return "", err
	}
	if mode != 0 {
		if err := f.Chmod(mode); err != nil {
			return "", fmt.Errorf("sftp chmod file: %w", err)
		}
	}
	return remotePath, nil
}

// copyContext copies src to dst in bufferSize chunks, checking ctx between chunks
func copyContext(ctx context.Context, dst io.Writer, src io.Reader, bufferSize int) error {
	buf := make([]byte, bufferSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, rErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return fmt.Errorf("sftp write remote data: %w", err)
			}
		}
		if rErr != nil {
			if errors.Is(rErr, io.EOF) {
				return nil
			}
			return fmt.Errorf("sftp read source data: %w", rErr)
		}
	}
}

func (t *SFTPTransfer) openSFTPSession(ctx context.Context) (*sftp.Client, *Session, error) {
	sess, err := t.client.OpenSession(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("open ssh session for sftp: %w", err)
	}

	stdoutPipe, err := sess.StdoutPipe()
	if err != nil {
		sess.Close()
		return nil, nil, fmt.Errorf("get sftp stdout pipe: %w", err)
	}
	stdinPipe, err := sess.StdinPipe()
	if err != nil {
		sess.Close()
		return nil, nil, fmt.Errorf("get sftp stdin pipe: %w", err)
	}

	if err := sess.RequestSubsystem("sftp"); err != nil {
		sess.Close()
		return nil, nil, fmt.Errorf("request sftp subsystem: %w", err)
	}

	cli, err := sftp.NewClientPipe(stdoutPipe, stdinPipe)
	if err != nil {
		sess.Close()
		return nil, nil, fmt.Errorf("sftp new client pipe: %w", err)
	}
	return cli, sess, nil
}
