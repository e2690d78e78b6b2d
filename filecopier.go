// Copyright © NGRSoftlab 2020-2025

package scriptcopy

import (
	"context"
	"io"
)

// FileCopier places content on a node and reports where it ended up
type FileCopier interface {
	// CopyFileStream copies everything read from r
	CopyFileStream(ctx context.Context, ec ExecutionContext, r io.Reader, node Node) (string, error)
	// CopyFile copies the local file at path
	CopyFile(ctx context.Context, ec ExecutionContext, path string, node Node) (string, error)
	// CopyScriptContent copies the literal script text s
	CopyScriptContent(ctx context.Context, ec ExecutionContext, s string, node Node) (string, error)
}

// DestinationFileCopier is a FileCopier that also accepts an explicit remote destination.
// A nil destination lets the copier choose the remote path; a destination ending
// in "/" is treated as a directory
type DestinationFileCopier interface {
	FileCopier
	CopyTo(ctx context.Context, ec ExecutionContext, content Content, node Node, destination *string) (string, error)
}
