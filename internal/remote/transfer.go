package remote

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"db-sync-tool/internal/config"
	apperrors "db-sync-tool/internal/errors"
	"db-sync-tool/internal/security"
)

// Direction says which way a dump file moves relative to this process.
type Direction int

const (
	// Download copies remote -> local.
	Download Direction = iota
	// Upload copies local -> remote.
	Upload
)

func (d Direction) String() string {
	if d == Upload {
		return "upload"
	}
	return "download"
}

// TransferOptions shapes a single file transfer.
type TransferOptions struct {
	Direction  Direction
	RemotePath string
	LocalPath  string
	// UseRsync prefers an rsync subprocess over the SFTP channel when
	// rsync is installed and key-based auth makes it non-interactive.
	UseRsync     bool
	RsyncOptions string
}

// Transfer moves one file between the local machine and the endpoint
// behind client. rsync is used when preferred and possible, otherwise
// the transfer falls back to SFTP on the existing SSH connection. A
// failure is fatal to the sync; there is no silent retry.
func Transfer(ctx context.Context, local Runner, client *Client, endpoint config.EndpointConfig, opts TransferOptions) error {
	if opts.UseRsync && endpoint.SSHKey != "" && endpoint.JumpHost == nil && rsyncAvailable(ctx, local) {
		// once rsync starts there is no downgrade to SFTP; a failed
		// transfer aborts the sync
		return rsyncTransfer(ctx, local, endpoint, opts)
	}
	return sftpTransfer(client, opts)
}

// rsyncAvailable probes the local PATH once per call.
func rsyncAvailable(ctx context.Context, local Runner) bool {
	_, err := local.Run(ctx, "command -v rsync")
	return err == nil
}

// rsyncTransfer shells out to rsync over ssh with the endpoint's key.
func rsyncTransfer(ctx context.Context, local Runner, endpoint config.EndpointConfig, opts TransferOptions) error {
	sshCommand := fmt.Sprintf("ssh -p %d -i %s", endpoint.Port, security.QuoteShellArg(endpoint.SSHKey))
	remoteSpec := fmt.Sprintf("%s@%s:%s", endpoint.User, endpoint.Host, opts.RemotePath)

	extra := "-az"
	if opts.RsyncOptions != "" {
		extra = opts.RsyncOptions
	}

	var src, dst string
	if opts.Direction == Download {
		src, dst = remoteSpec, opts.LocalPath
	} else {
		src, dst = opts.LocalPath, remoteSpec
	}

	command := fmt.Sprintf("rsync %s -e %s %s %s",
		extra,
		security.QuoteShellArg(sshCommand),
		security.QuoteShellArg(src),
		security.QuoteShellArg(dst))

	if _, err := local.Run(ctx, command); err != nil {
		if ctx.Err() != nil {
			return apperrors.Classify(ctx.Err())
		}
		return apperrors.New(apperrors.ErrorTypeTransfer,
			fmt.Sprintf("rsync %s failed", opts.Direction), err)
	}
	return nil
}

// sftpTransfer streams the file over the already-authenticated SSH
// connection.
func sftpTransfer(client *Client, opts TransferOptions) error {
	sftpClient, err := client.SFTP()
	if err != nil {
		return err
	}
	defer sftpClient.Close()

	if opts.Direction == Download {
		return copyFile(
			func() (io.ReadCloser, error) { return sftpClient.Open(opts.RemotePath) },
			func() (io.WriteCloser, error) {
				if err := os.MkdirAll(filepath.Dir(opts.LocalPath), 0o755); err != nil {
					return nil, err
				}
				return os.Create(opts.LocalPath)
			},
			opts)
	}
	return copyFile(
		func() (io.ReadCloser, error) { return os.Open(opts.LocalPath) },
		func() (io.WriteCloser, error) {
			if err := sftpClient.MkdirAll(remoteDir(opts.RemotePath)); err != nil {
				return nil, err
			}
			return sftpClient.Create(opts.RemotePath)
		},
		opts)
}

func copyFile(openSrc func() (io.ReadCloser, error), openDst func() (io.WriteCloser, error), opts TransferOptions) error {
	src, err := openSrc()
	if err != nil {
		return apperrors.New(apperrors.ErrorTypeTransfer,
			fmt.Sprintf("cannot open source for %s", opts.Direction), err)
	}
	defer src.Close()

	dst, err := openDst()
	if err != nil {
		return apperrors.New(apperrors.ErrorTypeTransfer,
			fmt.Sprintf("cannot open destination for %s", opts.Direction), err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return apperrors.New(apperrors.ErrorTypeTransfer,
			fmt.Sprintf("%s interrupted", opts.Direction), err)
	}
	return dst.Close()
}

// remoteDir is filepath.Dir for forward-slash remote paths regardless
// of the local OS.
func remoteDir(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx <= 0 {
		return "/"
	}
	return path[:idx]
}
