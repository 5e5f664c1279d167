package sshutils

import (
	"fmt"
	"io"

	"github.com/pkg/sftp"
)

// SFTPClienter interface defines the methods we need for SFTP operations
type SFTPClienter interface {
	Open(path string) (io.ReadCloser, error)
	Close() error
}

type sftpClientWrapper struct {
	*sftp.Client
}

func (w *sftpClientWrapper) Open(path string) (io.ReadCloser, error) {
	return w.Client.Open(path)
}

// FetchFile copies remotePath from the device into w over SFTP.
func FetchFile(client SSHClienter, remotePath string, w io.Writer) (int64, error) {
	sftpClient, err := client.NewSFTPClient()
	if err != nil {
		return 0, err
	}
	defer sftpClient.Close()

	remote, err := sftpClient.Open(remotePath)
	if err != nil {
		return 0, fmt.Errorf("failed to open remote file %s: %w", remotePath, err)
	}
	defer remote.Close()

	n, err := io.Copy(w, remote)
	if err != nil {
		return n, fmt.Errorf("failed to copy remote file %s: %w", remotePath, err)
	}
	return n, nil
}
