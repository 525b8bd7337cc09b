// Package protocol is the boundary between the client core and the SSH/SFTP
// engine. Protocol lists the primitive operations the core orchestrates;
// Native implements them over golang.org/x/crypto/ssh and github.com/pkg/sftp.
//
// A Protocol value is bound to one client identity. Every call returns
// exactly once. Asynchronous output (shell data, transfer progress) leaves
// through an Emitter tagged with that identity.
package protocol

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/Lvzhenqian/sshsftp/errors"
)

type Protocol interface {
	Authenticate(endpoint Endpoint, credential Credential) error
	RunCommand(command string) (string, error)

	// OpenShell returns the initial output of the shell, possibly empty.
	OpenShell(pty PtyType) (string, error)
	// WriteShell returns the output produced in response to data.
	WriteShell(data string) (string, error)
	CloseShell() error

	OpenSftp() error
	// ListDir returns one JSON encoded RawEntry per directory entry.
	ListDir(path string) ([]string, error)
	Rename(oldPath, newPath string) error
	Mkdir(path string) error
	Remove(path string) error
	RemoveDir(path string) error
	Chmod(path string, mode os.FileMode) error

	// Upload stores localPath as remoteDir/<base of localPath>.
	Upload(localPath, remoteDir string) error
	UploadNamed(localPath, remoteDir, name string) error
	UploadInline(content []byte, remoteDir, name string) error
	// Download copies remotePath into localDir and returns the local path.
	Download(remotePath, localDir string) (string, error)
	// CancelUpload and CancelDownload abort every in-flight transfer of that
	// direction. The aborted calls still return, with context.Canceled.
	CancelUpload()
	CancelDownload()

	// DisconnectSftp closes the SFTP session. Whether the channel goes away
	// independently of the transport is up to the engine.
	DisconnectSftp() error
	Disconnect() error
}

// Endpoint is where and as whom to log in.
type Endpoint struct {
	Host     string
	Port     int
	Username string
}

func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s@%s", e.Username, e.Addr())
}

// PtyType is the terminal type requested for a shell.
type PtyType string

const (
	PtyVanilla PtyType = "vanilla"
	PtyVT100   PtyType = "vt100"
	PtyVT102   PtyType = "vt102"
	PtyVT220   PtyType = "vt220"
	PtyAnsi    PtyType = "ansi"
	PtyXterm   PtyType = "xterm"
)

func (p PtyType) Valid() bool {
	switch p {
	case PtyVanilla, PtyVT100, PtyVT102, PtyVT220, PtyAnsi, PtyXterm:
		return true
	}
	return false
}

func ParsePtyType(s string) (PtyType, error) {
	p := PtyType(s)
	if !p.Valid() {
		return "", errors.Errorf("unknown pty type %q", s)
	}
	return p, nil
}

// Event names emitted by engines.
const (
	EventShell            = "Shell"
	EventUploadProgress   = "UploadProgress"
	EventDownloadProgress = "DownloadProgress"
)

// Event carries the emitting client's identity; Data is a string for Shell
// and a Progress for the transfer events.
type Event struct {
	ClientID string
	Name     string
	Data     interface{}
}

type Progress struct {
	Path        string
	Transferred int64
	Total       int64
	Percent     int
}
