package ssh

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/Lvzhenqian/sshsftp/configs"
	"github.com/Lvzhenqian/sshsftp/log"
	"github.com/Lvzhenqian/sshsftp/protocol"
	"github.com/stretchr/testify/require"
)

// stubProtocol records every call and keeps uploaded files in memory.
type stubProtocol struct {
	mu       sync.Mutex
	calls    []string
	clientID string
	emitter  *protocol.Emitter

	authErr  error
	shellErr error
	sftpErr  error
	banner   string
	listing  []string
	files    map[string][]byte

	// openGate, when set, holds OpenShell until closed.
	openGate chan struct{}
	// transferGate, when set, holds transfers until closed or cancelled.
	transferGate chan struct{}
	uploadCancel chan struct{}
	downCancel   chan struct{}
}

func newStub() *stubProtocol {
	return &stubProtocol{
		banner:       "welcome",
		files:        make(map[string][]byte),
		uploadCancel: make(chan struct{}),
		downCancel:   make(chan struct{}),
	}
}

func (s *stubProtocol) factory(clientID string, emitter *protocol.Emitter, _ configs.Settings, _ *log.ZeroLogger) protocol.Protocol {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clientID = clientID
	s.emitter = emitter
	return s
}

func (s *stubProtocol) record(call string) {
	s.mu.Lock()
	s.calls = append(s.calls, call)
	s.mu.Unlock()
}

func (s *stubProtocol) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *stubProtocol) count(call string) int {
	n := 0
	for _, c := range s.Calls() {
		if c == call || strings.HasPrefix(c, call+":") {
			n++
		}
	}
	return n
}

func (s *stubProtocol) emit(name string, data interface{}) {
	s.emitter.Emit(protocol.Event{ClientID: s.clientID, Name: name, Data: data})
}

func (s *stubProtocol) Authenticate(endpoint protocol.Endpoint, credential protocol.Credential) error {
	s.record(fmt.Sprintf("Authenticate:%T", credential))
	return s.authErr
}

func (s *stubProtocol) RunCommand(command string) (string, error) {
	s.record("RunCommand")
	if strings.HasPrefix(command, "echo ") {
		return strings.TrimPrefix(command, "echo ") + "\n", nil
	}
	return "", fmt.Errorf("command not found: %s", command)
}

func (s *stubProtocol) OpenShell(pty protocol.PtyType) (string, error) {
	s.record("OpenShell:" + string(pty))
	if s.openGate != nil {
		<-s.openGate
	}
	if s.shellErr != nil {
		return "", s.shellErr
	}
	s.emit(protocol.EventShell, s.banner)
	return s.banner, nil
}

func (s *stubProtocol) WriteShell(data string) (string, error) {
	s.record("WriteShell")
	s.emit(protocol.EventShell, data)
	return data, nil
}

func (s *stubProtocol) CloseShell() error {
	s.record("CloseShell")
	return nil
}

func (s *stubProtocol) OpenSftp() error {
	s.record("OpenSftp")
	return s.sftpErr
}

func (s *stubProtocol) ListDir(dir string) ([]string, error) {
	s.record("ListDir")
	return s.listing, nil
}

func (s *stubProtocol) Rename(oldPath, newPath string) error {
	s.record("Rename")
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.files[oldPath]
	if !ok {
		return os.ErrNotExist
	}
	delete(s.files, oldPath)
	s.files[newPath] = content
	return nil
}

func (s *stubProtocol) Mkdir(string) error {
	s.record("Mkdir")
	return nil
}

func (s *stubProtocol) Remove(file string) error {
	s.record("Remove")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[file]; !ok {
		return os.ErrNotExist
	}
	delete(s.files, file)
	return nil
}

func (s *stubProtocol) RemoveDir(string) error {
	s.record("RemoveDir")
	return nil
}

func (s *stubProtocol) Chmod(string, os.FileMode) error {
	s.record("Chmod")
	return nil
}

func (s *stubProtocol) Upload(localPath, remoteDir string) error {
	return s.UploadNamed(localPath, remoteDir, filepath.Base(localPath))
}

func (s *stubProtocol) UploadNamed(localPath, remoteDir, name string) error {
	content, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	return s.store("Upload", content, remoteDir, name)
}

func (s *stubProtocol) UploadInline(content []byte, remoteDir, name string) error {
	return s.store("UploadInline", content, remoteDir, name)
}

func (s *stubProtocol) store(call string, content []byte, remoteDir, name string) error {
	s.record(call)
	s.mu.Lock()
	gate, cancel := s.transferGate, s.uploadCancel
	s.mu.Unlock()
	if err := hold(gate, cancel); err != nil {
		return err
	}
	if strings.HasPrefix(name, "bad") {
		return fmt.Errorf("permission denied: %s", name)
	}
	dst := path.Join(remoteDir, name)
	s.mu.Lock()
	s.files[dst] = append([]byte(nil), content...)
	s.mu.Unlock()
	s.emit(protocol.EventUploadProgress, protocol.Progress{Path: dst, Transferred: int64(len(content)), Total: int64(len(content)), Percent: 100})
	return nil
}

func hold(gate, cancel chan struct{}) error {
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-cancel:
		return context.Canceled
	}
}

func (s *stubProtocol) Download(remotePath, localDir string) (string, error) {
	s.record("Download")
	s.mu.Lock()
	gate, cancel := s.transferGate, s.downCancel
	content, ok := s.files[remotePath]
	s.mu.Unlock()
	if err := hold(gate, cancel); err != nil {
		return "", err
	}
	if !ok {
		return "", os.ErrNotExist
	}
	local := filepath.Join(localDir, path.Base(remotePath))
	if err := os.WriteFile(local, content, 0644); err != nil {
		return "", err
	}
	return local, nil
}

func (s *stubProtocol) CancelUpload() {
	s.record("CancelUpload")
	s.mu.Lock()
	close(s.uploadCancel)
	s.uploadCancel = make(chan struct{})
	s.mu.Unlock()
}

func (s *stubProtocol) CancelDownload() {
	s.record("CancelDownload")
	s.mu.Lock()
	close(s.downCancel)
	s.downCancel = make(chan struct{})
	s.mu.Unlock()
}

func (s *stubProtocol) DisconnectSftp() error {
	s.record("DisconnectSftp")
	return nil
}

func (s *stubProtocol) Disconnect() error {
	s.record("Disconnect")
	return nil
}

// connectStub returns a connected client on its own emitter.
func connectStub(t *testing.T, stub *stubProtocol, opts ...Option) (*Client, *protocol.Emitter) {
	t.Helper()
	emitter := protocol.NewEmitter()
	opts = append([]Option{WithProtocol(stub.factory), WithEmitter(emitter)}, opts...)
	c, err := ConnectWithPassword("example.com", 0, "alice", "secret", opts...).Wait()
	require.NoError(t, err)
	t.Cleanup(func() { c.Disconnect().Wait() })
	return c, emitter
}
