package ssh

import (
	"encoding/json"
	"os"
	"strings"
	"unicode"

	"github.com/Lvzhenqian/sshsftp/errors"
	"github.com/Lvzhenqian/sshsftp/log"
	"github.com/Lvzhenqian/sshsftp/protocol"
)

// SftpController opens the SFTP session of a client on demand and runs
// file operations on it.
//
// Disconnect asks the engine to close the session, but whether the channel
// is released before the transport goes away depends on the engine.
type SftpController struct {
	proto   protocol.Protocol
	bus     *EventBus
	machine *ChannelMachine
	logger  *log.ZeroLogger
}

var progressEvents = []string{protocol.EventUploadProgress, protocol.EventDownloadProgress}

func NewSftpController(proto protocol.Protocol, bus *EventBus, machine *ChannelMachine, logger *log.ZeroLogger) *SftpController {
	if logger == nil {
		logger = log.Nop()
	}
	return &SftpController{
		proto:   proto,
		bus:     bus,
		machine: machine,
		logger:  logger,
	}
}

func (s *SftpController) EnsureOpen() error {
	a, owner, open := s.machine.Begin()
	switch {
	case open:
		return nil
	case !owner:
		return a.wait()
	}

	for _, name := range progressEvents {
		s.bus.Subscribe(name)
	}
	if err := s.proto.OpenSftp(); err != nil {
		err = errors.WithKind(errors.KindSftp, err, "open sftp")
		s.machine.FinishWith(a, err, s.unsubscribe)
		return err
	}
	if !s.machine.Finish(a, nil) {
		if closeErr := s.proto.DisconnectSftp(); closeErr != nil {
			s.logger.Debugf("close orphaned sftp: %v", closeErr)
		}
		return errors.WithKind(errors.KindSftp, ErrClosedWhileOpen, "open sftp")
	}
	s.logger.Debug("sftp open")
	return nil
}

func (s *SftpController) unsubscribe() {
	for _, name := range progressEvents {
		s.bus.Unsubscribe(name)
	}
}

// List fails as a whole when any record cannot be decoded.
func (s *SftpController) List(path string) ([]Entry, error) {
	if err := s.EnsureOpen(); err != nil {
		return nil, err
	}
	records, err := s.proto.ListDir(path)
	if err != nil {
		return nil, errors.WithKind(errors.KindSftp, err, "list %s", path)
	}
	entries := make([]Entry, 0, len(records))
	for i, record := range records {
		entry, err := decodeEntry(record)
		if err != nil {
			return nil, errors.WithKind(errors.KindSftp, err, "list %s: record %d", path, i)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func stripControl(r rune) rune {
	if unicode.IsControl(r) {
		return -1
	}
	return r
}

// decodeEntry drops C0, DEL and C1 characters before decoding a record.
func decodeEntry(record string) (Entry, error) {
	var raw protocol.RawEntry
	if err := json.Unmarshal([]byte(strings.Map(stripControl, record)), &raw); err != nil {
		return Entry{}, errors.Wrapf(err, "malformed entry")
	}
	if raw.Filename == "" {
		return Entry{}, errors.New("malformed entry: no filename")
	}
	return entryFromRaw(raw), nil
}

func (s *SftpController) do(op func() error, format string, args ...interface{}) error {
	if err := s.EnsureOpen(); err != nil {
		return err
	}
	return errors.WithKind(errors.KindSftp, op(), format, args...)
}

func (s *SftpController) Rename(oldPath, newPath string) error {
	return s.do(func() error { return s.proto.Rename(oldPath, newPath) }, "rename %s to %s", oldPath, newPath)
}

func (s *SftpController) Mkdir(path string) error {
	return s.do(func() error { return s.proto.Mkdir(path) }, "mkdir %s", path)
}

func (s *SftpController) Remove(path string) error {
	return s.do(func() error { return s.proto.Remove(path) }, "remove %s", path)
}

func (s *SftpController) RemoveDir(path string) error {
	return s.do(func() error { return s.proto.RemoveDir(path) }, "remove dir %s", path)
}

func (s *SftpController) Chmod(path string, mode os.FileMode) error {
	return s.do(func() error { return s.proto.Chmod(path, mode) }, "chmod %s %o", path, uint32(mode))
}

func (s *SftpController) Upload(localPath, remoteDir string) error {
	return s.do(func() error { return s.proto.Upload(localPath, remoteDir) }, "upload %s to %s", localPath, remoteDir)
}

func (s *SftpController) UploadNamed(localPath, remoteDir, name string) error {
	return s.do(func() error { return s.proto.UploadNamed(localPath, remoteDir, name) }, "upload %s to %s/%s", localPath, remoteDir, name)
}

func (s *SftpController) UploadInline(content []byte, remoteDir, name string) error {
	return s.do(func() error { return s.proto.UploadInline(content, remoteDir, name) }, "upload %d bytes to %s/%s", len(content), remoteDir, name)
}

// Download returns the local path written.
func (s *SftpController) Download(remotePath, localDir string) (string, error) {
	if err := s.EnsureOpen(); err != nil {
		return "", err
	}
	local, err := s.proto.Download(remotePath, localDir)
	if err != nil {
		return "", errors.WithKind(errors.KindSftp, err, "download %s", remotePath)
	}
	return local, nil
}

// Disconnect always ends Closed. A failing protocol disconnect is only logged.
func (s *SftpController) Disconnect() {
	s.unsubscribe()
	if err := s.proto.DisconnectSftp(); err != nil {
		s.logger.Debugf("disconnect sftp: %v", err)
	}
	s.machine.Reset()
}

func (s *SftpController) Active() bool {
	return s.machine.State() == Open
}
