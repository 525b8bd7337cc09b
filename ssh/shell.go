package ssh

import (
	"sync"

	"github.com/Lvzhenqian/sshsftp/errors"
	"github.com/Lvzhenqian/sshsftp/log"
	"github.com/Lvzhenqian/sshsftp/protocol"
)

// ShellController opens the single shell of a client on demand. Writes
// are not serialized; callers must not interleave them.
type ShellController struct {
	proto   protocol.Protocol
	bus     *EventBus
	machine *ChannelMachine
	logger  *log.ZeroLogger

	mu         sync.Mutex
	defaultPty protocol.PtyType
}

func NewShellController(proto protocol.Protocol, bus *EventBus, machine *ChannelMachine, logger *log.ZeroLogger) *ShellController {
	if logger == nil {
		logger = log.Nop()
	}
	return &ShellController{
		proto:      proto,
		bus:        bus,
		machine:    machine,
		logger:     logger,
		defaultPty: protocol.PtyVanilla,
	}
}

// SetDefaultPty sets the terminal type Write uses when it opens the shell.
func (s *ShellController) SetDefaultPty(pty protocol.PtyType) {
	s.mu.Lock()
	s.defaultPty = pty
	s.mu.Unlock()
}

func (s *ShellController) DefaultPty() protocol.PtyType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.defaultPty
}

// EnsureOpen opens the shell unless it is open already, in which case it
// returns "" without touching the protocol. A caller arriving while another
// opens waits for that open and also gets "".
func (s *ShellController) EnsureOpen(pty protocol.PtyType) (string, error) {
	if !pty.Valid() {
		return "", errors.WithKind(errors.KindShell, errors.Errorf("unknown pty type %q", pty), "start shell")
	}
	a, owner, open := s.machine.Begin()
	switch {
	case open:
		return "", nil
	case !owner:
		return "", a.wait()
	}

	s.bus.Subscribe(protocol.EventShell)
	banner, err := s.proto.OpenShell(pty)
	if err != nil {
		err = errors.WithKind(errors.KindShell, err, "open %s shell", pty)
		s.machine.FinishWith(a, err, func() { s.bus.Unsubscribe(protocol.EventShell) })
		return "", err
	}
	if !s.machine.Finish(a, nil) {
		// Close ran while the protocol was opening
		if closeErr := s.proto.CloseShell(); closeErr != nil {
			s.logger.Debugf("close orphaned shell: %v", closeErr)
		}
		return "", errors.WithKind(errors.KindShell, ErrClosedWhileOpen, "open %s shell", pty)
	}
	s.logger.Debugf("shell open (%s)", pty)

	if banner != "" {
		banner += "\n"
	}
	return banner, nil
}

// Write opens the shell with the default pty if needed, then sends command
// and returns the output it produced.
func (s *ShellController) Write(command string) (string, error) {
	if _, err := s.EnsureOpen(s.DefaultPty()); err != nil {
		return "", err
	}
	out, err := s.proto.WriteShell(command)
	if err != nil {
		return "", errors.WithKind(errors.KindShell, err, "write shell")
	}
	return out, nil
}

// Close always ends Closed. A failing protocol close is only logged.
func (s *ShellController) Close() {
	s.bus.Unsubscribe(protocol.EventShell)
	if err := s.proto.CloseShell(); err != nil {
		s.logger.Debugf("close shell: %v", err)
	}
	s.machine.Reset()
}

func (s *ShellController) Active() bool {
	return s.machine.State() == Open
}
