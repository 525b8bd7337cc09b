package protocol

import (
	"bytes"
	"io"
	"os"
	"sync"
	"time"

	"github.com/Lvzhenqian/sshsftp/errors"
	"golang.org/x/crypto/ssh"
	terminal "golang.org/x/term"
)

const (
	defaultTermWidth  = 80
	defaultTermHeight = 24
)

type shellChannel struct {
	session *ssh.Session
	stdin   io.WriteCloser

	mu     sync.Mutex
	buf    bytes.Buffer
	notify chan struct{}
	done   chan struct{}
}

// terminalSize follows the local terminal when stdout is one; tty reports
// whether it is.
func terminalSize() (fd, width, height int, tty bool) {
	fd = int(os.Stdout.Fd())
	if !terminal.IsTerminal(fd) {
		return fd, defaultTermWidth, defaultTermHeight, false
	}
	width, height, err := terminal.GetSize(fd)
	if err != nil || width <= 0 || height <= 0 {
		return fd, defaultTermWidth, defaultTermHeight, false
	}
	return fd, width, height, true
}

func (n *Native) OpenShell(pty PtyType) (string, error) {
	if !pty.Valid() {
		return "", errors.Errorf("unknown pty type %q", pty)
	}
	cli, err := n.conn()
	if err != nil {
		return "", err
	}

	n.mu.Lock()
	if n.shell != nil {
		n.mu.Unlock()
		return "", ErrShellOpen
	}
	n.mu.Unlock()

	session, err := cli.NewSession()
	if err != nil {
		return "", errors.Wrapf(err, "open shell session")
	}
	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	fd, width, height, tty := terminalSize()
	if err := session.RequestPty(string(pty), height, width, modes); err != nil {
		session.Close()
		return "", errors.Wrapf(err, "request pty %s", pty)
	}
	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		return "", errors.Wrapf(err, "stdin pipe")
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		return "", errors.Wrapf(err, "stdout pipe")
	}
	if err := session.Shell(); err != nil {
		session.Close()
		return "", errors.Wrapf(err, "start shell")
	}

	sc := &shellChannel{
		session: session,
		stdin:   stdin,
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	n.mu.Lock()
	n.shell = sc
	n.mu.Unlock()
	go n.readShell(sc, stdout)
	if tty {
		go n.followWindow(sc, fd, width, height)
	}

	return sc.collect(n.firstByte, n.settle), nil
}

// readShell emits every chunk as a Shell event and keeps it for the pending
// OpenShell or WriteShell call.
func (n *Native) readShell(sc *shellChannel, stdout io.Reader) {
	defer close(sc.done)
	buf := make([]byte, 4096)
	for {
		i, err := stdout.Read(buf)
		if i > 0 {
			chunk := string(buf[:i])
			sc.append(chunk)
			n.emit(EventShell, chunk)
		}
		if err != nil {
			if err != io.EOF {
				n.logger.Debugf("shell read: %v", err)
			}
			return
		}
	}
}

func (n *Native) WriteShell(data string) (string, error) {
	n.mu.Lock()
	sc := n.shell
	n.mu.Unlock()
	if sc == nil {
		return "", ErrShellClosed
	}

	// output nobody asked for was already delivered as events
	sc.take()
	if _, err := io.WriteString(sc.stdin, data); err != nil {
		return "", errors.Wrapf(err, "write shell")
	}
	return sc.collect(n.firstByte, n.settle), nil
}

func (n *Native) CloseShell() error {
	n.mu.Lock()
	sc := n.shell
	n.shell = nil
	n.mu.Unlock()
	if sc == nil {
		return ErrShellClosed
	}

	sc.stdin.Close()
	if err := sc.session.Close(); err != nil && err != io.EOF {
		return errors.Wrapf(err, "close shell")
	}
	return nil
}

func (s *shellChannel) append(chunk string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.WriteString(chunk)
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// take empties the buffer and drops the pending notification with it.
func (s *shellChannel) take() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.buf.String()
	s.buf.Reset()
	select {
	case <-s.notify:
	default:
	}
	return out
}

func (s *shellChannel) pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Len() > 0
}

// collect waits up to firstByte for output to start, then returns once no
// new output arrived for settle, or the shell ended.
func (s *shellChannel) collect(firstByte, settle time.Duration) string {
	if !s.pending() {
		first := time.NewTimer(firstByte)
		select {
		case <-s.notify:
			first.Stop()
		case <-s.done:
			first.Stop()
			return s.take()
		case <-first.C:
			return s.take()
		}
	}

	for {
		quiet := time.NewTimer(settle)
		select {
		case <-s.notify:
			quiet.Stop()
		case <-s.done:
			quiet.Stop()
			return s.take()
		case <-quiet.C:
			return s.take()
		}
	}
}
