package protocol

import (
	"bytes"
	"strings"
	"sync"
	"time"

	"github.com/Lvzhenqian/sshsftp/configs"
	"github.com/Lvzhenqian/sshsftp/errors"
	"github.com/Lvzhenqian/sshsftp/log"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

var (
	ErrNotConnected = errors.New("not connected")
	ErrShellClosed  = errors.New("shell is not open")
	ErrShellOpen    = errors.New("shell already open")
	ErrSftpClosed   = errors.New("sftp is not open")
)

type Option func(*Native)

// Native drives one SSH connection for one client identity.
type Native struct {
	clientID string
	emitter  *Emitter
	logger   *log.ZeroLogger

	connectTimeout time.Duration
	knownHosts     string
	pb             bool
	firstByte      time.Duration
	settle         time.Duration

	mu     sync.Mutex
	client *ssh.Client
	shell  *shellChannel
	sftp   *sftp.Client

	uploads   *transferSet
	downloads *transferSet
}

var _ Protocol = (*Native)(nil)

func NewNative(clientID string, emitter *Emitter, option ...Option) *Native {
	defaults := configs.DefaultSettings()
	if emitter == nil {
		emitter = DefaultEmitter
	}
	n := &Native{
		clientID:       clientID,
		emitter:        emitter,
		logger:         log.Nop(),
		connectTimeout: defaults.ConnectTimeout,
		firstByte:      defaults.ShellFirstByte,
		settle:         defaults.ShellSettle,
		uploads:        newTransferSet(),
		downloads:      newTransferSet(),
	}
	for _, opt := range option {
		opt(n)
	}
	return n
}

func WithLogger(logger *log.ZeroLogger) Option {
	return func(n *Native) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// WithSettings applies connect timeout, host key file, progress bars and
// shell timing from s.
func WithSettings(s configs.Settings) Option {
	return func(n *Native) {
		n.connectTimeout = s.ConnectTimeout
		n.knownHosts = s.KnownHosts
		n.pb = s.ProgressBar
		if s.ShellFirstByte > 0 {
			n.firstByte = s.ShellFirstByte
		}
		if s.ShellSettle > 0 {
			n.settle = s.ShellSettle
		}
	}
}

func WithProgressBar(show bool) Option {
	return func(n *Native) {
		n.pb = show
	}
}

// WithShellTiming sets how long a shell read waits for the first byte and
// how long output must stay quiet before the read returns.
func WithShellTiming(firstByte, settle time.Duration) Option {
	return func(n *Native) {
		n.firstByte = firstByte
		n.settle = settle
	}
}

func (n *Native) ClientID() string {
	return n.clientID
}

func (n *Native) emit(name string, data interface{}) {
	n.emitter.Emit(Event{ClientID: n.clientID, Name: name, Data: data})
}

func (n *Native) clientConfig(endpoint Endpoint, credential Credential) (*ssh.ClientConfig, error) {
	auth, err := authMethods(credential)
	if err != nil {
		return nil, err
	}
	hostKey := ssh.InsecureIgnoreHostKey()
	if n.knownHosts != "" {
		hostKey, err = knownhosts.New(localRealPath(n.knownHosts))
		if err != nil {
			return nil, errors.Wrapf(err, "load known hosts %s", n.knownHosts)
		}
	}
	return &ssh.ClientConfig{
		User:            endpoint.Username,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         n.connectTimeout,
	}, nil
}

func (n *Native) Authenticate(endpoint Endpoint, credential Credential) error {
	clientCfg, cfgErr := n.clientConfig(endpoint, credential)
	if cfgErr != nil {
		return cfgErr
	}

	start := time.Now()
	cli, err := ssh.Dial("tcp", endpoint.Addr(), clientCfg)
	if err != nil {
		return errors.Wrapf(err, "connect %s", endpoint)
	}
	n.logger.TimeRecord(start, "connected %s", endpoint)

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.client != nil {
		n.client.Close()
	}
	n.client = cli
	return nil
}

func (n *Native) conn() (*ssh.Client, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.client == nil {
		return nil, ErrNotConnected
	}
	return n.client, nil
}

// RunCommand runs command on its own session and returns its stdout.
func (n *Native) RunCommand(command string) (string, error) {
	cli, err := n.conn()
	if err != nil {
		return "", err
	}
	session, err := cli.NewSession()
	if err != nil {
		return "", errors.Wrapf(err, "open session")
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr
	if err := session.Run(command); err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			return stdout.String(), errors.Wrapf(err, "command exited %d: %s", exitErr.ExitStatus(), strings.TrimSpace(stderr.String()))
		}
		return stdout.String(), errors.Wrapf(err, "run %q", command)
	}
	return stdout.String(), nil
}

// Disconnect closes the shell, the SFTP session and the transport, and
// aborts transfers still running.
func (n *Native) Disconnect() error {
	n.uploads.cancelAll()
	n.downloads.cancelAll()
	if err := n.CloseShell(); err != nil && err != ErrShellClosed {
		n.logger.Debugf("close shell on disconnect: %v", err)
	}
	if err := n.DisconnectSftp(); err != nil && err != ErrSftpClosed {
		n.logger.Debugf("close sftp on disconnect: %v", err)
	}

	n.mu.Lock()
	cli := n.client
	n.client = nil
	n.mu.Unlock()
	if cli == nil {
		return nil
	}
	return cli.Close()
}
