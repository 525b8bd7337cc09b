// Package ssh is the client core: one Client per authenticated connection,
// with a lazily opened shell, a lazily opened SFTP session and counted,
// cancellable transfers on top of a protocol.Protocol engine.
//
// Every operation returns a future and accepts callbacks; both see the same
// outcome exactly once. Operations run on a bounded per-client worker pool,
// so starting one blocks while all workers are busy.
package ssh

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/Lvzhenqian/sshsftp/configs"
	"github.com/Lvzhenqian/sshsftp/errors"
	"github.com/Lvzhenqian/sshsftp/fn"
	"github.com/Lvzhenqian/sshsftp/groupsync"
	"github.com/Lvzhenqian/sshsftp/log"
	"github.com/Lvzhenqian/sshsftp/protocol"
	"github.com/google/uuid"
)

type Client struct {
	id         string
	endpoint   protocol.Endpoint
	credential protocol.Credential

	proto     protocol.Protocol
	bus       *EventBus
	state     *SessionState
	shell     *ShellController
	sftp      *SftpController
	transfers *TransferManager
	pool      *groupsync.Pool
	logger    *log.ZeroLogger
	manager   *configs.ConfigManager[configs.Settings]

	closed    int32
	closeOnce sync.Once
	closing   *fn.Future[fn.Void]
}

func newClient(endpoint protocol.Endpoint, credential protocol.Credential, o *options) (*Client, error) {
	if err := o.settings.Validate(); err != nil {
		return nil, errors.Wrapf(err, "client settings")
	}
	if endpoint.Port == 0 {
		endpoint.Port = o.settings.Port
	}
	pool, err := groupsync.NewPool(groupsync.WithLimit(o.settings.Workers))
	if err != nil {
		return nil, errors.Wrapf(err, "worker pool")
	}

	id := uuid.NewString()
	logger := o.logger.With("client", id)
	proto := o.factory(id, o.emitter, o.settings, logger)
	bus := NewEventBus(id, o.emitter)
	state := new(SessionState)
	c := &Client{
		id:         id,
		endpoint:   endpoint,
		credential: credential,
		proto:      proto,
		bus:        bus,
		state:      state,
		shell:      NewShellController(proto, bus, &state.Shell, logger),
		sftp:       NewSftpController(proto, bus, &state.Sftp, logger),
		transfers:  NewTransferManager(proto),
		pool:       pool,
		logger:     logger,
		manager:    o.manager,
	}
	if pty, err := protocol.ParsePtyType(o.settings.DefaultPty); err == nil {
		c.shell.SetDefaultPty(pty)
	}
	return c, nil
}

// Connect authenticates a new client. The future fails with a KindAuth
// error when the host is unreachable or the credential is rejected.
func Connect(endpoint protocol.Endpoint, credential protocol.Credential, opts ...Option) *fn.Future[*Client] {
	o := newOptions(opts)
	c, err := newClient(endpoint, credential, o)
	if err != nil {
		return fn.Resolved[*Client](nil, errors.WithKind(errors.KindAuth, err, "connect %s", endpoint), o.callbacks...)
	}
	return fn.Submit(c.pool.Go, func() (*Client, error) {
		if err := c.proto.Authenticate(c.endpoint, c.credential); err != nil {
			c.pool.Release()
			atomic.StoreInt32(&c.closed, 1)
			return nil, errors.WithKind(errors.KindAuth, err, "authenticate %s", c.endpoint)
		}
		if c.manager != nil {
			c.manager.AddModule(c)
		}
		c.logger.Infof("connected %s", c.endpoint)
		return c, nil
	}, o.callbacks...)
}

// ConnectWithPassword uses the configured default port when port is 0.
func ConnectWithPassword(host string, port int, username, password string, opts ...Option) *fn.Future[*Client] {
	return Connect(protocol.Endpoint{Host: host, Port: port, Username: username}, protocol.Password(password), opts...)
}

// ConnectWithKey accepts PEM material or a key file path as privateKey.
func ConnectWithKey(host string, port int, username, privateKey, passphrase string, opts ...Option) *fn.Future[*Client] {
	credential := protocol.KeyPair{PrivateKey: privateKey, Passphrase: passphrase}
	return Connect(protocol.Endpoint{Host: host, Port: port, Username: username}, credential, opts...)
}

func (c *Client) ID() string {
	return c.id
}

func (c *Client) Endpoint() protocol.Endpoint {
	return c.endpoint
}

// On sets the handler for an event name, replacing the previous one.
// Shell events arrive while the shell is open, progress events while the
// SFTP session is.
func (c *Client) On(name string, handler Handler) {
	c.bus.On(name, handler)
}

func (c *Client) ShellActive() bool {
	return c.state.ShellActive()
}

func (c *Client) SftpActive() bool {
	return c.state.SftpActive()
}

func (c *Client) Uploads() int64 {
	return c.transfers.Uploads()
}

func (c *Client) Downloads() int64 {
	return c.transfers.Downloads()
}

func (c *Client) isClosed() bool {
	return atomic.LoadInt32(&c.closed) == 1
}

// submit runs job on the pool. Once the client is disconnected the future
// fails with ErrClientClosed tagged with kind.
func submit[T any](c *Client, kind errors.Kind, job func() (T, error), callbacks []fn.Callback[T]) *fn.Future[T] {
	var zero T
	if c.isClosed() {
		return fn.Resolved(zero, errors.WithKind(kind, ErrClientClosed, "client %s", c.id), callbacks...)
	}
	return fn.Submit(func(task func()) error {
		if err := c.pool.Go(task); err != nil {
			return errors.WithKind(kind, ErrClientClosed, "client %s", c.id)
		}
		return nil
	}, job, callbacks...)
}

// transfer counts the job with begin until it completes or fails to start.
func transfer[T any](c *Client, begin func() func(), job func() (T, error), callbacks []fn.Callback[T]) *fn.Future[T] {
	release := begin()
	return submit(c, errors.KindSftp, func() (T, error) {
		defer release()
		return job()
	}, append([]fn.Callback[T]{func(T, error) { release() }}, callbacks...))
}

func (c *Client) Execute(command string, callbacks ...fn.Callback[string]) *fn.Future[string] {
	return submit(c, errors.KindExec, func() (string, error) {
		out, err := c.proto.RunCommand(command)
		if err != nil {
			return "", errors.WithKind(errors.KindExec, err, "execute %q", command)
		}
		return out, nil
	}, callbacks)
}

// StartShell returns the banner of a newly opened shell, or "" when the
// shell was already open.
func (c *Client) StartShell(pty protocol.PtyType, callbacks ...fn.Callback[string]) *fn.Future[string] {
	return submit(c, errors.KindShell, func() (string, error) {
		return c.shell.EnsureOpen(pty)
	}, callbacks)
}

func (c *Client) WriteToShell(command string, callbacks ...fn.Callback[string]) *fn.Future[string] {
	return submit(c, errors.KindShell, func() (string, error) {
		return c.shell.Write(command)
	}, callbacks)
}

// CloseShell runs off the pool so it is never queued behind busy workers.
func (c *Client) CloseShell(callbacks ...fn.Callback[fn.Void]) *fn.Future[fn.Void] {
	return fn.Go(func() (fn.Void, error) {
		c.shell.Close()
		return fn.Void{}, nil
	}, callbacks...)
}

func (c *Client) ConnectSFTP(callbacks ...fn.Callback[fn.Void]) *fn.Future[fn.Void] {
	return submit(c, errors.KindSftp, func() (fn.Void, error) {
		return fn.Void{}, c.sftp.EnsureOpen()
	}, callbacks)
}

func (c *Client) SftpList(path string, callbacks ...fn.Callback[[]Entry]) *fn.Future[[]Entry] {
	return submit(c, errors.KindSftp, func() ([]Entry, error) {
		return c.sftp.List(path)
	}, callbacks)
}

func (c *Client) sftpVoid(op func() error, callbacks []fn.Callback[fn.Void]) *fn.Future[fn.Void] {
	return submit(c, errors.KindSftp, func() (fn.Void, error) {
		return fn.Void{}, op()
	}, callbacks)
}

func (c *Client) SftpRename(oldPath, newPath string, callbacks ...fn.Callback[fn.Void]) *fn.Future[fn.Void] {
	return c.sftpVoid(func() error { return c.sftp.Rename(oldPath, newPath) }, callbacks)
}

func (c *Client) SftpMkdir(path string, callbacks ...fn.Callback[fn.Void]) *fn.Future[fn.Void] {
	return c.sftpVoid(func() error { return c.sftp.Mkdir(path) }, callbacks)
}

func (c *Client) SftpRemove(path string, callbacks ...fn.Callback[fn.Void]) *fn.Future[fn.Void] {
	return c.sftpVoid(func() error { return c.sftp.Remove(path) }, callbacks)
}

func (c *Client) SftpRemoveDir(path string, callbacks ...fn.Callback[fn.Void]) *fn.Future[fn.Void] {
	return c.sftpVoid(func() error { return c.sftp.RemoveDir(path) }, callbacks)
}

func (c *Client) SftpChmod(path string, mode os.FileMode, callbacks ...fn.Callback[fn.Void]) *fn.Future[fn.Void] {
	return c.sftpVoid(func() error { return c.sftp.Chmod(path, mode) }, callbacks)
}

func (c *Client) SftpUpload(localPath, remoteDir string, callbacks ...fn.Callback[fn.Void]) *fn.Future[fn.Void] {
	return transfer(c, c.transfers.BeginUpload, func() (fn.Void, error) {
		return fn.Void{}, c.sftp.Upload(localPath, remoteDir)
	}, callbacks)
}

func (c *Client) SftpUploadNamed(localPath, remoteDir, name string, callbacks ...fn.Callback[fn.Void]) *fn.Future[fn.Void] {
	return transfer(c, c.transfers.BeginUpload, func() (fn.Void, error) {
		return fn.Void{}, c.sftp.UploadNamed(localPath, remoteDir, name)
	}, callbacks)
}

func (c *Client) SftpUploadInline(content []byte, remoteDir, name string, callbacks ...fn.Callback[fn.Void]) *fn.Future[fn.Void] {
	return transfer(c, c.transfers.BeginUpload, func() (fn.Void, error) {
		return fn.Void{}, c.sftp.UploadInline(content, remoteDir, name)
	}, callbacks)
}

// SftpDownload resolves to the local path written under localDir.
func (c *Client) SftpDownload(remotePath, localDir string, callbacks ...fn.Callback[string]) *fn.Future[string] {
	return transfer(c, c.transfers.BeginDownload, func() (string, error) {
		return c.sftp.Download(remotePath, localDir)
	}, callbacks)
}

// SftpCancelUpload resolves to whether a cancel reached the engine. With no
// upload in flight it is a no-op resolving to false. The cancelled uploads
// still complete, usually with context.Canceled.
func (c *Client) SftpCancelUpload(callbacks ...fn.Callback[bool]) *fn.Future[bool] {
	return c.cancel(c.transfers.CancelUpload, callbacks)
}

func (c *Client) SftpCancelDownload(callbacks ...fn.Callback[bool]) *fn.Future[bool] {
	return c.cancel(c.transfers.CancelDownload, callbacks)
}

func (c *Client) cancel(cancel func() error, callbacks []fn.Callback[bool]) *fn.Future[bool] {
	err := cancel()
	if errors.IsKind(err, errors.KindCancelNoop) {
		c.logger.Debugf("%v", err)
		return fn.Resolved(false, nil, callbacks...)
	}
	return fn.Resolved(err == nil, err, callbacks...)
}

// DisconnectSFTP runs off the pool like CloseShell.
func (c *Client) DisconnectSFTP(callbacks ...fn.Callback[fn.Void]) *fn.Future[fn.Void] {
	return fn.Go(func() (fn.Void, error) {
		c.sftp.Disconnect()
		return fn.Void{}, nil
	}, callbacks...)
}

// Disconnect closes the shell and the SFTP session when open or opening, then the
// transport, then releases the worker pool. Later operations fail with
// ErrClientClosed; later Disconnect calls share the first one's outcome.
func (c *Client) Disconnect(callbacks ...fn.Callback[fn.Void]) *fn.Future[fn.Void] {
	c.closeOnce.Do(func() {
		atomic.StoreInt32(&c.closed, 1)
		c.closing = fn.Go(func() (fn.Void, error) {
			return fn.Void{}, c.disconnect()
		})
	})
	f := fn.NewFuture(callbacks...)
	go func() {
		f.Complete(c.closing.Wait())
	}()
	return f
}

func (c *Client) disconnect() error {
	if c.manager != nil {
		c.manager.RemoveModule(c.Name())
	}
	// an Opening channel is reset too, so its pending open ends orphaned
	if c.state.Shell.State() != Closed {
		c.shell.Close()
	}
	if c.state.Sftp.State() != Closed {
		c.sftp.Disconnect()
	}
	err := c.proto.Disconnect()
	c.bus.UnsubscribeAll()
	c.pool.Release()
	if err != nil {
		return errors.Wrapf(err, "disconnect %s", c.endpoint)
	}
	c.logger.Infof("disconnected %s", c.endpoint)
	return nil
}

// Name and Watch follow settings reloads from WithConfigManager.
func (c *Client) Name() string {
	return "client/" + c.id
}

func (c *Client) Watch(update <-chan configs.Settings) {
	for s := range update {
		if s.Log.Level != "" && s.Log.Level != c.logger.GetLevel() {
			if err := c.logger.SetLevel(s.Log.Level); err != nil {
				c.logger.WithErrorf(err, "reload log level %q", s.Log.Level)
			}
		}
		if pty, err := protocol.ParsePtyType(s.DefaultPty); err == nil {
			c.shell.SetDefaultPty(pty)
		}
	}
}
