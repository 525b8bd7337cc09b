// Package sshtest runs an in-process SSH server for tests. It accepts one
// password and any number of public keys, answers "echo" and "fail" exec
// requests, echoes shell input after a banner and serves SFTP from memory.
package sshtest

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

const (
	User     = "tester"
	Password = "secret"
	Banner   = "welcome\r\n"
)

type Server struct {
	Host string
	Port int

	listener   net.Listener
	config     *ssh.ServerConfig
	handlers   sftp.Handlers
	authorized map[string]bool

	mu    sync.Mutex
	conns []net.Conn
	wg    sync.WaitGroup
}

// NewSigner returns a fresh ed25519 signer, usable as host or client key.
func NewSigner(t testing.TB) ssh.Signer {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	return signer
}

// Start listens on 127.0.0.1:0 and stops the server when the test ends.
func Start(t testing.TB, hostKey ssh.Signer, authorized ...ssh.PublicKey) *Server {
	t.Helper()

	s := &Server{
		handlers:   sftp.InMemHandler(),
		authorized: make(map[string]bool),
	}
	for _, key := range authorized {
		s.authorized[ssh.FingerprintSHA256(key)] = true
	}
	s.config = &ssh.ServerConfig{
		PasswordCallback: func(conn ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
			if conn.User() == User && string(password) == Password {
				return &ssh.Permissions{}, nil
			}
			return nil, fmt.Errorf("password rejected for %s", conn.User())
		},
		PublicKeyCallback: func(conn ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if s.authorized[ssh.FingerprintSHA256(key)] {
				return &ssh.Permissions{}, nil
			}
			return nil, fmt.Errorf("unknown public key")
		},
	}
	s.config.AddHostKey(hostKey)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s.listener = listener
	host, port, _ := net.SplitHostPort(listener.Addr().String())
	s.Host = host
	s.Port, _ = strconv.Atoi(port)

	s.wg.Add(1)
	go s.serve()
	t.Cleanup(s.Close)
	return s
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()
		go s.handleConn(conn)
	}
}

func (s *Server) Close() {
	s.listener.Close()
	s.mu.Lock()
	for _, c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Server) handleConn(netConn net.Conn) {
	sshConn, chans, reqs, err := ssh.NewServerConn(netConn, s.config)
	if err != nil {
		netConn.Close()
		return
	}
	defer sshConn.Close()
	go ssh.DiscardRequests(reqs)

	for newChan := range chans {
		if newChan.ChannelType() != "session" {
			newChan.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		ch, requests, err := newChan.Accept()
		if err != nil {
			continue
		}
		go s.handleSession(ch, requests)
	}
}

func (s *Server) handleSession(ch ssh.Channel, requests <-chan *ssh.Request) {
	for req := range requests {
		switch req.Type {
		case "pty-req", "env", "window-change":
			reply(req, true)
		case "exec":
			var payload struct{ Command string }
			if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
				reply(req, false)
				continue
			}
			reply(req, true)
			go runCommand(ch, payload.Command)
		case "shell":
			reply(req, true)
			go func() {
				defer ch.Close()
				io.WriteString(ch, Banner)
				io.Copy(ch, ch)
			}()
		case "subsystem":
			var payload struct{ Name string }
			if err := ssh.Unmarshal(req.Payload, &payload); err != nil || payload.Name != "sftp" {
				reply(req, false)
				continue
			}
			reply(req, true)
			go func() {
				defer ch.Close()
				server := sftp.NewRequestServer(ch, s.handlers)
				server.Serve()
				server.Close()
			}()
		default:
			reply(req, false)
		}
	}
}

func reply(req *ssh.Request, ok bool) {
	if req.WantReply {
		req.Reply(ok, nil)
	}
}

// runCommand understands "echo <text>" and "fail", which exits 3.
func runCommand(ch ssh.Channel, command string) {
	defer ch.Close()
	status := 0
	switch {
	case strings.HasPrefix(command, "echo "):
		io.WriteString(ch, strings.TrimPrefix(command, "echo ")+"\n")
	case command == "fail":
		io.WriteString(ch.Stderr(), "boom\n")
		status = 3
	default:
		io.WriteString(ch.Stderr(), "unknown command: "+command+"\n")
		status = 127
	}
	ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{uint32(status)}))
}
