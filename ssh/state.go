package ssh

import (
	"sync"
)

type ChannelState int32

const (
	Closed ChannelState = iota
	Opening
	Open
)

func (s ChannelState) String() string {
	switch s {
	case Opening:
		return "opening"
	case Open:
		return "open"
	default:
		return "closed"
	}
}

// attempt is one in-flight open that other callers can wait on.
type attempt struct {
	done chan struct{}
	err  error
}

func (a *attempt) wait() error {
	<-a.done
	return a.err
}

// ChannelMachine is the Closed -> Opening -> Open -> Closed lifecycle of one
// channel. Only the caller that moved it to Opening performs the open.
type ChannelMachine struct {
	mu       sync.Mutex
	state    ChannelState
	inflight *attempt
}

// Begin reports open when the channel is already Open. Otherwise it moves
// to Opening and returns the new attempt with owner set, or returns the
// attempt another caller is running. An owner must call Finish.
func (m *ChannelMachine) Begin() (a *attempt, owner, open bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case Open:
		return nil, false, true
	case Opening:
		return m.inflight, false, false
	}
	m.state = Opening
	m.inflight = &attempt{done: make(chan struct{})}
	return m.inflight, true, false
}

// Finish ends a: Open on nil err, Closed otherwise. It returns false when
// Reset ran meanwhile; the machine then keeps whatever state it has now.
func (m *ChannelMachine) Finish(a *attempt, err error) bool {
	return m.FinishWith(a, err, nil)
}

// FinishWith is Finish with a cleanup that runs under the machine lock, and only
// while a still owns the machine, so it cannot undo work of a later attempt.
func (m *ChannelMachine) FinishWith(a *attempt, err error, cleanup func()) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer close(a.done)
	if m.inflight != a {
		a.err = ErrClosedWhileOpen
		return false
	}
	if cleanup != nil {
		cleanup()
	}
	m.inflight = nil
	a.err = err
	if err != nil {
		m.state = Closed
	} else {
		m.state = Open
	}
	return true
}

// Reset moves to Closed from any state, orphaning a running attempt.
func (m *ChannelMachine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = Closed
	m.inflight = nil
}

func (m *ChannelMachine) State() ChannelState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SessionState is the pair of channel machines of one client.
type SessionState struct {
	Shell ChannelMachine
	Sftp  ChannelMachine
}

func (s *SessionState) ShellActive() bool {
	return s.Shell.State() == Open
}

func (s *SessionState) SftpActive() bool {
	return s.Sftp.State() == Open
}
