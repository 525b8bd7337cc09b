package ssh

import (
	stderrors "errors"
	"testing"
)

func TestChannelMachine(t *testing.T) {
	var m ChannelMachine
	if m.State() != Closed {
		t.Fatalf("zero machine must be closed, got %s", m.State())
	}

	a, owner, open := m.Begin()
	if !owner || open || m.State() != Opening {
		t.Fatalf("first Begin must own the open, state %s", m.State())
	}
	waiter, owner2, _ := m.Begin()
	if owner2 || waiter != a {
		t.Fatalf("second Begin must wait on the running attempt")
	}

	failure := stderrors.New("refused")
	if !m.Finish(a, failure) {
		t.Fatal("finish must apply")
	}
	if m.State() != Closed || waiter.wait() != failure {
		t.Errorf("failed open must close and reach waiters, state %s", m.State())
	}

	a, _, _ = m.Begin()
	m.Finish(a, nil)
	if _, _, open := m.Begin(); !open || m.State() != Open {
		t.Errorf("expected open, got %s", m.State())
	}

	m.Reset()
	if m.State() != Closed {
		t.Errorf("reset must close, got %s", m.State())
	}
}

func TestChannelMachine_ResetWhileOpening(t *testing.T) {
	var m ChannelMachine
	stale, _, _ := m.Begin()
	m.Reset()

	fresh, owner, _ := m.Begin()
	if !owner {
		t.Fatal("Begin after Reset must own a new attempt")
	}
	if m.Finish(stale, nil) {
		t.Error("orphaned attempt must not apply")
	}
	if stale.wait() != ErrClosedWhileOpen {
		t.Errorf("orphaned attempt waiters must see ErrClosedWhileOpen")
	}
	if m.State() != Opening {
		t.Errorf("orphan must not touch the new attempt, state %s", m.State())
	}
	if !m.Finish(fresh, nil) || m.State() != Open {
		t.Errorf("expected open, got %s", m.State())
	}
}

func TestChannelMachine_FinishWithCleanup(t *testing.T) {
	var m ChannelMachine
	cleaned := 0
	a, _, _ := m.Begin()
	if !m.FinishWith(a, stderrors.New("refused"), func() { cleaned++ }) || cleaned != 1 {
		t.Fatalf("owner cleanup must run once, ran %d", cleaned)
	}

	stale, _, _ := m.Begin()
	m.Reset()
	fresh, _, _ := m.Begin()
	if m.FinishWith(stale, stderrors.New("refused"), func() { cleaned++ }) {
		t.Error("orphaned attempt must not apply")
	}
	if cleaned != 1 {
		t.Error("orphaned attempt must not run its cleanup")
	}
	m.Finish(fresh, nil)
}

func TestSessionState(t *testing.T) {
	var s SessionState
	a, _, _ := s.Shell.Begin()
	if s.ShellActive() {
		t.Error("opening is not active")
	}
	s.Shell.Finish(a, nil)
	if !s.ShellActive() || s.SftpActive() {
		t.Error("shell and sftp must be independent")
	}
}
