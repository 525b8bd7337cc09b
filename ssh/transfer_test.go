package ssh

import (
	"sync"
	"testing"

	"github.com/Lvzhenqian/sshsftp/errors"
)

func TestTransferManager_ReleaseOnce(t *testing.T) {
	tm := NewTransferManager(newStub())

	release := tm.BeginUpload()
	tm.BeginUpload()
	release()
	release()
	if tm.Uploads() != 1 {
		t.Errorf("release must count once, got %d", tm.Uploads())
	}
}

func TestTransferManager_Clamp(t *testing.T) {
	var counter int64
	release(&counter)
	if counter != 0 {
		t.Errorf("counter went below zero: %d", counter)
	}
}

func TestTransferManager_Concurrent(t *testing.T) {
	tm := NewTransferManager(newStub())
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := tm.BeginDownload()
			defer release()
			if tm.Downloads() < 1 {
				t.Error("in-flight download not counted")
			}
		}()
	}
	wg.Wait()
	if tm.Downloads() != 0 {
		t.Errorf("expected 0 downloads, got %d", tm.Downloads())
	}
}

func TestTransferManager_Cancel(t *testing.T) {
	stub := newStub()
	tm := NewTransferManager(stub)

	if err := tm.CancelUpload(); !errors.IsKind(err, errors.KindCancelNoop) {
		t.Errorf("expected cancel-noop, got %v", err)
	}
	if len(stub.Calls()) != 0 {
		t.Fatalf("noop cancel reached the protocol: %v", stub.Calls())
	}

	done := tm.BeginUpload()
	defer done()
	if err := tm.CancelUpload(); err != nil {
		t.Fatal(err)
	}
	if err := tm.CancelDownload(); !errors.IsKind(err, errors.KindCancelNoop) {
		t.Errorf("download cancel must stay a noop, got %v", err)
	}
	if calls := stub.Calls(); len(calls) != 1 || calls[0] != "CancelUpload" {
		t.Errorf("expected one CancelUpload, got %v", calls)
	}
}
