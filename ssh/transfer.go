package ssh

import (
	"sync"
	"sync/atomic"

	"github.com/Lvzhenqian/sshsftp/errors"
	"github.com/Lvzhenqian/sshsftp/protocol"
)

// TransferManager counts in-flight transfers per direction so that cancels
// reach the protocol only when something can be cancelled.
type TransferManager struct {
	proto     protocol.Protocol
	uploads   int64
	downloads int64
}

func NewTransferManager(proto protocol.Protocol) *TransferManager {
	return &TransferManager{proto: proto}
}

// BeginUpload counts one upload and returns the function that uncounts it.
// Calling that function more than once has no further effect.
func (t *TransferManager) BeginUpload() func() {
	return begin(&t.uploads)
}

func (t *TransferManager) BeginDownload() func() {
	return begin(&t.downloads)
}

func begin(counter *int64) func() {
	atomic.AddInt64(counter, 1)
	var once sync.Once
	return func() {
		once.Do(func() { release(counter) })
	}
}

// release decrements without going below zero.
func release(counter *int64) {
	for {
		current := atomic.LoadInt64(counter)
		if current <= 0 {
			return
		}
		if atomic.CompareAndSwapInt64(counter, current, current-1) {
			return
		}
	}
}

func (t *TransferManager) Uploads() int64 {
	return atomic.LoadInt64(&t.uploads)
}

func (t *TransferManager) Downloads() int64 {
	return atomic.LoadInt64(&t.downloads)
}

// CancelUpload forwards to the protocol only with uploads in flight, and
// returns a KindCancelNoop error otherwise.
func (t *TransferManager) CancelUpload() error {
	if t.Uploads() <= 0 {
		return errors.WithKind(errors.KindCancelNoop, ErrNothingInFlight, "cancel upload")
	}
	t.proto.CancelUpload()
	return nil
}

func (t *TransferManager) CancelDownload() error {
	if t.Downloads() <= 0 {
		return errors.WithKind(errors.KindCancelNoop, ErrNothingInFlight, "cancel download")
	}
	t.proto.CancelDownload()
	return nil
}
