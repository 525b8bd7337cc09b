package ssh

import (
	"os"
	"time"

	"github.com/Lvzhenqian/sshsftp/errors"
	"github.com/Lvzhenqian/sshsftp/protocol"
)

var (
	// ErrClientClosed is returned by operations issued after Disconnect.
	ErrClientClosed = errors.New("client is disconnected")
	// ErrNothingInFlight is the KindCancelNoop cause of a cancel with no
	// transfer of that direction running.
	ErrNothingInFlight = errors.New("no transfer in flight")
	ErrClosedWhileOpen = errors.New("channel closed while opening")
)

// Entry is one decoded directory listing record.
type Entry struct {
	Name        string
	IsDirectory bool
	ModifiedAt  time.Time
	AccessedAt  time.Time
	Size        int64
	OwnerUID    uint32
	OwnerGID    uint32
	// Flags are the raw SFTP permission and type bits.
	Flags uint32
}

func (e Entry) Mode() os.FileMode {
	return os.FileMode(e.Flags & 0777)
}

func entryFromRaw(raw protocol.RawEntry) Entry {
	return Entry{
		Name:        raw.Filename,
		IsDirectory: raw.IsDirectory,
		ModifiedAt:  raw.ModificationDate,
		AccessedAt:  raw.LastAccess,
		Size:        raw.FileSize,
		OwnerUID:    raw.OwnerUserID,
		OwnerGID:    raw.OwnerGroupID,
		Flags:       raw.Flags,
	}
}

// Handler receives the events a client registered for with On.
type Handler func(ev protocol.Event)
