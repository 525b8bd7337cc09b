package protocol

import (
	"encoding/json"
	"os"
	"time"

	"github.com/pkg/sftp"
)

// RawEntry is the record layout ListDir returns, one JSON object per entry.
type RawEntry struct {
	Filename         string    `json:"filename"`
	IsDirectory      bool      `json:"isDirectory"`
	ModificationDate time.Time `json:"modificationDate"`
	LastAccess       time.Time `json:"lastAccess"`
	FileSize         int64     `json:"fileSize"`
	OwnerUserID      uint32    `json:"ownerUserID"`
	OwnerGroupID     uint32    `json:"ownerGroupID"`
	Flags            uint32    `json:"flags"`
}

func NewRawEntry(fi os.FileInfo) RawEntry {
	entry := RawEntry{
		Filename:         fi.Name(),
		IsDirectory:      fi.IsDir(),
		ModificationDate: fi.ModTime().UTC(),
		LastAccess:       fi.ModTime().UTC(),
		FileSize:         fi.Size(),
		Flags:            uint32(fi.Mode()),
	}
	if stat, ok := fi.Sys().(*sftp.FileStat); ok {
		entry.LastAccess = time.Unix(int64(stat.Atime), 0).UTC()
		entry.OwnerUserID = stat.UID
		entry.OwnerGroupID = stat.GID
		entry.Flags = stat.Mode
	}
	return entry
}

func (e RawEntry) Encode() (string, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
