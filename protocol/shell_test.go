package protocol

import (
	"testing"
	"time"

	"github.com/Lvzhenqian/sshsftp/errors"
	"github.com/stretchr/testify/require"
)

func TestShellChannel_CollectAfterDiscard(t *testing.T) {
	sc := &shellChannel{notify: make(chan struct{}, 1), done: make(chan struct{})}

	sc.append("prompt$ ")
	require.Equal(t, "prompt$ ", sc.take())

	go func() {
		time.Sleep(150 * time.Millisecond)
		sc.append("reply\n")
	}()
	require.Equal(t, "reply\n", sc.collect(2*time.Second, 50*time.Millisecond))
}

func TestShellChannel_CollectEndsWithShell(t *testing.T) {
	sc := &shellChannel{notify: make(chan struct{}, 1), done: make(chan struct{})}
	sc.append("bye\n")
	close(sc.done)
	require.Equal(t, "bye\n", sc.collect(time.Second, time.Second))
}

type closer struct{ err error }

func (c closer) Close() error { return c.err }

func TestCloseInto(t *testing.T) {
	var err error
	closeInto(&err, closer{}, "/data/a.txt")
	require.NoError(t, err)

	closeInto(&err, closer{errors.New("flush failed")}, "/data/a.txt")
	require.ErrorContains(t, err, "flush failed")
	require.ErrorContains(t, err, "close /data/a.txt")

	first := errors.New("copy failed")
	err = first
	closeInto(&err, closer{errors.New("flush failed")}, "/data/a.txt")
	require.Equal(t, first, err)
}
