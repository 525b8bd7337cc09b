//go:build !windows

package protocol

import (
	"os"
	"os/signal"
	"syscall"

	terminal "golang.org/x/term"
)

// followWindow resizes the remote pty whenever the local terminal changes
// size, until the shell ends.
func (n *Native) followWindow(sc *shellChannel, fd, termWidth, termHeight int) {
	sigwinchCh := make(chan os.Signal, 1)
	signal.Notify(sigwinchCh, syscall.SIGWINCH)
	defer signal.Stop(sigwinchCh)

	for {
		select {
		case <-sc.done:
			return
		case <-sigwinchCh:
		}
		currTermWidth, currTermHeight, getSizeErr := terminal.GetSize(fd)
		if getSizeErr != nil {
			n.logger.Debugf("terminal size: %v", getSizeErr)
			continue
		}
		if currTermHeight == termHeight && currTermWidth == termWidth {
			continue
		}
		if changeErr := sc.session.WindowChange(currTermHeight, currTermWidth); changeErr != nil {
			n.logger.Debugf("window change: %v", changeErr)
			continue
		}
		termWidth, termHeight = currTermWidth, currTermHeight
	}
}
