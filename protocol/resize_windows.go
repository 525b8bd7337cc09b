//go:build windows

package protocol

import (
	"time"

	terminal "golang.org/x/term"
)

// windows has no SIGWINCH, poll the console size instead
func (n *Native) followWindow(sc *shellChannel, fd, termWidth, termHeight int) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-sc.done:
			return
		case <-ticker.C:
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
