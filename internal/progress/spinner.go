// Package progress draws a one-line activity indicator on a terminal.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

var frames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Interval is the time between two frames.
const Interval = 80 * time.Millisecond

// Spinner redraws "<frame> <message>" on a single line until stopped.
type Spinner struct {
	w io.Writer

	mu      sync.Mutex
	message string
	width   int

	done    chan struct{}
	cleared chan struct{}
	once    sync.Once
}

// Start draws a spinner with message on w. The returned spinner must be
// stopped.
func Start(w io.Writer, message string) *Spinner {
	s := &Spinner{
		w:       w,
		message: message,
		done:    make(chan struct{}),
		cleared: make(chan struct{}),
	}
	go s.loop()
	return s
}

// StartIfTerminal starts a spinner on f when f is a terminal and returns
// nil otherwise. All Spinner methods accept a nil receiver.
func StartIfTerminal(f *os.File, message string) *Spinner {
	if f == nil || !term.IsTerminal(int(f.Fd())) {
		return nil
	}
	return Start(f, message)
}

// Update replaces the message shown next to the spinner.
func (s *Spinner) Update(message string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// Stop clears the line and waits for the drawing goroutine to exit. It is
// safe to call more than once.
func (s *Spinner) Stop() {
	if s == nil {
		return
	}
	s.once.Do(func() { close(s.done) })
	<-s.cleared
}

func (s *Spinner) loop() {
	ticker := time.NewTicker(Interval)
	defer ticker.Stop()

	for i := 0; ; i++ {
		s.mu.Lock()
		line := frames[i%len(frames)] + " " + s.message
		// pad over the previous, possibly longer, line
		lineWidth := runewidth.StringWidth(line)
		pad := max(s.width-lineWidth, 0)
		s.width = lineWidth
		s.mu.Unlock()

		fmt.Fprintf(s.w, "\r%s%*s", line, pad, "") //nolint:errcheck

		select {
		case <-s.done:
			fmt.Fprintf(s.w, "\r%*s\r", s.width, "") //nolint:errcheck
			close(s.cleared)
			return
		case <-ticker.C:
		}
	}
}
