package term

import (
	"sync"
	"time"

	"github.com/briandowns/spinner"
)

const withMessageMinDuration = 500 * time.Millisecond

var s = spinner.New(spinner.CharSets[33], 100*time.Millisecond)

var mu sync.Mutex
var startedAt time.Time
var lastMessage string
var active bool

func StartSpinner(msg string) {
	mu.Lock()
	defer mu.Unlock()

	if active {
		if msg == lastMessage {
			return
		}
		s.Stop()
	}

	startedAt = time.Now()
	s.Prefix = msg + " "
	lastMessage = msg
	s.Start()
	active = true
}

// StopSpinner keeps a spinner with a message up long enough to be read.
// Outside a terminal the spinner never renders and this returns at once.
func StopSpinner() {
	mu.Lock()
	defer mu.Unlock()

	if !active {
		return
	}

	if isTerminal() && lastMessage != "" {
		if elapsed := time.Since(startedAt); elapsed < withMessageMinDuration {
			time.Sleep(withMessageMinDuration - elapsed)
		}
	}

	s.Stop()
	active = false
}
