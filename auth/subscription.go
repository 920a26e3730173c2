package auth

import "sync"

// Subscription is the handle returned by OnSessionChange.
type Subscription struct {
	once    sync.Once
	release func()
}

// Close stops delivery to the listener. Safe to call more than once.
func (s *Subscription) Close() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.release != nil {
			s.release()
		}
	})
}
