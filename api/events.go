package api

import (
	"fmt"
	"sort"
	"sync"

	"danyak/types"

	"go.uber.org/zap"
)

type subscription struct {
	api  *Api
	id   uint64
	once sync.Once
}

func (s *subscription) Close() {
	s.once.Do(func() {
		s.api.mu.Lock()
		delete(s.api.listeners, s.id)
		s.api.mu.Unlock()
	})
}

// OnAuthStateChange registers listener for every session transition. The
// listener is called once right away with INITIAL_SESSION and the stored
// session (which may be nil).
func (a *Api) OnAuthStateChange(listener types.AuthListener) types.Subscription {
	a.ensureLoaded()

	a.mu.Lock()
	a.nextListenerId++
	id := a.nextListenerId
	a.listeners[id] = listener
	initial := a.session.Clone()
	a.mu.Unlock()

	a.notify(id, listener, types.AuthEventInitialSession, initial)

	return &subscription{api: a, id: id}
}

// emit calls the listeners in registration order, outside the lock so that
// listeners may call back into the client.
func (a *Api) emit(event types.AuthChangeEvent, session *types.Session) {
	a.mu.Lock()
	ids := make([]uint64, 0, len(a.listeners))
	for id := range a.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	listeners := make([]types.AuthListener, 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, a.listeners[id])
	}
	a.mu.Unlock()

	for i, listener := range listeners {
		a.notify(ids[i], listener, event, session.Clone())
	}
}

func (a *Api) notify(id uint64, listener types.AuthListener, event types.AuthChangeEvent, session *types.Session) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("auth listener panicked",
				zap.Uint64("listener", id),
				zap.String("event", string(event)),
				zap.String("panic", fmt.Sprint(r)))
		}
	}()
	listener(event, session)
}
