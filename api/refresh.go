package api

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type autoRefresher struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// StartAutoRefresh keeps the session's access token fresh in the background
// until Close is called. Calling it again while running does nothing.
func (a *Api) StartAutoRefresh(interval time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.autoRefresh != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &autoRefresher{cancel: cancel, done: make(chan struct{})}
	a.autoRefresh = r

	go func() {
		defer close(r.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.refreshIfExpiring(ctx)
			}
		}
	}()
}

func (a *Api) refreshIfExpiring(ctx context.Context) {
	a.ensureLoaded()

	a.mu.Lock()
	current := a.session.Clone()
	a.mu.Unlock()

	if current == nil || current.RefreshToken == "" || !current.Expired(a.now(), refreshLeeway) {
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, defaultReqTimeout)
	defer cancel()

	if _, apiErr := a.RefreshSession(reqCtx); apiErr != nil {
		a.log.Warn("background token refresh failed", zap.String("msg", apiErr.Msg))
	}
}

// Close stops the background refresh loop, if any, waits for it to exit and
// drops idle connections.
func (a *Api) Close() {
	a.mu.Lock()
	r := a.autoRefresh
	a.autoRefresh = nil
	a.mu.Unlock()

	if r != nil {
		r.cancel()
		<-r.done
	}

	a.client.CloseIdleConnections()
}
