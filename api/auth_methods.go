package api

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"danyak/types"

	"go.uber.org/zap"
)

type userResponse struct {
	Id    string `json:"id"`
	Email string `json:"email"`
}

// sessionResponse covers both shapes the signup endpoint can return: a full
// session, or only the user when the account still needs email confirmation.
type sessionResponse struct {
	AccessToken  string        `json:"access_token"`
	TokenType    string        `json:"token_type"`
	ExpiresIn    int64         `json:"expires_in"`
	ExpiresAt    int64         `json:"expires_at"`
	RefreshToken string        `json:"refresh_token"`
	User         *userResponse `json:"user"`

	Id    string `json:"id"`
	Email string `json:"email"`
}

func (r *sessionResponse) toSession(now time.Time) *types.Session {
	if r.AccessToken == "" || r.User == nil {
		return nil
	}

	var expiresAt time.Time
	if r.ExpiresAt > 0 {
		expiresAt = time.Unix(r.ExpiresAt, 0)
	} else if r.ExpiresIn > 0 {
		expiresAt = now.Add(time.Duration(r.ExpiresIn) * time.Second)
	}

	return &types.Session{
		UserId:       r.User.Id,
		Email:        r.User.Email,
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		ExpiresAt:    expiresAt,
	}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUp returns a nil session (and no error) when the remote requires the
// address to be confirmed first.
func (a *Api) SignUp(ctx context.Context, email, password string) (*types.Session, *types.ApiError) {
	var res sessionResponse
	apiErr := a.do(ctx, request{
		method:  http.MethodPost,
		path:    "/auth/v1/signup",
		body:    credentials{Email: email, Password: password},
		errType: types.ApiErrorTypeAuth,
	}, &res)
	if apiErr != nil {
		return nil, apiErr
	}

	session := res.toSession(a.now())
	if session == nil {
		a.log.Info("sign up pending confirmation", zap.String("email", email))
		return nil, nil
	}

	a.setSession(types.AuthEventSignedIn, session)
	return session.Clone(), nil
}

func (a *Api) SignInWithPassword(ctx context.Context, email, password string) (*types.Session, *types.ApiError) {
	var res sessionResponse
	apiErr := a.do(ctx, request{
		method:  http.MethodPost,
		path:    "/auth/v1/token",
		query:   url.Values{"grant_type": {"password"}},
		body:    credentials{Email: email, Password: password},
		errType: types.ApiErrorTypeAuth,
	}, &res)
	if apiErr != nil {
		return nil, apiErr
	}

	session := res.toSession(a.now())
	if session == nil {
		return nil, &types.ApiError{Type: types.ApiErrorTypeAuth, Status: http.StatusOK, Msg: "sign in response did not include a session"}
	}

	a.setSession(types.AuthEventSignedIn, session)
	return session.Clone(), nil
}

// SignOut always drops the local session. A remote failure is returned but
// doesn't keep the user signed in locally.
func (a *Api) SignOut(ctx context.Context) *types.ApiError {
	a.ensureLoaded()

	a.mu.Lock()
	current := a.session
	a.mu.Unlock()

	if current == nil {
		return nil
	}

	apiErr := a.do(ctx, request{
		method:  http.MethodPost,
		path:    "/auth/v1/logout",
		bearer:  current.AccessToken,
		errType: types.ApiErrorTypeAuth,
	}, nil)

	// an already invalid token means the remote session is gone anyway
	if apiErr != nil && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusNotFound) {
		apiErr = nil
	}

	a.setSession(types.AuthEventSignedOut, nil)
	return apiErr
}

// GetSession returns the stored session, refreshing it first when the
// access token has expired.
func (a *Api) GetSession(ctx context.Context) (*types.Session, *types.ApiError) {
	a.ensureLoaded()

	a.mu.Lock()
	current := a.session.Clone()
	a.mu.Unlock()

	if current == nil {
		return nil, nil
	}

	if current.Expired(a.now(), 0) {
		if current.RefreshToken == "" {
			a.setSession(types.AuthEventSignedOut, nil)
			return nil, nil
		}
		return a.RefreshSession(ctx)
	}

	return current, nil
}

func (a *Api) RefreshSession(ctx context.Context) (*types.Session, *types.ApiError) {
	a.refreshMu.Lock()
	defer a.refreshMu.Unlock()

	a.ensureLoaded()

	a.mu.Lock()
	current := a.session.Clone()
	a.mu.Unlock()

	if current == nil || current.RefreshToken == "" {
		return nil, &types.ApiError{Type: types.ApiErrorTypeAuth, Msg: "no session to refresh"}
	}

	var res sessionResponse
	apiErr := a.do(ctx, request{
		method:  http.MethodPost,
		path:    "/auth/v1/token",
		query:   url.Values{"grant_type": {"refresh_token"}},
		body:    map[string]string{"refresh_token": current.RefreshToken},
		errType: types.ApiErrorTypeAuth,
	}, &res)

	if apiErr != nil {
		// the refresh token was rejected; a network failure keeps the session
		if apiErr.Status >= 400 && apiErr.Status < 500 {
			a.log.Info("refresh token rejected, signing out", zap.String("msg", apiErr.Msg))
			a.setSession(types.AuthEventSignedOut, nil)
		}
		return nil, apiErr
	}

	session := res.toSession(a.now())
	if session == nil {
		return nil, &types.ApiError{Type: types.ApiErrorTypeAuth, Status: http.StatusOK, Msg: "refresh response did not include a session"}
	}

	a.setSession(types.AuthEventTokenRefreshed, session)
	return session.Clone(), nil
}

func (a *Api) ensureLoaded() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.loaded {
		return
	}
	a.loaded = true

	session, err := a.storage.Load()
	if err != nil {
		a.log.Warn("error loading stored session", zap.Error(err))
		return
	}
	a.session = session
}

func (a *Api) setSession(event types.AuthChangeEvent, session *types.Session) {
	a.mu.Lock()
	a.loaded = true
	a.session = session.Clone()
	a.mu.Unlock()

	var err error
	if session == nil {
		err = a.storage.Clear()
	} else {
		err = a.storage.Save(session)
	}
	if err != nil {
		a.log.Warn("error persisting session", zap.String("event", string(event)), zap.Error(err))
	}

	a.emit(event, session)
}

func (a *Api) currentAccessToken() string {
	a.ensureLoaded()

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session == nil {
		return ""
	}
	return a.session.AccessToken
}
