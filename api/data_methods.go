package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"danyak/types"
)

// Select reads rows of table matching q into dest, which must be a pointer
// to a slice.
func (a *Api) Select(ctx context.Context, table string, q types.Query, dest any) *types.ApiError {
	return a.do(ctx, request{
		method:  http.MethodGet,
		path:    "/rest/v1/" + table,
		query:   q.Values(),
		bearer:  a.currentAccessToken(),
		errType: types.ApiErrorTypeRequest,
	}, dest)
}

// Insert writes a single row as session's user and decodes the stored row,
// as acknowledged by the remote, into dest.
func (a *Api) Insert(ctx context.Context, table string, session *types.Session, row any, dest any) *types.ApiError {
	if session == nil {
		return &types.ApiError{Type: types.ApiErrorTypeAuth, Status: http.StatusUnauthorized, Msg: "must be signed in"}
	}

	var rows []json.RawMessage
	apiErr := a.do(ctx, request{
		method:  http.MethodPost,
		path:    "/rest/v1/" + table,
		body:    row,
		bearer:  a.bearerFor(session),
		headers: map[string]string{"Prefer": "return=representation"},
		errType: types.ApiErrorTypeRequest,
	}, &rows)
	if apiErr != nil {
		return apiErr
	}

	if len(rows) == 0 {
		return &types.ApiError{Type: types.ApiErrorTypeOther, Status: http.StatusOK, Msg: fmt.Sprintf("insert into %s returned no row", table)}
	}

	if dest == nil {
		return nil
	}

	err := json.Unmarshal(rows[0], dest)
	if err != nil {
		return &types.ApiError{Type: types.ApiErrorTypeOther, Status: http.StatusOK, Msg: fmt.Sprintf("error decoding response: %v", err)}
	}

	return nil
}

// bearerFor prefers the client's own copy of the same user's session, which
// carries the newest token after a refresh.
func (a *Api) bearerFor(session *types.Session) string {
	a.ensureLoaded()

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session != nil && a.session.UserId == session.UserId {
		return a.session.AccessToken
	}
	return session.AccessToken
}
