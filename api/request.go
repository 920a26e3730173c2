package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"danyak/types"

	"go.uber.org/zap"
)

type request struct {
	method  string
	path    string
	query   url.Values
	body    any
	bearer  string
	headers map[string]string
	errType types.ApiErrorType
}

// do sends a single request and decodes a successful JSON response into dest
// (when dest is non-nil). There are no retries.
func (a *Api) do(ctx context.Context, req request, dest any) *types.ApiError {
	serverUrl := a.baseUrl + req.path
	if len(req.query) > 0 {
		serverUrl += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		reqBytes, err := json.Marshal(req.body)
		if err != nil {
			return &types.ApiError{Type: types.ApiErrorTypeOther, Msg: fmt.Sprintf("error marshalling request: %v", err)}
		}
		body = bytes.NewBuffer(reqBytes)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, serverUrl, body)
	if err != nil {
		return &types.ApiError{Type: types.ApiErrorTypeOther, Msg: fmt.Sprintf("error creating request: %v", err)}
	}
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.bearer)
	}
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := a.client.Do(httpReq)
	if err != nil {
		a.log.Warn("request failed", zap.String("method", req.method), zap.String("path", req.path), zap.Error(err))
		return &types.ApiError{Type: types.ApiErrorTypeOther, Msg: fmt.Sprintf("error sending request: %v", err)}
	}
	defer resp.Body.Close()

	a.log.Debug("request",
		zap.String("method", req.method),
		zap.String("path", req.path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode >= 400 {
		errBody, _ := io.ReadAll(resp.Body)
		return HandleApiError(resp, errBody, req.errType)
	}

	if dest == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	err = json.NewDecoder(resp.Body).Decode(dest)
	if err != nil {
		return &types.ApiError{Type: types.ApiErrorTypeOther, Status: resp.StatusCode, Msg: fmt.Sprintf("error decoding response: %v", err)}
	}

	return nil
}
