package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"danyak/types"
)

// remote error bodies put the human readable message under different keys
// depending on the endpoint
type errorBody struct {
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	ErrorDescription string `json:"error_description"`
	Error            string `json:"error"`
}

func HandleApiError(r *http.Response, errBody []byte, errType types.ApiErrorType) *types.ApiError {
	msg := strings.TrimSpace(string(errBody))

	if strings.Contains(r.Header.Get("Content-Type"), "json") {
		var body errorBody
		if err := json.Unmarshal(errBody, &body); err == nil {
			for _, candidate := range []string{body.Msg, body.Message, body.ErrorDescription, body.Error} {
				if candidate != "" {
					msg = candidate
					break
				}
			}
		}
	}

	if msg == "" {
		msg = http.StatusText(r.StatusCode)
	}

	if r.StatusCode == http.StatusUnauthorized && strings.Contains(strings.ToLower(msg), "jwt") {
		errType = types.ApiErrorTypeInvalidToken
	}

	return &types.ApiError{
		Type:   errType,
		Status: r.StatusCode,
		Msg:    msg,
	}
}
