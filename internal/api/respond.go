package api

import (
	"encoding/json"
	"net/http"

	"toilet-finder/internal/logger"
)

// 错误码：与前端约定的固定取值
const (
	CodeInvalidParameters  = "INVALID_PARAMETERS"
	CodeInvalidCoordinates = "INVALID_COORDINATES"
	CodeMissingID          = "MISSING_ID"
	CodeInternal           = "INTERNAL_ERROR"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type envelope struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *apiError `json:"error,omitempty"`
}

// 同步类接口的响应：message 总是存在，失败时 error 为原因描述
type syncEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.L().Debug("response_encode_error", "err", err)
	}
}

func ok(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

func fail(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, envelope{Error: &apiError{Code: code, Message: msg}})
}
