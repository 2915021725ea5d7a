package middleware

import (
	"encoding/json"
	"net/http"
)

// ErrorResponseBody はHTTPエラーレスポンスの統一フォーマット。
type ErrorResponseBody struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// エラーコード
const (
	CodeInternal      = "INTERNAL_ERROR"
	CodeUnavailable   = "UNAVAILABLE"
	CodeRateLimited   = "RATE_LIMIT_EXCEEDED"
	CodeNotFound      = "NOT_FOUND"
	CodeMethodInvalid = "METHOD_NOT_ALLOWED"
)

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Status:  "error",
		Code:    code,
		Message: message,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録する。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, CodeInternal, "internal server error")
}
