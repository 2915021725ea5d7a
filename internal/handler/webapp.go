package handler

import (
	_ "embed"
	"net/http"
)

// timePickerPage は返信キーボードから開く時刻選択ページ。
// 選んだ時刻は Telegram.WebApp.sendData で {"hours":H,"minutes":M} としてボットに届く。
//
//go:embed webapp/time.html
var timePickerPage []byte

// TimePickerHandler は時刻選択ページを返す。
func TimePickerHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(timePickerPage)
}
