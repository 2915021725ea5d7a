package logger

import (
	"io"
	"log/slog"
	"os"
)

// Setup はJSON構造化ログ出力のslog.Loggerを生成して返す。
// writerが指定された場合はそのwriterに出力する。
func Setup(w io.Writer) *slog.Logger {
	return slog.New(newJSONHandler(w))
}

// SetupDefault はJSON構造化ログ出力をグローバルロガーとして設定する。
// writerが指定された場合はそのwriterに出力する。
// 本番ではos.Stdoutを渡すことを想定している。
func SetupDefault(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	logger := Setup(w)
	slog.SetDefault(logger)
}

// SetupDefaultWithSentry はJSON出力に加えてERROR以上をSentryへ転送するロガーを
// グローバルロガーとして設定する。capturerがnilならSetupDefaultと同じ。
func SetupDefaultWithSentry(w io.Writer, capturer EventCapturer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	var handler slog.Handler = newJSONHandler(w)
	if capturer != nil {
		handler = NewMultiHandler(handler, NewSentryHandler(capturer, slog.LevelError))
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func newJSONHandler(w io.Writer) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
}
