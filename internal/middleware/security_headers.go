package middleware

import "net/http"

// webAppCSP はWebAppページ向けのContent-Security-Policy。
// Telegramのクライアントは web.telegram.org などからiframeで開くため、フレーム表示を許可する。
const webAppCSP = "default-src 'self'; " +
	"script-src 'self' 'unsafe-inline' https://telegram.org; " +
	"style-src 'self' 'unsafe-inline'; " +
	"frame-ancestors https://web.telegram.org https://*.telegram.org"

// NewSecurityHeadersMiddleware はwebhookとヘルスチェックを含む全レスポンスに共通ヘッダーを付ける。
func NewSecurityHeadersMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			next.ServeHTTP(w, r)
		})
	}
}

// NewWebAppHeadersMiddleware はTelegram内で開くページ向けのヘッダーを付与する。
// NewSecurityHeadersMiddleware の後に置き、フレーム制限をCSPで置き換える。
func NewWebAppHeadersMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Del("X-Frame-Options")
			w.Header().Set("Content-Security-Policy", webAppCSP)
			w.Header().Set("Cache-Control", "no-cache")
			next.ServeHTTP(w, r)
		})
	}
}
