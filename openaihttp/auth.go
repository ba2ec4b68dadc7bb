package openaihttp

import (
	"net/http"
	"strings"
)

// RequireAPIKey 返回一个校验 Authorization: Bearer <key> 的包装函数。
// keys 为空表示开发模式，放行所有请求。
func RequireAPIKey(keys []string, next http.HandlerFunc) http.HandlerFunc {
	keySet := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k != "" {
			keySet[k] = struct{}{}
		}
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if len(keySet) == 0 {
			next(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeOpenAIError(w, http.StatusUnauthorized, "Missing API key")
			return
		}
		if _, ok := keySet[strings.TrimSpace(token)]; !ok {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeOpenAIError(w, http.StatusUnauthorized, "Invalid API key")
			return
		}
		next(w, r)
	}
}
