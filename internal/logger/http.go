package logger

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// accessRecorder：记录首个状态码与响应字节数
// 约束：只认第一次 WriteHeader；未显式写头时首次 Write 视为 200
type accessRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (rec *accessRecorder) WriteHeader(code int) {
	if rec.status == 0 {
		rec.status = code
	}
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *accessRecorder) Write(b []byte) (int, error) {
	if rec.status == 0 {
		rec.status = http.StatusOK
	}
	n, err := rec.ResponseWriter.Write(b)
	rec.size += n
	return n, err
}

// Unwrap：供 http.ResponseController 访问底层连接（Flush、超时设置）
func (rec *accessRecorder) Unwrap() http.ResponseWriter { return rec.ResponseWriter }

// 探针类路径，访问日志降为 Debug
var quietSuffixes = []string{"/health", "/metrics"}

func accessLevel(path string) slog.Level {
	for _, s := range quietSuffixes {
		if strings.HasSuffix(path, s) {
			return slog.LevelDebug
		}
	}
	return slog.LevelInfo
}

// AccessMiddleware：每个请求一条 http_access；不读取请求体
// 约束：远端地址取 RemoteAddr，代理链上的真实 IP 由 api 层解析
func AccessMiddleware(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &accessRecorder{ResponseWriter: w}
			t0 := time.Now()
			next.ServeHTTP(rec, r)
			if rec.status == 0 {
				rec.status = http.StatusOK
			}
			l.LogAttrs(r.Context(), accessLevel(r.URL.Path), "http_access",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Int("bytes", rec.size),
				slog.Int64("duration_ms", time.Since(t0).Milliseconds()),
				slog.String("remote", r.RemoteAddr),
			)
		})
	}
}
