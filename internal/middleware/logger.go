package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/fatih/color"

	"sprout/pkg/logger"
	"sprout/pkg/utils"
)

// statusWriter captures the status code and body size.
type statusWriter struct {
	http.ResponseWriter
	statusCode int
	length     int64
}

func (w *statusWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.length += int64(n)
	return n, err
}

var (
	methodColors = map[string]func(a ...interface{}) string{
		http.MethodGet:  color.New(color.FgHiCyan, color.Bold).SprintFunc(),
		http.MethodPost: color.New(color.FgHiGreen, color.Bold).SprintFunc(),
		http.MethodPut:  color.New(color.FgHiYellow, color.Bold).SprintFunc(),
	}
	cMethod = color.New(color.FgWhite, color.Bold).SprintFunc()

	c200 = color.New(color.FgGreen, color.Bold).SprintFunc()
	c300 = color.New(color.FgCyan).SprintFunc()
	c400 = color.New(color.FgYellow, color.Bold).SprintFunc()
	c500 = color.New(color.FgRed, color.Bold).SprintFunc()

	cDim  = color.New(color.FgHiBlack).SprintFunc()
	cPath = color.New(color.FgWhite).SprintFunc()
	cFall = color.New(color.FgMagenta).SprintFunc()
)

func statusColor(code int) string {
	s := fmt.Sprintf("%d", code)
	switch {
	case code >= 500:
		return c500(s)
	case code >= 400:
		return c400(s)
	case code >= 300:
		return c300(s)
	}
	return c200(s)
}

// Logger writes one colored access line per request. Responses served
// from a fallback file are marked.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(ww, r)

		paint, ok := methodColors[r.Method]
		if !ok {
			paint = cMethod
		}
		marker := ""
		if ww.Header().Get("X-Sprout-Fallback") != "" {
			marker = " " + cFall("(fallback)")
		}

		logger.LogRequest("%s %s %s%s %s %s",
			paint(fmt.Sprintf("%-6s", r.Method)),
			cPath(r.RequestURI),
			statusColor(ww.statusCode),
			marker,
			cDim(utils.FormatBytes(ww.length)),
			cDim(time.Since(start).Round(time.Microsecond).String()),
		)
	})
}
