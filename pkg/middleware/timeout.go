package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	qaerrors "github.com/Adithya-Monish-Kumar-K/corpus-qa/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/corpus-qa/pkg/logger"
)

// Timeout cancels the request context after d. If the handler has not
// written anything by then the client gets a JSON 504 and later writes from
// the handler are dropped. A non-positive d disables the limit.
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if d <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			tw := &timeoutWriter{ResponseWriter: w, header: make(http.Header)}
			done := make(chan struct{})
			go func() {
				defer close(done)
				next.ServeHTTP(tw, r.WithContext(ctx))
			}()
			select {
			case <-done:
			case <-ctx.Done():
				if !tw.expire() {
					// Response already started; let the handler finish it.
					<-done
					return
				}
				logger.FromContext(r.Context()).Warn("request timed out",
					"method", r.Method,
					"path", r.URL.Path,
					"timeout", d,
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(qaerrors.HTTPStatusCode(qaerrors.ErrTimeout))
				w.Write([]byte(`{"error":"request timeout"}` + "\n"))
			}
		})
	}
}

// timeoutWriter buffers headers in its own map so the handler goroutine never
// touches the real header map the timeout response uses.
type timeoutWriter struct {
	http.ResponseWriter
	header http.Header

	mu      sync.Mutex
	written bool
	expired bool
}

func (tw *timeoutWriter) Header() http.Header { return tw.header }

// flushHeader must be called with mu held.
func (tw *timeoutWriter) flushHeader() {
	if tw.written {
		return
	}
	tw.written = true
	dst := tw.ResponseWriter.Header()
	for k, v := range tw.header {
		dst[k] = v
	}
}

// expire reports whether the caller may write the timeout response.
func (tw *timeoutWriter) expire() bool {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.written {
		return false
	}
	tw.expired = true
	return true
}

func (tw *timeoutWriter) WriteHeader(code int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.expired || tw.written {
		return
	}
	tw.flushHeader()
	tw.ResponseWriter.WriteHeader(code)
}

func (tw *timeoutWriter) Write(b []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.expired {
		return 0, http.ErrHandlerTimeout
	}
	tw.flushHeader()
	return tw.ResponseWriter.Write(b)
}
