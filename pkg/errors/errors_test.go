package errors

import (
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", fmt.Errorf("parsing k: %w", ErrInvalidInput), http.StatusBadRequest},
		{"empty corpus", fmt.Errorf("pass 1: %w", ErrEmptyCollection), http.StatusServiceUnavailable},
		{"corpus down", ErrCorpusUnavailable, http.StatusServiceUnavailable},
		{"timeout", ErrTimeout, http.StatusGatewayTimeout},
		{"missing term", ErrMissingTerm, http.StatusInternalServerError},
		{"app error", New(ErrInternal, http.StatusTeapot, "short and stout"), http.StatusTeapot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatusCode(tt.err); got != tt.want {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := Newf(ErrInvalidInput, http.StatusBadRequest, "k must be positive, got %d", 0)
	if !Is(err, ErrInvalidInput) {
		t.Fatal("expected AppError to unwrap to ErrInvalidInput")
	}
	if err.Error() != "invalid input: k must be positive, got 0" {
		t.Errorf("unexpected message %q", err.Error())
	}
}
