package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestCodeExtraction(t *testing.T) {
	err := NotFound("contract", "c1")
	if Code(err) != ErrCodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %s", Code(err))
	}
	if !Is(err, ErrCodeNotFound) {
		t.Fatalf("Is should match the carried code")
	}
	if Is(err, ErrCodeConflict) {
		t.Fatalf("Is matched the wrong code")
	}
	if Code(fmt.Errorf("plain")) != ErrCodeInternal {
		t.Fatalf("uncoded errors must default to INTERNAL")
	}
	if Code(nil) != ErrCodeInternal {
		t.Fatalf("nil error must default to INTERNAL")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := Wrap(cause, ErrCodeInternal, "query failed")
	if !stderrors.Is(err, cause) {
		t.Fatalf("wrapped cause lost")
	}
	if Code(err) != ErrCodeInternal {
		t.Fatalf("wrapped code lost")
	}
	if Wrap(nil, ErrCodeInternal, "x") != nil {
		t.Fatalf("wrapping nil must stay nil")
	}

	// Wrapping preserves the innermost code for Is checks through layers.
	outer := fmt.Errorf("handler: %w", NotFound("contract", "c1"))
	if Code(outer) != ErrCodeNotFound {
		t.Fatalf("code lost through fmt wrapping, got %s", Code(outer))
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{InvalidInput("title", "required"), http.StatusBadRequest},
		{NotFound("contract", "c1"), http.StatusNotFound},
		{Conflict("stale version"), http.StatusConflict},
		{New(ErrCodeSignature, "not a party"), http.StatusUnprocessableEntity},
		{New(ErrCodeTemplate, "render failed"), http.StatusUnprocessableEntity},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := HTTPStatus(tc.err); got != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, got)
		}
	}
}
