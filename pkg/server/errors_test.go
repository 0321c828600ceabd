package server

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestConnErrorUnwrap(t *testing.T) {
	err := &ConnError{Handle: 3, ViewerID: "abc", Op: "write", Err: io.ErrClosedPipe}
	if !errors.Is(err, io.ErrClosedPipe) {
		t.Fatal("errors.Is did not see the wrapped error")
	}
	msg := err.Error()
	for _, want := range []string{"abc", "handle 3", "write", io.ErrClosedPipe.Error()} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
}
