package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorsAreStableStrings(t *testing.T) {
	cases := map[string]error{
		"not_supported":    ErrNotSupported,
		"no_memory":        ErrNoMemory,
		"invalid_argument": ErrInvalidArgument,
		"canceled":         ErrCanceled,
	}
	for want, e := range cases {
		if e == nil || e.Error() != want {
			t.Fatalf("error %q mismatch: got %#v", want, e)
		}
	}
}

func TestErrno(t *testing.T) {
	testCases := []struct {
		err   error
		errno int32
	}{
		{nil, 0},
		{ErrNotSupported, -134},
		{ErrNoMemory, -12},
		{ErrInvalidArgument, -22},
		{ErrCanceled, -140},
		{fmt.Errorf("set_alarm: %w", ErrNoMemory), -12},
	}

	for _, tc := range testCases {
		if got := Errno(tc.err); got != tc.errno {
			t.Errorf("Errno(%v): expected %d, got %d", tc.err, tc.errno, got)
		}
		back := ErrnoError(tc.errno)
		if !errors.Is(tc.err, back) && !(tc.err == nil && back == nil) {
			t.Errorf("ErrnoError(%d) = %v, want %v", tc.errno, back, tc.err)
		}
	}

	if got := Errno(errors.New("other")); got != -22 {
		t.Errorf("Unknown error should map to -EINVAL, got %d", got)
	}
}
