package tester

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"testing"
)

// message renders msgAndArgs as fmt.Sprintf(msg, args...) when a format is given.
func message(msgAndArgs []any) string {
	if len(msgAndArgs) == 0 {
		return ""
	}
	if format, ok := msgAndArgs[0].(string); ok {
		return fmt.Sprintf(format, msgAndArgs[1:]...)
	}
	return fmt.Sprint(msgAndArgs...)
}

// Eq asserts that got == want using reflect.DeepEqual for non-comparable types.
func Eq[T any](t *testing.T, got, want T, msgAndArgs ...any) {
	t.Helper()
	if !reflect.DeepEqual(got, want) {
		if msg := message(msgAndArgs); msg != "" {
			t.Fatalf("%s: got=%v want=%v", msg, got, want)
		}
		t.Fatalf("got=%v want=%v", got, want)
	}
}

// True asserts that cond is true.
func True(t *testing.T, cond bool, msgAndArgs ...any) {
	t.Helper()
	if !cond {
		if msg := message(msgAndArgs); msg != "" {
			t.Fatal(msg)
		}
		t.Fatalf("expected condition to be true")
	}
}

// False asserts that cond is false.
func False(t *testing.T, cond bool, msgAndArgs ...any) {
	t.Helper()
	True(t, !cond, msgAndArgs...)
}

// NoErr asserts that err is nil.
func NoErr(t *testing.T, err error, msgAndArgs ...any) {
	t.Helper()
	if err != nil {
		if msg := message(msgAndArgs); msg != "" {
			t.Fatalf("%s: %v", msg, err)
		}
		t.Fatalf("unexpected error: %v", err)
	}
}

// Err asserts that err is non-nil.
func Err(t *testing.T, err error, msgAndArgs ...any) {
	t.Helper()
	if err == nil {
		if msg := message(msgAndArgs); msg != "" {
			t.Fatalf("%s: expected an error", msg)
		}
		t.Fatalf("expected an error")
	}
}

// Near asserts |got-want| <= eps.
func Near(t *testing.T, got, want, eps float64, msgAndArgs ...any) {
	t.Helper()
	if math.Abs(got-want) > eps {
		t.Fatalf("%s got=%v want=%v (eps=%v)", message(msgAndArgs), got, want, eps)
	}
}

// Contains asserts that s contains sub.
func Contains(t *testing.T, s, sub string, msgAndArgs ...any) {
	t.Helper()
	if !strings.Contains(s, sub) {
		t.Fatalf("%s %q does not contain %q", message(msgAndArgs), s, sub)
	}
}
