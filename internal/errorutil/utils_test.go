package errorutil_test

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/gomsrp/msrp/internal/errorutil"
)

type timeoutErr struct{}

func (timeoutErr) Error() string { return "i/o timeout" }
func (timeoutErr) Timeout() bool { return true }

type temporaryErr struct{}

func (temporaryErr) Error() string   { return "try again" }
func (temporaryErr) Temporary() bool { return true }

func TestIsTimeoutErr(t *testing.T) {
	if !errorutil.IsTimeoutErr(fmt.Errorf("read: %w", timeoutErr{})) {
		t.Error("wrapped timeout error not detected")
	}
	if errorutil.IsTimeoutErr(errors.New("plain")) {
		t.Error("plain error misclassified as timeout")
	}
}

func TestIsTemporaryErr(t *testing.T) {
	if !errorutil.IsTemporaryErr(fmt.Errorf("accept: %w", temporaryErr{})) {
		t.Error("wrapped temporary error not detected")
	}
	if errorutil.IsTemporaryErr(timeoutErr{}) {
		t.Error("timeout-only error misclassified as temporary")
	}
}

func TestIsNetError(t *testing.T) {
	opErr := &net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset by peer")}
	if !errorutil.IsNetError(fmt.Errorf("transport: %w", opErr)) {
		t.Error("wrapped *net.OpError not detected")
	}
	if !errorutil.IsNetError(fmt.Errorf("socket: %w", syscall.EINVAL)) {
		t.Error("EINVAL not detected")
	}
	if errorutil.IsNetError(errors.New("plain")) {
		t.Error("plain error misclassified as network error")
	}
}
