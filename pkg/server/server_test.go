package server

import (
	"net"
	"regexp"
	"syscall"
	"testing"
)

// fakeConn implements net.Conn with a fixed RemoteAddr, just enough for
// admits() to exercise the allow-list regex without a real socket.
type fakeConn struct {
	net.Conn
	remote net.Addr
}

func (f fakeConn) RemoteAddr() net.Addr { return f.remote }

type fakeAddr string

func (a fakeAddr) Network() string { return "tcp" }
func (a fakeAddr) String() string  { return string(a) }

func TestAdmitsMatchesAllowListRegex(t *testing.T) {
	s := &Server{allowList: regexp.MustCompile(`^10\.0\.`)}

	allowed := fakeConn{remote: fakeAddr("10.0.0.5:1234")}
	if !s.admits(allowed) {
		t.Fatalf("expected 10.0.0.5 to be admitted")
	}

	denied := fakeConn{remote: fakeAddr("192.168.1.1:1234")}
	if s.admits(denied) {
		t.Fatalf("expected 192.168.1.1 to be denied")
	}
}

func TestAdmitsRejectsUnparseableRemoteAddr(t *testing.T) {
	s := &Server{allowList: regexp.MustCompile(`.*`)}
	noPort := fakeConn{remote: fakeAddr("not-a-host-port")}
	if s.admits(noPort) {
		t.Fatalf("expected an address with no port to be rejected, not matched against .*")
	}
}

func TestIsRecoverableAcceptErrno(t *testing.T) {
	if isRecoverableAcceptErrno(syscall.ECONNABORTED) {
		t.Fatalf("ECONNABORTED is not in the recoverable list, should not be treated as recoverable")
	}
	for _, errno := range []syscall.Errno{
		syscall.EPROTO, syscall.ENOTCONN, syscall.EAGAIN, syscall.ENETDOWN,
		syscall.EHOSTUNREACH, syscall.EOPNOTSUPP, syscall.ENETUNREACH,
	} {
		if !isRecoverableAcceptErrno(errno) {
			t.Fatalf("%v should be recoverable", errno)
		}
	}
}

func TestDefaultConfigMatchesConstants(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Workers <= 0 || cfg.QueueSize <= 0 {
		t.Fatalf("DefaultConfig must populate positive Workers/QueueSize, got %+v", cfg)
	}
	if cfg.ReadBufferSize <= 0 || cfg.WriteBufferSize <= 0 {
		t.Fatalf("DefaultConfig must populate positive buffer sizes, got %+v", cfg)
	}
}
