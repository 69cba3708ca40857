package cbuf

import "testing"

// TestBinaryCodecRoundTrip is scenario S10: write u64, three strings, read
// them back into fresh values, and require no trailing bytes unread.
func TestBinaryCodecRoundTrip(t *testing.T) {
	w := NewWriter(64, true)
	if err := w.WriteUint64(1); err != nil {
		t.Fatalf("WriteUint64: %v", err)
	}
	if err := w.WriteString("Hello, world"); err != nil {
		t.Fatalf("WriteString name: %v", err)
	}
	if err := w.WriteString("nick"); err != nil {
		t.Fatalf("WriteString nickname: %v", err)
	}
	if err := w.WriteString("foo@bar.com"); err != nil {
		t.Fatalf("WriteString email: %v", err)
	}

	r := NewReader(w.Bytes())
	id, err := r.ReadUint64()
	if err != nil || id != 1 {
		t.Fatalf("ReadUint64 = %d, %v", id, err)
	}
	name, err := r.ReadString(MaxNameLen)
	if err != nil || name != "Hello, world" {
		t.Fatalf("ReadString name = %q, %v", name, err)
	}
	nick, err := r.ReadString(MaxNicknameLen)
	if err != nil || nick != "nick" {
		t.Fatalf("ReadString nickname = %q, %v", nick, err)
	}
	email, err := r.ReadString(MaxEmailLen)
	if err != nil || email != "foo@bar.com" {
		t.Fatalf("ReadString email = %q, %v", email, err)
	}
	if r.Remaining() != 0 {
		t.Fatalf("Remaining = %d, want 0", r.Remaining())
	}
}

func TestTagMismatchIsRejected(t *testing.T) {
	w := NewWriter(16, true)
	_ = w.WriteUint64(42)

	r := NewReader(w.Bytes())
	if _, err := r.ReadInt32(); err == nil {
		t.Fatalf("expected tag mismatch error reading a uint64 frame as int32")
	}
}

func TestFixedSizeWriterRefusesOverflow(t *testing.T) {
	w := NewWriter(2, false)
	if err := w.WriteUint64(1); err == nil {
		t.Fatalf("expected overflow error on a non-growing 2-byte buffer")
	}
}

func TestStringLengthLimitEnforced(t *testing.T) {
	w := NewWriter(128, true)
	_ = w.WriteString("this string is definitely longer than five bytes")

	r := NewReader(w.Bytes())
	if _, err := r.ReadString(5); err == nil {
		t.Fatalf("expected length-limit error")
	}
}

func TestFrameHeaderRoundTrip(t *testing.T) {
	w := NewWriter(8, true)
	if err := w.WriteHeader(Header{Version: BeepProtocolVersionForTest, Request: UserGet}); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	r := NewReader(w.Bytes())
	h, err := r.ReadHeader()
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if h.Request != UserGet {
		t.Fatalf("Request = %d, want %d", h.Request, UserGet)
	}
}

const BeepProtocolVersionForTest = 1
