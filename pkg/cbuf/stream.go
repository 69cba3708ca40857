package cbuf

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// StreamReader reads tagged values directly off a connection's buffered
// reader, one tag at a time, rather than requiring the whole frame
// pre-loaded into a byte slice the way Reader does. This is the closer
// analog of the C original's readbuf_*(connection conn, ...) functions,
// which take a connection handle directly; it is what the beepd RPC
// application uses, since an RPC server cannot know a request frame's
// total length before it has read the request code out of the header.
type StreamReader struct {
	r *bufio.Reader
}

func NewStreamReader(r *bufio.Reader) *StreamReader { return &StreamReader{r: r} }

func (s *StreamReader) take(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(s.r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (s *StreamReader) expectTag(want Tag) error {
	b, err := s.take(1)
	if err != nil {
		return err
	}
	if Tag(b[0]) != want {
		return fmt.Errorf("cbuf: tag mismatch: want %q, got %q", byte(want), b[0])
	}
	return nil
}

// ReadHeader reads the frame header.
func (s *StreamReader) ReadHeader() (Header, error) {
	b, err := s.take(4)
	if err != nil {
		return Header{}, err
	}
	return Header{
		Version: binary.BigEndian.Uint16(b[0:2]),
		Request: binary.BigEndian.Uint16(b[2:4]),
	}, nil
}

func (s *StreamReader) ReadUint64() (uint64, error) {
	if err := s.expectTag(TagUint64); err != nil {
		return 0, err
	}
	b, err := s.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (s *StreamReader) ReadBool() (bool, error) {
	if err := s.expectTag(TagBool); err != nil {
		return false, err
	}
	b, err := s.take(1)
	if err != nil {
		return false, err
	}
	return b[0] == 't', nil
}

// ReadString reads a length-prefixed string, refusing a length that would
// exceed maxLen (mirroring the C original's destsize guard); maxLen<=0
// means no limit.
func (s *StreamReader) ReadString(maxLen int) (string, error) {
	if err := s.expectTag(TagString); err != nil {
		return "", err
	}
	lenBuf, err := s.take(4)
	if err != nil {
		return "", err
	}
	n := int(binary.BigEndian.Uint32(lenBuf))
	if maxLen > 0 && n > maxLen {
		return "", fmt.Errorf("cbuf: string length %d exceeds limit %d", n, maxLen)
	}
	b, err := s.take(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadNull consumes a null tag, the counterpart of WriteNull.
func (s *StreamReader) ReadNull() error { return s.expectTag(TagNull) }

// StreamWriter writes tagged values directly to a connection's buffered
// writer; the caller flushes once a full response frame is queued.
type StreamWriter struct {
	w *bufio.Writer
}

func NewStreamWriter(w *bufio.Writer) *StreamWriter { return &StreamWriter{w: w} }

// WriteHeader writes the frame header.
func (s *StreamWriter) WriteHeader(h Header) error {
	var b [4]byte
	binary.BigEndian.PutUint16(b[0:2], h.Version)
	binary.BigEndian.PutUint16(b[2:4], h.Request)
	_, err := s.w.Write(b[:])
	return err
}

func (s *StreamWriter) WriteUint64(v uint64) error {
	var b [9]byte
	b[0] = byte(TagUint64)
	binary.BigEndian.PutUint64(b[1:], v)
	_, err := s.w.Write(b[:])
	return err
}

func (s *StreamWriter) WriteBool(v bool) error {
	c := byte('f')
	if v {
		c = 't'
	}
	_, err := s.w.Write([]byte{byte(TagBool), c})
	return err
}

func (s *StreamWriter) WriteString(str string) error {
	if err := s.w.WriteByte(byte(TagString)); err != nil {
		return err
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(str)))
	if _, err := s.w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := s.w.WriteString(str)
	return err
}

func (s *StreamWriter) WriteNull() error { return s.w.WriteByte(byte(TagNull)) }

// Flush flushes any buffered writes to the underlying connection.
func (s *StreamWriter) Flush() error { return s.w.Flush() }
