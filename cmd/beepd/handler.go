package main

import (
	"bufio"
	"errors"
	"log"
	"net"

	"github.com/WhileEndless/go-rawhttpd/pkg/cbuf"
	"github.com/WhileEndless/go-rawhttpd/pkg/constants"
)

// beepProtocolVersion is BEEP_VERSION from cbuf.h.
const beepProtocolVersion uint16 = constants.BeepProtocolVersion

// handleConn reads one or more request frames off conn until it is closed,
// dispatching each to the store by request code and writing back a
// response frame, per spec §6's "Application binary frame (C2)".
func handleConn(store *Store, conn net.Conn) {
	defer conn.Close()

	br := bufio.NewReader(conn)
	bw := bufio.NewWriter(conn)
	r := cbuf.NewStreamReader(br)
	w := cbuf.NewStreamWriter(bw)

	for {
		hdr, err := r.ReadHeader()
		if err != nil {
			return
		}

		if err := dispatch(store, hdr, r, w); err != nil {
			log.Printf("beepd: %s: %v", conn.RemoteAddr(), err)
			return
		}
	}
}

// dispatch reads the request-specific payload for hdr.Request, runs it
// against store, and writes the response frame. The four codes are the
// BEEP_USER_ADD/DEL/UPD/GET constants from beep_db.h, renamed per spec §6
// to UserAdd/UserDel/UserUpd/UserGet.
func dispatch(store *Store, hdr cbuf.Header, r *cbuf.StreamReader, w *cbuf.StreamWriter) error {
	switch hdr.Request {
	case cbuf.UserAdd:
		return handleAdd(store, hdr, r, w)
	case cbuf.UserDel:
		return handleDel(store, hdr, r, w)
	case cbuf.UserUpd:
		return handleUpd(store, hdr, r, w)
	case cbuf.UserGet:
		return handleGet(store, hdr, r, w)
	default:
		return errors.New("unknown request code")
	}
}

func replyHeader(w *cbuf.StreamWriter, hdr cbuf.Header) error {
	return w.WriteHeader(cbuf.Header{Version: beepProtocolVersion, Request: hdr.Request})
}

func replyError(w *cbuf.StreamWriter, hdr cbuf.Header, cause error) error {
	if err := replyHeader(w, hdr); err != nil {
		return err
	}
	if err := w.WriteBool(false); err != nil {
		return err
	}
	msg := cause.Error()
	if len(msg) > cbuf.MaxTextLen {
		msg = msg[:cbuf.MaxTextLen]
	}
	if err := w.WriteString(msg); err != nil {
		return err
	}
	return w.Flush()
}

func handleAdd(store *Store, hdr cbuf.Header, r *cbuf.StreamReader, w *cbuf.StreamWriter) error {
	name, err := r.ReadString(cbuf.MaxNameLen)
	if err != nil {
		return err
	}
	nick, err := r.ReadString(cbuf.MaxNicknameLen)
	if err != nil {
		return err
	}
	email, err := r.ReadString(cbuf.MaxEmailLen)
	if err != nil {
		return err
	}

	id, addErr := store.Add(User{Name: name, Nick: nick, Email: email})
	if addErr != nil {
		return replyError(w, hdr, addErr)
	}

	if err := replyHeader(w, hdr); err != nil {
		return err
	}
	if err := w.WriteBool(true); err != nil {
		return err
	}
	if err := w.WriteUint64(id); err != nil {
		return err
	}
	return w.Flush()
}

func handleDel(store *Store, hdr cbuf.Header, r *cbuf.StreamReader, w *cbuf.StreamWriter) error {
	id, err := r.ReadUint64()
	if err != nil {
		return err
	}

	if delErr := store.Del(id); delErr != nil {
		return replyError(w, hdr, delErr)
	}

	if err := replyHeader(w, hdr); err != nil {
		return err
	}
	if err := w.WriteBool(true); err != nil {
		return err
	}
	return w.Flush()
}

func handleUpd(store *Store, hdr cbuf.Header, r *cbuf.StreamReader, w *cbuf.StreamWriter) error {
	id, err := r.ReadUint64()
	if err != nil {
		return err
	}
	name, err := r.ReadString(cbuf.MaxNameLen)
	if err != nil {
		return err
	}
	nick, err := r.ReadString(cbuf.MaxNicknameLen)
	if err != nil {
		return err
	}
	email, err := r.ReadString(cbuf.MaxEmailLen)
	if err != nil {
		return err
	}

	if updErr := store.Update(User{ID: id, Name: name, Nick: nick, Email: email}); updErr != nil {
		return replyError(w, hdr, updErr)
	}

	if err := replyHeader(w, hdr); err != nil {
		return err
	}
	if err := w.WriteBool(true); err != nil {
		return err
	}
	return w.Flush()
}

func handleGet(store *Store, hdr cbuf.Header, r *cbuf.StreamReader, w *cbuf.StreamWriter) error {
	name, err := r.ReadString(cbuf.MaxNameLen)
	if err != nil {
		return err
	}

	u, getErr := store.Get(name)
	if getErr != nil {
		return replyError(w, hdr, getErr)
	}

	if err := replyHeader(w, hdr); err != nil {
		return err
	}
	if err := w.WriteBool(true); err != nil {
		return err
	}
	if err := w.WriteUint64(u.ID); err != nil {
		return err
	}
	if err := w.WriteString(u.Name); err != nil {
		return err
	}
	if err := w.WriteString(u.Nick); err != nil {
		return err
	}
	if err := w.WriteString(u.Email); err != nil {
		return err
	}
	return w.Flush()
}
