// Command beepd is the auxiliary RPC-style application spec §1 says cbuf
// is "included because it exemplifies" — a worked consumer of the tagged
// binary frame format, handling the four request codes named in §6
// (USER_ADD/USER_DEL/USER_UPD/USER_GET) over plain TCP.
//
// Grounded on original_source/apps/beep/beep_db.h for the request codes,
// field limits, and user_add/user_del/user_update/user_get contracts; the
// actual persistence layer (beep_db's real backing store) is out of scope
// per spec §1's list of external collaborators, so this serves requests
// against an in-memory Store instead.
package main

import (
	"flag"
	"log"
	"net"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:9090", "address to listen on")
	flag.Parse()

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		log.Fatalf("beepd: listen: %v", err)
	}
	defer ln.Close()

	store := NewStore()
	log.Printf("beepd: listening on %s", ln.Addr())

	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Printf("beepd: accept: %v", err)
			continue
		}
		go handleConn(store, conn)
	}
}
