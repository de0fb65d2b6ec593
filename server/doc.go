// Package server implements the concurrent core of a multi-user TCP chat
// server: the connection/session state machine, a registry of online
// users, a room membership model with broadcast fan-out, and a bounded
// file-transfer queue with backpressure.
//
// # Overview
//
// A Server binds one TCP port and runs an accept loop admitting up to a
// fixed cap of concurrent sessions. Each accepted connection gets its own
// Session, driven by a Naming -> Active -> Terminated state machine on its
// own goroutine. Sessions share a userRegistry (name -> Session) and a
// roomRegistry (name -> room members), plus a single bounded upload queue
// drained by one Transfer worker.
//
// # Getting started
//
//	package main
//
//	import (
//	    "log"
//	    "github.com/briarhall/chatcore/server"
//	)
//
//	func main() {
//	    s, err := server.NewServer(":6000")
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    log.Fatal(s.ListenAndServe())
//	}
//
// # Protocol
//
// The wire protocol is plain text, line-oriented, newline-terminated.
// After connecting, a client is prompted for a username; once registered
// it may issue /join, /leave, /broadcast, /whisper, /sendfile, and /exit.
// Apart from the username prompt and the command summary sent after
// registration, every server-to-client line carries one of the prefixes [ERROR],
// [SUCCESS], [INFO], [WHISPER from ...], [FILE], [SERVER], or a
// room-tagged [<room>] <sender>: <msg>.
//
// # Graceful shutdown
//
//	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
//	defer cancel()
//	s.Shutdown(ctx)
package server
