package server

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"
)

// startTestServer brings up a real TCP listener on loopback and returns its
// address alongside the *Server, so tests exercise the full Acceptor ->
// Session -> registry path rather than calling internals directly.
func startTestServer(t *testing.T, opts ...Option) (string, *Server) {
	t.Helper()
	srv, err := NewServer(":0", opts...)
	fatalIfErr(t, err, "NewServer")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	fatalIfErr(t, err, "Listen")

	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return ln.Addr().String(), srv
}

func readLine(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	line, err := r.ReadString('\n')
	fatalIfErr(t, err, "ReadString")
	return strings.TrimRight(line, "\r\n")
}

// register dials addr, completes the Naming handshake with username, and
// returns the reader/conn positioned right after the success line and the
// command summary that follows it.
func register(t *testing.T, addr, username string) (*bufio.Reader, net.Conn) {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	fatalIfErr(t, err, "Dial")
	r := bufio.NewReader(conn)

	readLine(t, r) // naming prompt
	fmt.Fprintf(conn, "%s\n", username)

	success := readLine(t, r)
	if success != "[SUCCESS] Connected to chat server!" {
		t.Fatalf("registration of %q failed: %q", username, success)
	}
	readLine(t, r) // commands summary
	return r, conn
}

func TestIntegrationDuplicateUsernameRejected(t *testing.T) {
	t.Parallel()
	var log bytes.Buffer
	addr, _ := startTestServer(t, WithEventLog(&log))

	_, aliceConn := register(t, addr, "alice")
	defer aliceConn.Close()

	conn, err := net.Dial("tcp", addr)
	fatalIfErr(t, err, "Dial")
	defer conn.Close()
	r := bufio.NewReader(conn)

	readLine(t, r) // naming prompt
	fmt.Fprintf(conn, "alice\n")
	rejected := readLine(t, r)
	if rejected != "[ERROR] Username already taken. Choose another." {
		t.Fatalf("got %q, want duplicate-username rejection", rejected)
	}

	readLine(t, r) // reprompt
	fmt.Fprintf(conn, "alice2\n")
	success := readLine(t, r)
	if success != "[SUCCESS] Connected to chat server!" {
		t.Fatalf("got %q, want success with a free name", success)
	}

	if !strings.Contains(log.String(), "REJECTED username already taken: alice") {
		t.Fatalf("event log missing REJECTED entry, got: %s", log.String())
	}
}

func TestIntegrationBroadcastFanOut(t *testing.T) {
	t.Parallel()
	addr, _ := startTestServer(t)

	ar, aConn := register(t, addr, "alice")
	br, bConn := register(t, addr, "bob")
	defer aConn.Close()
	defer bConn.Close()

	fmt.Fprintf(aConn, "/join general\n")
	readLine(t, ar)
	fmt.Fprintf(bConn, "/join general\n")
	readLine(t, br)

	fmt.Fprintf(aConn, "/broadcast hello room\n")

	ack := readLine(t, ar)
	if ack != "[SUCCESS] Message broadcasted." {
		t.Fatalf("sender ack = %q", ack)
	}

	got := readLine(t, br)
	want := "[general] alice: hello room"
	if got != want {
		t.Fatalf("recipient got %q, want %q", got, want)
	}
}

func TestIntegrationRoomSeparation(t *testing.T) {
	t.Parallel()
	addr, _ := startTestServer(t)

	ar, aConn := register(t, addr, "alice")
	br, bConn := register(t, addr, "bob")
	defer aConn.Close()
	defer bConn.Close()

	fmt.Fprintf(aConn, "/join roomA\n")
	readLine(t, ar)
	fmt.Fprintf(bConn, "/join roomB\n")
	readLine(t, br)

	fmt.Fprintf(aConn, "/broadcast hi\n")
	readLine(t, ar) // ack

	done := make(chan string, 1)
	go func() {
		line, err := br.ReadString('\n')
		if err != nil {
			done <- ""
			return
		}
		done <- line
	}()

	select {
	case line := <-done:
		if line != "" {
			t.Fatalf("bob in a different room received a line meant for roomA: %q", line)
		}
	case <-time.After(150 * time.Millisecond):
		// no line arrived: rooms are correctly isolated.
	}
}

func TestIntegrationOversizeFileRejected(t *testing.T) {
	t.Parallel()
	addr, _ := startTestServer(t, WithFileResolver(stubResolver{size: MaxFileSize + 1}))

	ar, aConn := register(t, addr, "alice")
	_, bConn := register(t, addr, "bob")
	defer aConn.Close()
	defer bConn.Close()

	fmt.Fprintf(aConn, "/sendfile report.txt bob\n")
	got := readLine(t, ar)
	want := "[ERROR] File exceeds size limit (3MB)."
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestIntegrationUploadQueueBackpressure(t *testing.T) {
	t.Parallel()
	addr, _ := startTestServer(t,
		WithQueueCapacity(1),
		WithTransferDelay(50*time.Millisecond),
		WithFileResolver(stubResolver{size: 10}),
	)

	ar, aConn := register(t, addr, "alice")
	br, bConn := register(t, addr, "bob")
	_, cConn := register(t, addr, "carol")
	defer aConn.Close()
	defer bConn.Close()
	defer cConn.Close()

	fmt.Fprintf(aConn, "/sendfile a.txt carol\n")
	first := readLine(t, ar)
	if first != "[SUCCESS] File added to upload queue." {
		t.Fatalf("first enqueue = %q, want immediate success", first)
	}

	fmt.Fprintf(bConn, "/sendfile b.txt carol\n")
	waiting := readLine(t, br)
	if waiting != "[INFO] Upload queue full. Waiting..." {
		t.Fatalf("second enqueue = %q, want queue-full notice", waiting)
	}

	queued := readLine(t, br)
	if queued != "[SUCCESS] File queued for upload." {
		t.Fatalf("second enqueue follow-up = %q, want queued success after a slot freed", queued)
	}
}

func TestIntegrationGracefulShutdownNotifiesSessions(t *testing.T) {
	t.Parallel()
	var log bytes.Buffer
	addr, srv := startTestServer(t, WithEventLog(&log))

	ar, aConn := register(t, addr, "alice")
	br, bConn := register(t, addr, "bob")
	defer aConn.Close()
	defer bConn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	shutdownErr := make(chan error, 1)
	go func() { shutdownErr <- srv.Shutdown(ctx) }()

	// Shutdown waits for sessions to end on their own, so each client
	// disconnects once it has read the notice.
	clients := []struct {
		r    *bufio.Reader
		conn net.Conn
	}{{ar, aConn}, {br, bConn}}
	for _, c := range clients {
		line := readLine(t, c.r)
		if line != "[SERVER] Server shutting down. Goodbye!" {
			t.Fatalf("got %q, want shutdown notice", line)
		}
		c.conn.Close()
	}
	fatalIfErr(t, <-shutdownErr, "Shutdown")

	if !strings.Contains(log.String(), "SHUTDOWN notified 2 session(s)") {
		t.Fatalf("event log missing SHUTDOWN count, got: %s", log.String())
	}
}
