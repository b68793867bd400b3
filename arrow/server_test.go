package arrow

import (
	"encoding/binary"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/thiccaxe/DAAPRemoteServer/dacp"
	"github.com/thiccaxe/DAAPRemoteServer/session"
)

const testSubText uint32 = 1471545639

type recordingDispatcher struct {
	mu       sync.Mutex
	commands []dacp.Command
	notify   chan struct{}
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{notify: make(chan struct{}, 16)}
}

func (d *recordingDispatcher) Dispatch(command dacp.Command) {
	d.mu.Lock()
	d.commands = append(d.commands, command)
	d.mu.Unlock()
	d.notify <- struct{}{}
}

func (d *recordingDispatcher) snapshot() []dacp.Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]dacp.Command(nil), d.commands...)
}

func negotiatedStore(t *testing.T, cmte string) (*session.Store, session.Session) {
	t.Helper()

	store := session.NewStore()
	id, err := store.Create()
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	trackpad, err := session.NegotiateTrackpad(testSubText, cmte)
	if err != nil {
		t.Fatalf("NegotiateTrackpad failed: %v", err)
	}
	if !store.Update(id, trackpad.Apply) {
		t.Fatalf("Update failed for %s", id)
	}
	sess, _ := store.Get(id)
	return store, sess
}

// encryptFrame builds an eight word chunk whose first word decrypts to the
// start word and whose gesture word decrypts to gesture.
func encryptFrame(key, gesture uint32) []byte {
	plain := []uint32{32, 1, 2, 3, 4, 5, 6, gesture}
	out := make([]byte, 4*len(plain))
	for i, word := range plain {
		binary.BigEndian.PutUint32(out[i*4:], word^key)
	}
	return out
}

func newTestServer(t *testing.T, sessions SessionMatcher, dispatcher Dispatcher) *Server {
	t.Helper()
	server, err := Listen("127.0.0.1:0", Options{Sessions: sessions, Forwarder: dispatcher})
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	t.Cleanup(func() {
		_ = server.Close()
	})
	return server
}

func TestHandleChunkForwardsEachDirectionOnce(t *testing.T) {
	store, sess := negotiatedStore(t, "51234")
	if sess.TrackpadKey != 0x05c9b657 {
		t.Fatalf("unexpected trackpad key %#x", sess.TrackpadKey)
	}

	cases := []struct {
		gesture uint32
		want    dacp.Command
	}{
		{GestureUp, dacp.CommandVolumeUp},
		{GestureDown, dacp.CommandVolumeDown},
		{GestureLeft, dacp.CommandPrevItem},
		{GestureRight, dacp.CommandNextItem},
	}
	for _, tc := range cases {
		dispatcher := newRecordingDispatcher()
		server := newTestServer(t, store, dispatcher)

		chunk := encryptFrame(sess.TrackpadKey, tc.gesture)
		reply := server.HandleChunk(chunk)
		if string(reply) != string(chunk) {
			t.Fatalf("expected echo of original bytes for %s", tc.want)
		}
		got := dispatcher.snapshot()
		if len(got) != 1 || got[0] != tc.want {
			t.Fatalf("expected exactly [%s], got %v", tc.want, got)
		}
	}
}

func TestHandleChunkDropsUnknownSession(t *testing.T) {
	store, sess := negotiatedStore(t, "51234")
	dispatcher := newRecordingDispatcher()
	server := newTestServer(t, store, dispatcher)

	// encrypted for a different client port
	other := session.DeriveTrackpadKey(testSubText, 12345)
	reply := server.HandleChunk(encryptFrame(other, GestureUp))
	if reply != nil {
		t.Fatalf("expected no echo for unmatched chunk")
	}
	if got := dispatcher.snapshot(); len(got) != 0 {
		t.Fatalf("expected nothing forwarded, got %v", got)
	}

	after, ok := store.Get(sess.ID)
	if !ok || after != sess {
		t.Fatalf("expected session to be unchanged, got %+v", after)
	}
	if reply := server.HandleChunk([]byte{0x05, 0xc9}); reply != nil {
		t.Fatalf("expected short chunk to be dropped")
	}
}

func TestHandleChunkIgnoresUnnegotiatedSessions(t *testing.T) {
	store := session.NewStore()
	if _, err := store.Create(); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	dispatcher := newRecordingDispatcher()
	server := newTestServer(t, store, dispatcher)

	// zero key and zero start bytes must not match a fresh session
	if reply := server.HandleChunk(make([]byte, 32)); reply != nil {
		t.Fatalf("expected unnegotiated session not to match")
	}
}

func TestHandleChunkWithoutGestureStillEchoes(t *testing.T) {
	store, sess := negotiatedStore(t, "34999")
	dispatcher := newRecordingDispatcher()
	server := newTestServer(t, store, dispatcher)

	chunk := encryptFrame(sess.TrackpadKey, 42)[:20]
	chunk = append(chunk, 0xff, 0xee)
	reply := server.HandleChunk(chunk)
	if string(reply) != string(chunk) {
		t.Fatalf("expected echo of original bytes")
	}
	if got := dispatcher.snapshot(); len(got) != 0 {
		t.Fatalf("expected nothing forwarded, got %v", got)
	}
}

func TestServerEchoesOverTCP(t *testing.T) {
	store, sess := negotiatedStore(t, "51234")
	dispatcher := newRecordingDispatcher()
	server := newTestServer(t, store, dispatcher)

	conn, err := net.DialTimeout("tcp", server.Addr().String(), 2*time.Second)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()
	if err := conn.SetDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("set deadline failed: %v", err)
	}

	chunk := encryptFrame(sess.TrackpadKey, GestureRight)
	if _, err := conn.Write(chunk); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	echo := make([]byte, len(chunk))
	if _, err := io.ReadFull(conn, echo); err != nil {
		t.Fatalf("read echo failed: %v", err)
	}
	if string(echo) != string(chunk) {
		t.Fatalf("unexpected echo %x", echo)
	}

	select {
	case <-dispatcher.notify:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for dispatch")
	}
	if got := dispatcher.snapshot(); len(got) != 1 || got[0] != dacp.CommandNextItem {
		t.Fatalf("expected [nextitem], got %v", got)
	}
}

func TestCloseDisconnectsClients(t *testing.T) {
	store, _ := negotiatedStore(t, "51234")
	server, err := Listen("127.0.0.1:0", Options{Sessions: store})
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}

	conn, err := net.DialTimeout("tcp", server.Addr().String(), 2*time.Second)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	done := make(chan error, 1)
	go func() {
		done <- server.Close()
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("Close did not return with a connected client")
	}

	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("set deadline failed: %v", err)
	}
	if _, err := conn.Read(make([]byte, 1)); err == nil {
		t.Fatalf("expected connection to be closed")
	}
}

func TestDecryptWordsAndGesture(t *testing.T) {
	words := DecryptWords(encryptFrame(0x9089b657, GestureLeft), 0x9089b657)
	if len(words) != 8 || words[0] != 32 {
		t.Fatalf("unexpected words %v", words)
	}
	direction, ok := Gesture(words)
	if !ok || direction != "left" {
		t.Fatalf("expected left, got %q", direction)
	}
	if _, ok := Gesture(words[:7]); ok {
		t.Fatalf("expected no gesture in seven words")
	}
}
