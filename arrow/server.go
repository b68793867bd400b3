// Package arrow serves the trackpad stream that remotes open after the
// control prompt negotiates a key.
package arrow

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/go-logr/logr"

	"github.com/thiccaxe/DAAPRemoteServer/dacp"
	"github.com/thiccaxe/DAAPRemoteServer/metrics"
	"github.com/thiccaxe/DAAPRemoteServer/session"
)

const (
	readBufferSize = 4096
	// gestureWord is the index of the decrypted word carrying the arrow gesture.
	gestureWord = 7
)

// Decrypted gesture words.
const (
	GestureUp    uint32 = 10485938
	GestureDown  uint32 = 10486038
	GestureLeft  uint32 = 7209188
	GestureRight uint32 = 13762788
)

var gestureDirections = map[uint32]string{
	GestureUp:    "up",
	GestureDown:  "down",
	GestureLeft:  "left",
	GestureRight: "right",
}

// SessionMatcher finds the negotiated session a chunk belongs to.
type SessionMatcher interface {
	MatchStartBytes(prefix [4]byte) (session.Session, bool)
}

// Dispatcher forwards commands without blocking the connection.
type Dispatcher interface {
	Dispatch(command dacp.Command)
}

// Options configures a Server.
type Options struct {
	Sessions  SessionMatcher
	Forwarder Dispatcher
	Logger    logr.Logger
	Metrics   *metrics.Metrics
}

// Server accepts trackpad connections and turns arrow gestures into commands.
type Server struct {
	listener net.Listener
	options  Options
	log      logr.Logger

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}

	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Listen starts a TCP listener and accept loop.
func Listen(address string, options Options) (*Server, error) {
	if options.Sessions == nil {
		return nil, errors.New("arrow: session matcher is required")
	}
	if address == "" {
		address = ":0"
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("listen on %q: %w", address, err)
	}

	server := &Server{
		listener: listener,
		options:  options,
		log:      options.Logger,
		conns:    make(map[net.Conn]struct{}),
		closed:   make(chan struct{}),
	}

	server.wg.Add(1)
	go server.acceptLoop()
	return server, nil
}

// Addr returns the listening address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Close stops accepting, closes live connections, and waits for their handlers.
func (s *Server) Close() error {
	var closeErr error
	s.closeOnce.Do(func() {
		close(s.closed)
		closeErr = s.listener.Close()

		s.connsMu.Lock()
		for conn := range s.conns {
			_ = conn.Close()
		}
		s.connsMu.Unlock()

		s.wg.Wait()
	})
	return closeErr
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closed:
				return
			default:
			}

			s.log.Error(err, "Failed to accept trackpad connection")
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}

		if !s.track(conn) {
			_ = conn.Close()
			return
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) track(conn net.Conn) bool {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	select {
	case <-s.closed:
		return false
	default:
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.connsMu.Lock()
	delete(s.conns, conn)
	s.connsMu.Unlock()
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer s.untrack(conn)
	defer conn.Close()

	log := s.log.WithValues("remote", conn.RemoteAddr().String())
	log.V(1).Info("Trackpad connected")

	buf := make([]byte, readBufferSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			if reply := s.HandleChunk(buf[:n]); reply != nil {
				if _, werr := conn.Write(reply); werr != nil {
					log.Error(werr, "Failed to echo trackpad chunk")
					return
				}
			}
		}
		if err != nil {
			log.V(1).Info("Trackpad disconnected", "reason", err.Error())
			return
		}
	}
}

// HandleChunk processes one received chunk and returns the bytes to echo, or
// nil when the chunk matches no negotiated session.
func (s *Server) HandleChunk(chunk []byte) []byte {
	if len(chunk) < 4 {
		s.options.Metrics.ArrowFrame(false)
		s.log.V(1).Info("Dropping short trackpad chunk", "bytes", len(chunk))
		return nil
	}

	var prefix [4]byte
	copy(prefix[:], chunk[:4])
	sess, ok := s.options.Sessions.MatchStartBytes(prefix)
	if !ok {
		s.options.Metrics.ArrowFrame(false)
		s.log.V(1).Info("Dropping trackpad chunk for unknown session", "prefix", fmt.Sprintf("%x", prefix))
		return nil
	}
	s.options.Metrics.ArrowFrame(true)

	words := DecryptWords(chunk, sess.TrackpadKey)
	if direction, ok := Gesture(words); ok {
		s.log.V(1).Info("Arrow gesture", "session", sess.ID, "direction", direction)
		if command, ok := dacp.GestureCommands[direction]; ok && s.options.Forwarder != nil {
			s.options.Forwarder.Dispatch(command)
		}
	}

	reply := make([]byte, len(chunk))
	copy(reply, chunk)
	return reply
}

// DecryptWords splits chunk into big-endian words XORed with key. A trailing
// partial word is ignored.
func DecryptWords(chunk []byte, key uint32) []uint32 {
	words := make([]uint32, 0, len(chunk)/4)
	for i := 0; i+4 <= len(chunk); i += 4 {
		words = append(words, binary.BigEndian.Uint32(chunk[i:i+4])^key)
	}
	return words
}

// Gesture returns the arrow direction carried by decrypted words.
func Gesture(words []uint32) (string, bool) {
	if len(words) <= gestureWord {
		return "", false
	}
	direction, ok := gestureDirections[words[gestureWord]]
	return direction, ok
}
