// Package daap implements the HTTP endpoints a DAAP remote app talks to.
package daap

import (
	"context"
	"net/http"
	"time"

	"github.com/go-logr/logr"

	"github.com/thiccaxe/DAAPRemoteServer/config"
	"github.com/thiccaxe/DAAPRemoteServer/dacp"
	"github.com/thiccaxe/DAAPRemoteServer/discovery"
	"github.com/thiccaxe/DAAPRemoteServer/dmap"
	"github.com/thiccaxe/DAAPRemoteServer/metrics"
	"github.com/thiccaxe/DAAPRemoteServer/models"
	"github.com/thiccaxe/DAAPRemoteServer/session"
)

const (
	// ContentType is set on every DMAP response.
	ContentType = "application/x-dmap-tagged"
	// ServerHeader and DAAPServerHeader mimic the media server remotes expect.
	ServerHeader     = "Darwin"
	DAAPServerHeader = "iTunes/11.1b37 (OS X)"

	// DefaultIdleDelay holds a control prompt poll past the last known prompt.
	DefaultIdleDelay = 10 * time.Second
	// DefaultLongPollDelay holds a play status poll for revision 2.
	DefaultLongPollDelay = 60 * time.Second
	// DefaultPairTimeout bounds the pairing request to a remote.
	DefaultPairTimeout = 10 * time.Second
)

// CredentialStore persists paired remotes.
type CredentialStore interface {
	SaveCredential(cred models.Credential) error
	HasPairingGUID(guid string) (bool, error)
}

// CommandSender forwards a command and waits for the outcome.
type CommandSender interface {
	Send(ctx context.Context, command dacp.Command) error
}

// Options configures a Server.
type Options struct {
	Config      config.DeviceConfig
	Sessions    *session.Store
	Registry    *discovery.Registry
	Credentials CredentialStore
	Forwarder   CommandSender
	Logger      logr.Logger
	Metrics     *metrics.Metrics
	// Client is used for pairing requests.
	Client *http.Client

	IdleDelay     time.Duration
	LongPollDelay time.Duration
	// Now overrides the clock reported by server-info.
	Now func() time.Time
}

// Server holds the state shared by the endpoint handlers.
type Server struct {
	cfg         config.DeviceConfig
	sessions    *session.Store
	registry    *discovery.Registry
	credentials CredentialStore
	forwarder   CommandSender
	log         logr.Logger
	metrics     *metrics.Metrics
	client      *http.Client

	idleDelay     time.Duration
	longPollDelay time.Duration
	now           func() time.Time
}

// NewServer fills unset options with defaults.
func NewServer(opts Options) *Server {
	s := &Server{
		cfg:           opts.Config,
		sessions:      opts.Sessions,
		registry:      opts.Registry,
		credentials:   opts.Credentials,
		forwarder:     opts.Forwarder,
		log:           opts.Logger,
		metrics:       opts.Metrics,
		client:        opts.Client,
		idleDelay:     opts.IdleDelay,
		longPollDelay: opts.LongPollDelay,
		now:           opts.Now,
	}
	if s.sessions == nil {
		s.sessions = session.NewStore()
	}
	if s.registry == nil {
		s.registry = discovery.NewRegistry()
	}
	if s.client == nil {
		s.client = &http.Client{Timeout: DefaultPairTimeout}
	}
	if s.idleDelay <= 0 {
		s.idleDelay = DefaultIdleDelay
	}
	if s.longPollDelay <= 0 {
		s.longPollDelay = DefaultLongPollDelay
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Handler routes every endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /remotes", s.handleRemotes)
	mux.HandleFunc("GET /pair", s.handlePair)
	mux.HandleFunc("GET /server-info", s.handleServerInfo)
	mux.HandleFunc("GET /login", s.handleLogin)
	mux.HandleFunc("GET /logout", s.handleLogout)
	mux.HandleFunc("POST /ctrl-int", s.handleCtrlInt)
	mux.HandleFunc("GET /ctrl-int/1/playstatusupdate", s.handlePlayStatusUpdate)
	mux.HandleFunc("POST /ctrl-int/1/controlpromptentry", s.handleControlPromptEntry)
	mux.HandleFunc("GET /controlpromptupdate", s.handleControlPromptUpdate)
	mux.HandleFunc("POST /playqueue-contents", s.handlePlayQueueContents)
	mux.Handle("GET /metrics", s.metrics.Handler())
	return s.logRequests(mux)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		started := time.Now()
		next.ServeHTTP(rec, r)
		s.log.V(1).Info("Handled request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(started).String(),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func setDMAPHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", ContentType)
	h.Set("DAAP-Server", DAAPServerHeader)
	h.Set("Server", ServerHeader)
}

// writeDMAP encodes tags as the response body. Statuses that forbid a body
// send headers only.
func (s *Server) writeDMAP(w http.ResponseWriter, status int, tags ...dmap.Tag) {
	setDMAPHeaders(w)
	if len(tags) == 0 || status == http.StatusNoContent || status == http.StatusNotModified {
		w.WriteHeader(status)
		return
	}

	body, err := dmap.Encode(tags...)
	if err != nil {
		s.log.Error(err, "Failed to encode response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		s.log.V(1).Info("Failed to write response", "error", err.Error())
	}
}

// sleep waits for d unless ctx ends first.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
