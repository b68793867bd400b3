package dacp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-logr/logr"

	"github.com/thiccaxe/DAAPRemoteServer/discovery"
	"github.com/thiccaxe/DAAPRemoteServer/metrics"
)

const (
	// DefaultRequestTimeout bounds one command request.
	DefaultRequestTimeout = 5 * time.Second
	// maxRetries allows a single reload-and-retry after the first attempt.
	maxRetries = 1
)

var (
	// ErrNoTarget means the identity file could not be loaded.
	ErrNoTarget = errors.New("dacp: no receiver identity loaded")
	// ErrNoControlPeer means no discovered control peer matches the receiver's DACP id.
	ErrNoControlPeer = errors.New("dacp: no matching control peer")
	// ErrRejected means the receiver answered with a non-2xx status.
	ErrRejected = errors.New("dacp: command rejected")
)

// Command is a DACP control command name.
type Command string

const (
	CommandPlayPause  Command = "playpause"
	CommandStop       Command = "stop"
	CommandPrevItem   Command = "previtem"
	CommandNextItem   Command = "nextitem"
	CommandVolumeUp   Command = "volumeup"
	CommandVolumeDown Command = "volumedown"
)

// GestureCommands maps trackpad arrow directions to commands.
var GestureCommands = map[string]Command{
	"left":  CommandPrevItem,
	"right": CommandNextItem,
	"down":  CommandVolumeDown,
	"up":    CommandVolumeUp,
}

// EventCommands maps control prompt button events to commands. An empty
// command means the event is recognized but not forwarded.
var EventCommands = map[string]Command{
	"playpause": CommandPlayPause,
	"menu":      "",
	"topmenu":   CommandStop,
	"select":    "",
}

// LookupEvent returns the command for a control prompt event.
func LookupEvent(event string) (Command, bool) {
	cmd, ok := EventCommands[event]
	return cmd, ok && cmd != ""
}

// PeerResolver finds the control peer advertising a DACP id.
type PeerResolver interface {
	FindControlPeerContaining(substr string) (discovery.ControlPeer, bool)
}

// Options configures a Forwarder.
type Options struct {
	// Path of the receiver identity file.
	Path     string
	Resolver PeerResolver
	Client   *http.Client
	Logger   logr.Logger
	Metrics  *metrics.Metrics
	// RequestTimeout bounds asynchronous dispatches.
	RequestTimeout time.Duration
}

// Forwarder sends commands to the receiver, reloading its identity on demand.
type Forwarder struct {
	path     string
	resolver PeerResolver
	client   *http.Client
	log      logr.Logger
	metrics  *metrics.Metrics
	timeout  time.Duration

	mu     sync.Mutex
	target *Target

	wg sync.WaitGroup
}

// NewForwarder creates a forwarder with no identity loaded.
func NewForwarder(opts Options) *Forwarder {
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Forwarder{
		path:     opts.Path,
		resolver: opts.Resolver,
		client:   client,
		log:      opts.Logger,
		metrics:  opts.Metrics,
		timeout:  timeout,
	}
}

// Reload re-reads the identity file. On failure the cached identity is cleared.
func (f *Forwarder) Reload() error {
	f.metrics.TargetReload()
	target, err := LoadTarget(f.path)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.target = nil
		f.log.Error(err, "Failed to load receiver identity", "path", f.path)
		return err
	}
	f.target = &target
	return nil
}

// Target returns the cached identity, if any.
func (f *Forwarder) Target() (Target, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.target == nil {
		return Target{}, false
	}
	return *f.target, true
}

// Send forwards command to the receiver. A missing identity, a missing control
// peer, or a failed request triggers one identity reload and one retry.
func (f *Forwarder) Send(ctx context.Context, command Command) error {
	attempt := 0
	operation := func() error {
		attempt++
		if attempt > 1 {
			_ = f.Reload()
		}
		return f.attempt(ctx, command)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(&backoff.ZeroBackOff{}, maxRetries), ctx)
	err := backoff.Retry(operation, policy)
	f.metrics.Forward(string(command), forwardResult(err, attempt))
	if err != nil {
		f.log.Error(err, "Failed to forward command", "command", command, "attempts", attempt)
		return err
	}
	f.log.V(1).Info("Forwarded command", "command", command, "attempts", attempt)
	return nil
}

// Dispatch forwards command in the background.
func (f *Forwarder) Dispatch(command Command) {
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 2*f.timeout)
		defer cancel()
		_ = f.Send(ctx, command)
	}()
}

// Wait blocks until every dispatched command has finished.
func (f *Forwarder) Wait() {
	f.wg.Wait()
}

func (f *Forwarder) attempt(ctx context.Context, command Command) error {
	target, ok := f.Target()
	if !ok {
		return ErrNoTarget
	}
	if f.resolver == nil {
		return ErrNoControlPeer
	}
	peer, ok := f.resolver.FindControlPeerContaining(target.DACPID)
	if !ok || len(peer.Addresses) == 0 {
		return fmt.Errorf("%w: %s", ErrNoControlPeer, target.DACPID)
	}

	url := "http://" + net.JoinHostPort(peer.Addresses[0], strconv.Itoa(peer.Port)) + "/ctrl-int/1/" + string(command)
	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Active-Remote", target.ActiveRemote)

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("send %s: %w", command, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s returned %d", ErrRejected, command, resp.StatusCode)
	}
	return nil
}

func forwardResult(err error, attempts int) string {
	switch {
	case err == nil && attempts > 1:
		return metrics.ResultRetried
	case err == nil:
		return metrics.ResultOK
	case errors.Is(err, ErrNoTarget):
		return metrics.ResultNoTarget
	case errors.Is(err, ErrNoControlPeer):
		return metrics.ResultNoPeer
	default:
		return metrics.ResultFailed
	}
}
