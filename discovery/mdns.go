package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/grandcat/zeroconf"
)

const (
	// SelfService is the service type the bridge advertises itself under.
	SelfService = "_touch-able._tcp"
	// PairingService is browsed for remote apps that want to pair.
	PairingService = "_touch-remote._tcp"
	// ControlService is browsed for receivers that accept DACP commands.
	ControlService = "_dacp._tcp"
	// DefaultDomain is the mDNS domain.
	DefaultDomain = "local."
	// DefaultRefreshInterval is the background browse interval.
	DefaultRefreshInterval = 10 * time.Second
	// DefaultScanTimeout bounds each browse window.
	DefaultScanTimeout = 3 * time.Second
)

// TXT values a real DAAP host advertises.
const (
	txtVersion         = "1"
	touchAbleVersion   = "65541"
	deviceType         = "AppleTV"
	deviceVersion      = "1792"
	controlVersion     = "65539"
	advertisedProtocol = "100000"
)

type registerFunc func(instance, service, domain string, port int, text []string, ifaces []net.Interface) (*zeroconf.Server, error)
type browseFunc func(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error

// Config controls the broadcaster and browser.
type Config struct {
	Domain          string
	RefreshInterval time.Duration
	ScanTimeout     time.Duration

	// ServerID is the advertised instance name.
	ServerID   string
	ServerName string
	DatabaseID string
	// Address pins the advertised A record. Empty advertises all interfaces.
	Address string
	Port    int

	Logger logr.Logger

	registerFn registerFunc
	browseFn   browseFunc
}

func (c Config) withDefaults() Config {
	out := c
	if out.Domain == "" {
		out.Domain = DefaultDomain
	}
	if out.RefreshInterval <= 0 {
		out.RefreshInterval = DefaultRefreshInterval
	}
	if out.ScanTimeout <= 0 {
		out.ScanTimeout = DefaultScanTimeout
	}
	if out.registerFn == nil {
		if out.Address != "" {
			host := strings.ReplaceAll(out.ServerName, " ", "-") + ".local."
			ips := []string{out.Address}
			out.registerFn = func(instance, service, domain string, port int, text []string, ifaces []net.Interface) (*zeroconf.Server, error) {
				return zeroconf.RegisterProxy(instance, service, domain, port, host, ips, text, ifaces)
			}
		} else {
			out.registerFn = zeroconf.Register
		}
	}
	if out.browseFn == nil {
		out.browseFn = func(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
			resolver, err := zeroconf.NewResolver(nil)
			if err != nil {
				return fmt.Errorf("create mDNS resolver: %w", err)
			}
			return resolver.Browse(ctx, service, domain, entries)
		}
	}
	return out
}

func (c Config) validateForBroadcast() error {
	if strings.TrimSpace(c.ServerID) == "" {
		return errors.New("server ID is required")
	}
	if strings.TrimSpace(c.ServerName) == "" {
		return errors.New("server name is required")
	}
	if strings.TrimSpace(c.DatabaseID) == "" {
		return errors.New("database ID is required")
	}
	if c.Port <= 0 {
		return errors.New("port must be > 0")
	}
	return nil
}

// Broadcaster advertises the bridge as a DAAP host.
type Broadcaster struct {
	server *zeroconf.Server
}

// StartBroadcaster registers the _touch-able service.
func StartBroadcaster(config Config) (*Broadcaster, error) {
	cfg := config.withDefaults()
	if err := cfg.validateForBroadcast(); err != nil {
		return nil, err
	}

	txt := []string{
		"txtvers=" + txtVersion,
		"atSV=" + touchAbleVersion,
		"DbId=" + cfg.DatabaseID,
		"CtlN=" + cfg.ServerName,
		"DvTy=" + deviceType,
		"DvSv=" + deviceVersion,
		"atCV=" + controlVersion,
		"Ver=" + advertisedProtocol,
	}

	server, err := cfg.registerFn(cfg.ServerID, SelfService, cfg.Domain, cfg.Port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("register mDNS service: %w", err)
	}
	cfg.Logger.Info("advertising", "service", SelfService, "instance", cfg.ServerID, "port", cfg.Port)

	return &Broadcaster{server: server}, nil
}

// Stop unregisters the service.
func (b *Broadcaster) Stop() {
	if b == nil || b.server == nil {
		return
	}
	b.server.Shutdown()
}

// Service couples the broadcaster with the browser feeding a Registry.
type Service struct {
	Broadcaster *Broadcaster
	Browser     *Browser
}

// Start advertises the bridge and begins browsing into registry.
func Start(config Config, registry *Registry) (*Service, error) {
	cfg := config.withDefaults()

	broadcaster, err := StartBroadcaster(cfg)
	if err != nil {
		return nil, err
	}

	browser := NewBrowser(cfg, registry)
	if err := browser.Start(); err != nil {
		broadcaster.Stop()
		return nil, err
	}

	return &Service{
		Broadcaster: broadcaster,
		Browser:     browser,
	}, nil
}

// Stop stops browsing, then unregisters the advertisement.
func (s *Service) Stop() {
	if s == nil {
		return
	}
	if s.Browser != nil {
		s.Browser.Stop()
	}
	if s.Broadcaster != nil {
		s.Broadcaster.Stop()
	}
}
