package discovery

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
)

type refreshRequest struct {
	ctx  context.Context
	done chan error
}

type browseTarget struct {
	kind    Kind
	service string
}

var browseTargets = []browseTarget{
	{kind: KindPairing, service: PairingService},
	{kind: KindControl, service: ControlService},
}

// Browser periodically browses the pairing and control service types and
// applies the differences between consecutive scans to a Registry.
type Browser struct {
	cfg      Config
	registry *Registry

	mu   sync.Mutex
	seen map[Kind]map[string]Advertisement

	startOnce sync.Once
	stopOnce  sync.Once

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	refreshRequests chan refreshRequest
}

// NewBrowser creates a browser with config defaults applied.
func NewBrowser(config Config, registry *Registry) *Browser {
	return &Browser{
		cfg:      config.withDefaults(),
		registry: registry,
		seen: map[Kind]map[string]Advertisement{
			KindPairing: {},
			KindControl: {},
		},
		refreshRequests: make(chan refreshRequest),
	}
}

// Start begins background browsing.
func (b *Browser) Start() error {
	b.startOnce.Do(func() {
		b.ctx, b.cancel = context.WithCancel(context.Background())
		b.wg.Add(1)
		go b.loop()
	})
	return nil
}

// Stop stops background browsing and waits for the current scan to end.
func (b *Browser) Stop() {
	b.stopOnce.Do(func() {
		if b.cancel != nil {
			b.cancel()
		}
		b.wg.Wait()
	})
}

// Refresh triggers an immediate scan of both service types.
func (b *Browser) Refresh(ctx context.Context) error {
	if b.ctx == nil {
		return errors.New("browser is not started")
	}

	req := refreshRequest{
		ctx:  ctx,
		done: make(chan error, 1),
	}

	select {
	case b.refreshRequests <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-b.ctx.Done():
		return errors.New("browser is stopped")
	}

	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-b.ctx.Done():
		return errors.New("browser is stopped")
	}
}

func (b *Browser) loop() {
	defer b.wg.Done()

	b.scanAll(context.Background())

	ticker := time.NewTicker(b.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.scanAll(context.Background())
		case req := <-b.refreshRequests:
			req.done <- b.scanAll(req.ctx)
		case <-b.ctx.Done():
			return
		}
	}
}

func (b *Browser) scanAll(requestCtx context.Context) error {
	errs := make([]error, len(browseTargets))
	var wg sync.WaitGroup
	for i, target := range browseTargets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = b.scan(requestCtx, target)
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

func (b *Browser) scan(requestCtx context.Context, target browseTarget) error {
	scanCtx, cancel := context.WithTimeout(b.ctx, b.cfg.ScanTimeout)
	defer cancel()

	go func() {
		select {
		case <-requestCtx.Done():
			cancel()
		case <-scanCtx.Done():
		}
	}()

	entries := make(chan *zeroconf.ServiceEntry, 32)
	collected := make(map[string]Advertisement)
	collectorDone := make(chan struct{})

	go func() {
		defer close(collectorDone)
		for {
			select {
			case <-scanCtx.Done():
				return
			case entry := <-entries:
				if entry == nil {
					continue
				}
				ad := parseEntry(entry)
				collected[ad.Name] = ad
			}
		}
	}()

	if err := b.cfg.browseFn(scanCtx, target.service, b.cfg.Domain, entries); err != nil {
		b.cfg.Logger.Error(err, "browse failed", "service", target.service)
		return err
	}

	<-scanCtx.Done()
	<-collectorDone

	// An interrupted scan is partial; applying it would evict live peers.
	if b.ctx.Err() != nil || requestCtx.Err() != nil {
		return nil
	}
	b.applySnapshot(target.kind, collected)
	return nil
}

func (b *Browser) applySnapshot(kind Kind, next map[string]Advertisement) {
	b.mu.Lock()
	defer b.mu.Unlock()

	log := b.cfg.Logger.WithValues("kind", kind)
	previous := b.seen[kind]
	b.seen[kind] = next

	for name, ad := range next {
		old, exists := previous[name]
		if exists && advertisementsEqual(old, ad) {
			continue
		}
		if err := b.registry.ApplyAdvertisement(kind, ad); err != nil {
			log.Info("ignoring advertisement", "name", name, "reason", err.Error())
			continue
		}
		log.V(1).Info("peer available", "name", name, "addresses", ad.Addresses, "port", ad.Port)
	}

	for name := range previous {
		if _, exists := next[name]; !exists {
			if b.registry.Remove(name, kind) {
				log.V(1).Info("peer removed", "name", name)
			}
		}
	}
}

func parseEntry(entry *zeroconf.ServiceEntry) Advertisement {
	addresses := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	seen := make(map[string]struct{})
	for _, ip := range append(append([]net.IP(nil), entry.AddrIPv4...), entry.AddrIPv6...) {
		if ip == nil {
			continue
		}
		raw := ip.String()
		if _, exists := seen[raw]; exists {
			continue
		}
		seen[raw] = struct{}{}
		addresses = append(addresses, raw)
	}

	return Advertisement{
		Name:      entry.ServiceInstanceName(),
		Instance:  strings.TrimSpace(entry.Instance),
		Port:      entry.Port,
		Addresses: addresses,
		Text:      txtToMap(entry.Text),
	}
}

func txtToMap(text []string) map[string]string {
	out := make(map[string]string, len(text))
	for _, entry := range text {
		parts := strings.SplitN(entry, "=", 2)
		key := strings.TrimSpace(parts[0])
		if key == "" {
			continue
		}
		if len(parts) == 1 {
			out[key] = ""
			continue
		}
		out[key] = strings.TrimSpace(parts[1])
	}
	return out
}

func advertisementsEqual(a, b Advertisement) bool {
	if a.Name != b.Name ||
		a.Instance != b.Instance ||
		a.Port != b.Port ||
		len(a.Addresses) != len(b.Addresses) ||
		len(a.Text) != len(b.Text) {
		return false
	}
	for i := range a.Addresses {
		if a.Addresses[i] != b.Addresses[i] {
			return false
		}
	}
	for k, v := range a.Text {
		if other, ok := b.Text[k]; !ok || other != v {
			return false
		}
	}
	return true
}
