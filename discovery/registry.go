package discovery

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Kind selects which of the two browsed service types a peer belongs to.
type Kind string

const (
	// KindPairing is a remote app advertising _touch-remote._tcp.
	KindPairing Kind = "pairing"
	// KindControl is a receiver advertising _dacp._tcp.
	KindControl Kind = "control"
)

// ErrMalformedAdvertisement indicates an advertisement missing required TXT properties.
var ErrMalformedAdvertisement = errors.New("discovery: malformed advertisement")

// PairingPeer is a remote app that can be paired with.
type PairingPeer struct {
	Name        string   `json:"fqn"`
	Addresses   []string `json:"addresses"`
	Port        int      `json:"port"`
	PairingGUID string   `json:"pairing_guid"`
	DisplayName string   `json:"name"`
}

// ControlPeer is a receiver that accepts DACP control requests.
type ControlPeer struct {
	Name        string   `json:"fqn"`
	Addresses   []string `json:"addresses"`
	Port        int      `json:"port"`
	DisplayName string   `json:"name"`
}

// Advertisement is one resolved mDNS service instance.
type Advertisement struct {
	Name      string
	Instance  string
	Port      int
	Addresses []string
	Text      map[string]string
}

// orderedPeers keeps peers in insertion order. Re-inserting a name moves it
// to the end.
type orderedPeers[T any] struct {
	names []string
	peers map[string]T
}

func newOrderedPeers[T any]() orderedPeers[T] {
	return orderedPeers[T]{peers: make(map[string]T)}
}

func (o *orderedPeers[T]) upsert(name string, peer T) {
	o.remove(name)
	o.names = append(o.names, name)
	o.peers[name] = peer
}

func (o *orderedPeers[T]) remove(name string) bool {
	if _, ok := o.peers[name]; !ok {
		return false
	}
	delete(o.peers, name)
	for i, n := range o.names {
		if n == name {
			o.names = append(o.names[:i], o.names[i+1:]...)
			break
		}
	}
	return true
}

func (o *orderedPeers[T]) list() []T {
	out := make([]T, 0, len(o.names))
	for _, name := range o.names {
		out = append(out, o.peers[name])
	}
	return out
}

// Registry holds the live pairing and control peers seen on the network.
// It performs no I/O; the Browser drives it.
type Registry struct {
	mu      sync.RWMutex
	pairing orderedPeers[PairingPeer]
	control orderedPeers[ControlPeer]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		pairing: newOrderedPeers[PairingPeer](),
		control: newOrderedPeers[ControlPeer](),
	}
}

// UpsertPairingPeer stores or replaces a pairing peer.
func (r *Registry) UpsertPairingPeer(peer PairingPeer) {
	peer.Addresses = append([]string(nil), peer.Addresses...)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.pairing.upsert(peer.Name, peer)
}

// UpsertControlPeer stores or replaces a control peer.
func (r *Registry) UpsertControlPeer(peer ControlPeer) {
	peer.Addresses = append([]string(nil), peer.Addresses...)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.control.upsert(peer.Name, peer)
}

// Remove deletes a peer by name and reports whether it existed.
func (r *Registry) Remove(name string, kind Kind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch kind {
	case KindPairing:
		return r.pairing.remove(name)
	case KindControl:
		return r.control.remove(name)
	default:
		return false
	}
}

// ListPairingPeers returns a snapshot in iteration order.
func (r *Registry) ListPairingPeers() []PairingPeer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pairing.list()
}

// ListControlPeers returns a snapshot in iteration order.
func (r *Registry) ListControlPeers() []ControlPeer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.control.list()
}

// FindPairingPeer looks up a pairing peer by its fully-qualified name.
func (r *Registry) FindPairingPeer(name string) (PairingPeer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	peer, ok := r.pairing.peers[name]
	return peer, ok
}

// FindControlPeerContaining returns the control peer whose name contains
// substr. When several match, the last one in iteration order (the most
// recently advertised) wins.
func (r *Registry) FindControlPeerContaining(substr string) (ControlPeer, bool) {
	var (
		found ControlPeer
		ok    bool
	)
	for _, peer := range r.ListControlPeers() {
		if strings.Contains(peer.Name, substr) {
			found, ok = peer, true
		}
	}
	return found, ok
}

// ApplyAdvertisement validates ad and stores it under kind. Malformed
// advertisements evict any previous record with the same name.
func (r *Registry) ApplyAdvertisement(kind Kind, ad Advertisement) error {
	if len(ad.Text) == 0 {
		r.Remove(ad.Name, kind)
		return fmt.Errorf("%w: %s has no properties", ErrMalformedAdvertisement, ad.Name)
	}

	switch kind {
	case KindPairing:
		guid, ok := ad.Text["Pair"]
		if !ok {
			r.Remove(ad.Name, kind)
			return fmt.Errorf("%w: %s has no Pair property", ErrMalformedAdvertisement, ad.Name)
		}
		name := ad.Text["DvNm"]
		if name == "" {
			name = ad.Instance
		}
		r.UpsertPairingPeer(PairingPeer{
			Name:        ad.Name,
			Addresses:   ad.Addresses,
			Port:        ad.Port,
			PairingGUID: guid,
			DisplayName: name,
		})
	case KindControl:
		r.UpsertControlPeer(ControlPeer{
			Name:        ad.Name,
			Addresses:   ad.Addresses,
			Port:        ad.Port,
			DisplayName: ad.Instance,
		})
	default:
		return fmt.Errorf("discovery: unknown peer kind %q", kind)
	}
	return nil
}
