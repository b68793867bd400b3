package discovery

import (
	"errors"
	"sync"
	"testing"
)

func TestRegistryUpsertFindRemove(t *testing.T) {
	registry := NewRegistry()
	registry.UpsertPairingPeer(PairingPeer{
		Name:        "Phone._touch-remote._tcp.local.",
		Addresses:   []string{"192.168.1.20"},
		Port:        49152,
		PairingGUID: "0000000000000001",
		DisplayName: "Phone",
	})

	peer, ok := registry.FindPairingPeer("Phone._touch-remote._tcp.local.")
	if !ok {
		t.Fatalf("expected pairing peer to be found")
	}
	if peer.PairingGUID != "0000000000000001" || peer.Port != 49152 {
		t.Fatalf("unexpected pairing peer: %+v", peer)
	}

	if !registry.Remove("Phone._touch-remote._tcp.local.", KindPairing) {
		t.Fatalf("expected remove to report an existing peer")
	}
	if _, ok := registry.FindPairingPeer("Phone._touch-remote._tcp.local."); ok {
		t.Fatalf("expected peer to be gone after remove")
	}
	if registry.Remove("Phone._touch-remote._tcp.local.", KindPairing) {
		t.Fatalf("expected second remove to be a no-op")
	}
}

func TestRegistryKindsAreIndependent(t *testing.T) {
	registry := NewRegistry()
	registry.UpsertControlPeer(ControlPeer{Name: "same"})
	registry.UpsertPairingPeer(PairingPeer{Name: "same", PairingGUID: "x"})

	registry.Remove("same", KindControl)
	if len(registry.ListControlPeers()) != 0 {
		t.Fatalf("expected control peer to be removed")
	}
	if len(registry.ListPairingPeers()) != 1 {
		t.Fatalf("expected pairing peer to survive control removal")
	}
}

func TestRegistryIterationOrderIsInsertionOrder(t *testing.T) {
	registry := NewRegistry()
	registry.UpsertControlPeer(ControlPeer{Name: "a"})
	registry.UpsertControlPeer(ControlPeer{Name: "b"})
	registry.UpsertControlPeer(ControlPeer{Name: "c"})
	registry.UpsertControlPeer(ControlPeer{Name: "a", Port: 2})

	peers := registry.ListControlPeers()
	got := []string{peers[0].Name, peers[1].Name, peers[2].Name}
	want := []string{"b", "c", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected order: got %v want %v", got, want)
		}
	}
	if peers[2].Port != 2 {
		t.Fatalf("expected re-upserted peer to carry new values, got %+v", peers[2])
	}
}

func TestFindControlPeerContainingLastMatchWins(t *testing.T) {
	registry := NewRegistry()
	registry.UpsertControlPeer(ControlPeer{Name: "iTunes_Ctrl_ABCDEF0123456789._dacp._tcp.local.", Port: 1})
	registry.UpsertControlPeer(ControlPeer{Name: "iTunes_Ctrl_FFFF._dacp._tcp.local.", Port: 2})
	registry.UpsertControlPeer(ControlPeer{Name: "iTunes_Ctrl_ABCDEF0123456789-2._dacp._tcp.local.", Port: 3})

	peer, ok := registry.FindControlPeerContaining("ABCDEF0123456789")
	if !ok {
		t.Fatalf("expected a matching control peer")
	}
	if peer.Port != 3 {
		t.Fatalf("expected most recently advertised match, got %+v", peer)
	}

	if _, ok := registry.FindControlPeerContaining("0000"); ok {
		t.Fatalf("expected no match")
	}
}

func TestApplyAdvertisementEvictsMalformedRecords(t *testing.T) {
	registry := NewRegistry()
	name := "Phone._touch-remote._tcp.local."

	err := registry.ApplyAdvertisement(KindPairing, Advertisement{
		Name:     name,
		Instance: "Phone",
		Port:     49152,
		Text:     map[string]string{"Pair": "0000000000000001", "DvNm": "Kitchen Phone"},
	})
	if err != nil {
		t.Fatalf("ApplyAdvertisement failed: %v", err)
	}
	peer, ok := registry.FindPairingPeer(name)
	if !ok || peer.DisplayName != "Kitchen Phone" {
		t.Fatalf("unexpected pairing peer: %+v (found=%v)", peer, ok)
	}

	err = registry.ApplyAdvertisement(KindPairing, Advertisement{
		Name: name,
		Text: map[string]string{"DvNm": "Kitchen Phone"},
	})
	if !errors.Is(err, ErrMalformedAdvertisement) {
		t.Fatalf("expected malformed advertisement error, got %v", err)
	}
	if _, ok := registry.FindPairingPeer(name); ok {
		t.Fatalf("expected malformed pairing advertisement to evict the peer")
	}

	registry.UpsertControlPeer(ControlPeer{Name: "rx._dacp._tcp.local."})
	err = registry.ApplyAdvertisement(KindControl, Advertisement{Name: "rx._dacp._tcp.local."})
	if !errors.Is(err, ErrMalformedAdvertisement) {
		t.Fatalf("expected malformed advertisement error, got %v", err)
	}
	if len(registry.ListControlPeers()) != 0 {
		t.Fatalf("expected control advertisement without properties to be evicted")
	}
}

func TestApplyAdvertisementFallsBackToInstanceName(t *testing.T) {
	registry := NewRegistry()
	err := registry.ApplyAdvertisement(KindPairing, Advertisement{
		Name:     "Phone._touch-remote._tcp.local.",
		Instance: "Phone",
		Text:     map[string]string{"Pair": "guid"},
	})
	if err != nil {
		t.Fatalf("ApplyAdvertisement failed: %v", err)
	}
	peer, _ := registry.FindPairingPeer("Phone._touch-remote._tcp.local.")
	if peer.DisplayName != "Phone" {
		t.Fatalf("expected instance name fallback, got %q", peer.DisplayName)
	}
}

func TestRegistryConcurrentUpsertAndScan(t *testing.T) {
	registry := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				registry.UpsertControlPeer(ControlPeer{Name: "rx-" + string(rune('a'+i))})
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				registry.FindControlPeerContaining("rx-")
			}
		}()
	}
	wg.Wait()

	if got := len(registry.ListControlPeers()); got != 8 {
		t.Fatalf("expected 8 control peers, got %d", got)
	}
}
