package storage

import (
	"testing"

	"github.com/thiccaxe/DAAPRemoteServer/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dataDir := t.TempDir()
	store, _, err := Open(dataDir)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close test store: %v", err)
		}
	})

	return store
}

func testCredential(id string) models.Credential {
	return models.Credential{
		ID:              id,
		PIN:             "1234",
		RemoteName:      "Kitchen Phone",
		RemoteType:      "iPhone",
		PeerName:        "Phone._touch-remote._tcp.local.",
		PeerDisplayName: "Phone",
		PeerAddresses:   []string{"192.168.1.20", "fe80::1"},
		PeerPort:        49152,
		PairingGUID:     "0000000000000001",
	}
}
