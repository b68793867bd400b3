package models

// Credential is the record kept for a remote app after a successful pairing.
type Credential struct {
	// ID is the uppercase hex form of the GUID the remote reported.
	ID         string `json:"id"`
	PIN        string `json:"pin"`
	RemoteName string `json:"remote_name"`
	RemoteType string `json:"remote_type"`
	PairedAt   int64  `json:"paired_at"`

	// Snapshot of the advertisement the pairing was made against.
	PeerName        string   `json:"peer_fqn"`
	PeerDisplayName string   `json:"peer_name"`
	PeerAddresses   []string `json:"peer_addresses"`
	PeerPort        int      `json:"peer_port"`
	PairingGUID     string   `json:"pairing_guid"`
}
