package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/thiccaxe/DAAPRemoteServer/models"
)

// ErrNotFound indicates a requested row does not exist.
var ErrNotFound = errors.New("storage: record not found")

// SaveCredential inserts or replaces the credential with the same ID.
func (s *Store) SaveCredential(cred models.Credential) error {
	if cred.ID == "" {
		return errors.New("credential_id is required")
	}
	if cred.PeerName == "" {
		return errors.New("peer_fqn is required")
	}
	if cred.PairedAt == 0 {
		cred.PairedAt = time.Now().UnixMilli()
	}

	_, err := s.db.Exec(
		`INSERT INTO credentials (
			credential_id,
			pin,
			remote_name,
			remote_type,
			paired_timestamp,
			peer_fqn,
			peer_name,
			peer_addresses,
			peer_port,
			pairing_guid
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(credential_id) DO UPDATE SET
			pin = excluded.pin,
			remote_name = excluded.remote_name,
			remote_type = excluded.remote_type,
			paired_timestamp = excluded.paired_timestamp,
			peer_fqn = excluded.peer_fqn,
			peer_name = excluded.peer_name,
			peer_addresses = excluded.peer_addresses,
			peer_port = excluded.peer_port,
			pairing_guid = excluded.pairing_guid`,
		cred.ID,
		cred.PIN,
		cred.RemoteName,
		cred.RemoteType,
		cred.PairedAt,
		cred.PeerName,
		cred.PeerDisplayName,
		strings.Join(cred.PeerAddresses, ","),
		cred.PeerPort,
		cred.PairingGUID,
	)
	if err != nil {
		return fmt.Errorf("save credential %q: %w", cred.ID, err)
	}
	return nil
}

// GetCredential fetches a credential by ID.
func (s *Store) GetCredential(id string) (*models.Credential, error) {
	row := s.db.QueryRow(
		`SELECT
			credential_id,
			pin,
			remote_name,
			remote_type,
			paired_timestamp,
			peer_fqn,
			peer_name,
			peer_addresses,
			peer_port,
			pairing_guid
		FROM credentials
		WHERE credential_id = ?`,
		id,
	)
	cred, err := scanCredential(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get credential %q: %w", id, err)
	}
	return cred, nil
}

// ListCredentials returns every credential, newest first.
func (s *Store) ListCredentials() ([]models.Credential, error) {
	rows, err := s.db.Query(
		`SELECT
			credential_id,
			pin,
			remote_name,
			remote_type,
			paired_timestamp,
			peer_fqn,
			peer_name,
			peer_addresses,
			peer_port,
			pairing_guid
		FROM credentials
		ORDER BY paired_timestamp DESC, credential_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var out []models.Credential
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		out = append(out, *cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}
	return out, nil
}

// HasPairingGUID reports whether any credential was paired against guid.
func (s *Store) HasPairingGUID(guid string) (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(1) FROM credentials WHERE pairing_guid = ? OR credential_id = ?`,
		guid, strings.ToUpper(guid),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check pairing guid: %w", err)
	}
	return count > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCredential(row scanner) (*models.Credential, error) {
	var (
		cred      models.Credential
		addresses string
	)
	if err := row.Scan(
		&cred.ID,
		&cred.PIN,
		&cred.RemoteName,
		&cred.RemoteType,
		&cred.PairedAt,
		&cred.PeerName,
		&cred.PeerDisplayName,
		&addresses,
		&cred.PeerPort,
		&cred.PairingGUID,
	); err != nil {
		return nil, err
	}
	if addresses != "" {
		cred.PeerAddresses = strings.Split(addresses, ",")
	}
	return &cred, nil
}
