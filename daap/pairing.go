package daap

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/thiccaxe/DAAPRemoteServer/discovery"
	"github.com/thiccaxe/DAAPRemoteServer/dmap"
	"github.com/thiccaxe/DAAPRemoteServer/models"
)

// maxPairResponse caps the body read from a remote during pairing.
const maxPairResponse = 64 << 10

var errPairRejected = errors.New("daap: pairing rejected by remote")

// PairingCode derives the code a remote expects for pin: the uppercase hex
// MD5 of the pairing GUID followed by each PIN digit and a NUL byte. PINs
// shorter than four digits are zero padded.
func PairingCode(pairingGUID, pin string) string {
	for len(pin) < 4 {
		pin = "0" + pin
	}

	var b strings.Builder
	b.WriteString(pairingGUID)
	for _, r := range pin {
		b.WriteRune(r)
		b.WriteByte(0)
	}
	sum := md5.Sum([]byte(b.String()))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

func (s *Server) handleRemotes(w http.ResponseWriter, r *http.Request) {
	peers := s.registry.ListPairingPeers()
	if peers == nil {
		peers = []discovery.PairingPeer{}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(peers); err != nil {
		s.log.V(1).Info("Failed to write remotes", "error", err.Error())
	}
}

func (s *Server) handlePair(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if !query.Has("fqn") {
		http.Error(w, "Must include ?fqn=", http.StatusBadRequest)
		return
	}
	if !query.Has("pin") {
		http.Error(w, "Must include ?pin=", http.StatusBadRequest)
		return
	}
	fqn, pin := query.Get("fqn"), query.Get("pin")

	peer, ok := s.registry.FindPairingPeer(fqn)
	if !ok {
		http.Error(w, "remote not found", http.StatusNotFound)
		return
	}

	log := s.log.WithValues("fqn", fqn)
	cred, err := s.pair(r, peer, pin)
	s.metrics.Pairing(err == nil)
	if errors.Is(err, errPairRejected) {
		log.Info("Remote rejected pairing", "error", err.Error())
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}
	if err != nil {
		log.Error(err, "Failed to pair")
		http.Error(w, "Failed to pair", http.StatusInternalServerError)
		return
	}

	log.Info("Paired remote", "credential", cred.ID, "name", cred.RemoteName, "type", cred.RemoteType)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, cred.ID)
}

// pair runs the pairing challenge against peer and stores the resulting credential.
func (s *Server) pair(r *http.Request, peer discovery.PairingPeer, pin string) (models.Credential, error) {
	if len(peer.Addresses) == 0 {
		return models.Credential{}, fmt.Errorf("peer %s has no address", peer.Name)
	}

	code := PairingCode(peer.PairingGUID, pin)
	target := url.URL{
		Scheme: "http",
		Host:   net.JoinHostPort(peer.Addresses[0], strconv.Itoa(peer.Port)),
		Path:   "/pair",
		RawQuery: url.Values{
			"pairingcode": {code},
			"servicename": {s.cfg.ServerID},
		}.Encode(),
	}
	s.log.V(1).Info("Sending pairing request", "url", target.String())

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target.String(), nil)
	if err != nil {
		return models.Credential{}, fmt.Errorf("build pairing request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return models.Credential{}, fmt.Errorf("send pairing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return models.Credential{}, fmt.Errorf("%w: pair request failed with status code %d", errPairRejected, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPairResponse))
	if err != nil {
		return models.Credential{}, fmt.Errorf("read pairing response: %w", err)
	}
	tags, err := dmap.Decode(body, dmap.Tags)
	if err != nil {
		return models.Credential{}, fmt.Errorf("decode pairing response: %w", err)
	}
	guidTag, ok := dmap.First(tags, "cmpa", "cmpg")
	if !ok {
		return models.Credential{}, errors.New("pairing response has no cmpg")
	}
	guid, ok := guidTag.AsUint()
	if !ok {
		return models.Credential{}, errors.New("pairing response cmpg is not an integer")
	}

	cred := models.Credential{
		ID:              strings.ToUpper(strconv.FormatUint(guid, 16)),
		PIN:             pin,
		PeerName:        peer.Name,
		PeerDisplayName: peer.DisplayName,
		PeerAddresses:   append([]string(nil), peer.Addresses...),
		PeerPort:        peer.Port,
		PairingGUID:     peer.PairingGUID,
	}
	if tag, ok := dmap.First(tags, "cmpa", "cmnm"); ok {
		cred.RemoteName, _ = tag.AsString()
	}
	if tag, ok := dmap.First(tags, "cmpa", "cmty"); ok {
		cred.RemoteType, _ = tag.AsString()
	}

	if s.credentials != nil {
		if err := s.credentials.SaveCredential(cred); err != nil {
			return models.Credential{}, err
		}
	}
	return cred, nil
}
