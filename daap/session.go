package daap

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/thiccaxe/DAAPRemoteServer/dacp"
	"github.com/thiccaxe/DAAPRemoteServer/dmap"
	"github.com/thiccaxe/DAAPRemoteServer/session"
)

// portInfoRequest is the control prompt event that carries the client's
// trackpad port info.
const portInfoRequest = "DRPortInfoRequest"

// Prompt ids a remote walks through while polling control prompts.
const (
	initialPrompt   = 0
	negotiatePrompt = 9
	// promptSessionID is reported in every keyboard message.
	promptSessionID = "9"
)

// maxPromptEntry caps control prompt entry bodies.
const maxPromptEntry = 64 << 10

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if !query.Has("pairing-guid") {
		s.writeDMAP(w, http.StatusServiceUnavailable, dmap.Container("mlog",
			dmap.Uint32("mstt", http.StatusServiceUnavailable),
		))
		return
	}
	pairingGUID := query.Get("pairing-guid")

	// TODO: reject pairing-guids that match no stored credential.
	if s.credentials != nil {
		known, err := s.credentials.HasPairingGUID(pairingGUID)
		if err != nil {
			s.log.Error(err, "Failed to look up pairing guid")
		}
		s.log.V(1).Info("Login", "pairingGUID", pairingGUID, "paired", known)
	}

	id, err := s.sessions.Create()
	if err != nil {
		s.log.Error(err, "Failed to create session")
		s.writeDMAP(w, http.StatusInternalServerError)
		return
	}
	n, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		s.sessions.Delete(id)
		s.log.Error(err, "Session id is not numeric", "session", id)
		s.writeDMAP(w, http.StatusInternalServerError)
		return
	}
	s.metrics.SessionCreated()
	s.log.Info("Session created", "session", id)

	s.writeDMAP(w, http.StatusOK, dmap.Container("mlog",
		dmap.Uint32("mstt", http.StatusOK),
		dmap.Uint32("mlid", uint32(n)),
	))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if id := r.URL.Query().Get("session-id"); id != "" {
		if _, ok := s.sessions.Get(id); ok {
			s.sessions.Delete(id)
			s.log.Info("Session ended", "session", id)
		}
	}
	s.writeDMAP(w, http.StatusNoContent)
}

// lookupSession resolves the session-id query parameter.
func (s *Server) lookupSession(r *http.Request) (session.Session, bool) {
	query := r.URL.Query()
	if !query.Has("session-id") {
		return session.Session{}, false
	}
	return s.sessions.Get(query.Get("session-id"))
}

func (s *Server) handleControlPromptUpdate(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if !query.Has("pairing-guid") {
		s.log.Info("Control prompt update without pairing guid")
		s.writeDMAP(w, http.StatusServiceUnavailable)
		return
	}
	pairingGUID := query.Get("pairing-guid")

	sess, ok := s.lookupSession(r)
	if !ok {
		s.log.Info("Control prompt update for unknown session", "session", query.Get("session-id"))
		s.writeDMAP(w, http.StatusServiceUnavailable)
		return
	}

	prompt, err := strconv.ParseUint(query.Get("prompt-id"), 10, 32)
	if err != nil {
		s.writeDMAP(w, http.StatusBadRequest)
		return
	}
	if prompt != initialPrompt && !sess.Negotiated {
		s.log.Info("Control prompt update before port info", "session", sess.ID, "prompt", prompt)
		s.writeDMAP(w, http.StatusBadRequest)
		return
	}

	if prompt > negotiatePrompt {
		s.log.V(1).Info("Holding control prompt update", "session", sess.ID, "prompt", prompt)
		if !sleep(r.Context(), s.idleDelay) {
			return
		}
		s.writeDMAP(w, http.StatusOK, dmap.Container("cmcp",
			dmap.Uint32("mstt", http.StatusOK),
			dmap.Uint32("miid", 0),
		))
		return
	}

	next := uint32(prompt)
	switch prompt {
	case initialPrompt:
		next = negotiatePrompt
	case negotiatePrompt:
		next = negotiatePrompt + 1
	}

	message, err := s.keyboardMessage(sess, uint32(prompt), pairingGUID)
	if err != nil {
		s.log.Error(err, "Failed to build keyboard message", "session", sess.ID)
		s.writeDMAP(w, http.StatusBadRequest)
		return
	}
	s.log.V(1).Info("Control prompt update", "session", sess.ID, "prompt", prompt, "next", next)

	children := append([]dmap.Tag{
		dmap.Uint32("mstt", http.StatusOK),
		dmap.Uint32("miid", next),
	}, message...)
	s.writeDMAP(w, http.StatusOK, dmap.Container("cmcp", children...))
}

// keyboardMessage builds the mdcl entries of a control prompt. The initial
// prompt carries the certificate. Later prompts carry the arrow port masked
// with the client's port info.
func (s *Server) keyboardMessage(sess session.Session, prompt uint32, pairingGUID string) ([]dmap.Tag, error) {
	keyboardString := certificateHex
	messageType := "3"
	if prompt != initialPrompt {
		field, err := session.ParseCmteField(sess.Cmte)
		if err != nil {
			return nil, err
		}
		keyboardString = strconv.FormatUint(uint64(uint32(s.cfg.ArrowPort)^field), 10)
		messageType = "5"
	}

	entries := []dmap.Tag{
		keyboardEntry("SubText", strconv.FormatUint(uint64(s.cfg.SubText), 10)),
		keyboardEntry("Version", "0"),
		keyboardEntry("MaxCharacters", "0"),
		keyboardEntry("MinCharacters", "0"),
		keyboardEntry("SecureText", "0"),
		keyboardEntry("KeyboardType", "0"),
		keyboardEntry("String", keyboardString),
		keyboardEntry("TextInputType", "0"),
	}
	if prompt != initialPrompt {
		entries = append(entries, keyboardEntry("Title", pairingGUID))
	}
	entries = append(entries,
		keyboardEntry("MessageType", messageType),
		keyboardEntry("SessionID", promptSessionID),
	)
	return entries, nil
}

func keyboardEntry(key, value string) dmap.Tag {
	return dmap.Container("mdcl",
		dmap.String("cmce", "kKeybMsgKey_"+key),
		dmap.String("cmcv", value),
	)
}

func (s *Server) handleControlPromptEntry(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(r)
	if !ok {
		s.writeDMAP(w, http.StatusServiceUnavailable)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPromptEntry))
	if err != nil {
		s.writeDMAP(w, http.StatusBadRequest)
		return
	}
	tags, err := dmap.Decode(body, dmap.Tags)
	if err != nil {
		s.log.Info("Malformed control prompt entry", "session", sess.ID, "error", err.Error())
		s.writeDMAP(w, http.StatusBadRequest)
		return
	}

	var event string
	if tag, ok := dmap.First(tags, "cmbe"); ok {
		event, _ = tag.AsString()
	}
	log := s.log.WithValues("session", sess.ID, "event", event)

	if event == portInfoRequest {
		var cmte string
		if tag, ok := dmap.First(tags, "cmte"); ok {
			cmte, _ = tag.AsString()
		}
		trackpad, err := session.NegotiateTrackpad(s.cfg.SubText, cmte)
		if err != nil {
			log.Info("Bad port info", "cmte", cmte, "error", err.Error())
			s.writeDMAP(w, http.StatusBadRequest)
			return
		}
		if !s.sessions.Update(sess.ID, trackpad.Apply) {
			s.writeDMAP(w, http.StatusServiceUnavailable)
			return
		}
		log.Info("Trackpad negotiated", "cmte", cmte, "key", trackpad.Key)
	} else if command, ok := dacp.LookupEvent(event); ok && s.forwarder != nil {
		if err := s.forwarder.Send(context.WithoutCancel(r.Context()), command); err != nil {
			log.Info("Command not delivered", "command", command, "error", err.Error())
		}
	} else {
		log.V(1).Info("Ignoring control prompt entry")
	}

	s.writeDMAP(w, http.StatusNoContent, dmap.Container("ceQE",
		dmap.Uint32("mstt", http.StatusOK),
	))
}
