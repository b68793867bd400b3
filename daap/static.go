package daap

import (
	"io"
	"net/http"

	"github.com/thiccaxe/DAAPRemoteServer/dmap"
)

// Capability values advertised by server-info.
const (
	protocolVersion      = 231082
	appleProtocolVersion = 196620
	airplayVersion       = 196618
	timeoutInterval      = 1800
	timeZoneOffset       = 4294938496
	atvVersion           = 65541
	sharingStatus        = 7341056
)

// ServerInfo returns the msrv capability container.
func (s *Server) ServerInfo() dmap.Tag {
	return dmap.Container("msrv",
		dmap.Uint32("mstt", http.StatusOK),
		dmap.Uint32("mpro", protocolVersion),
		dmap.String("minm", s.cfg.ServerName+"\x00"),
		dmap.Uint32("apro", appleProtocolVersion),
		dmap.Uint32("aeSV", airplayVersion),
		dmap.Uint32("mstm", timeoutInterval),
		dmap.Uint32("msdc", 1),
		dmap.Uint8("aeFP", 2),
		dmap.Uint8("arFR", 100),
		dmap.Bool("mslr", true),
		dmap.Bool("msal", true),
		dmap.Uint32("mstc", uint32(s.now().Unix())),
		dmap.Uint32("msto", timeZoneOffset),
		dmap.Uint32("atSV", atvVersion),
		dmap.Uint16("ated", 1),
		dmap.Uint16("asgr", 3),
		dmap.Uint32("asse", sharingStatus),
		dmap.Uint32("aeSX", 3),
		dmap.Uint16("msed", 1),
		dmap.Uint16("msup", 1),
		dmap.Uint16("mspi", 1),
		dmap.Uint16("msex", 1),
		dmap.Uint16("msbr", 1),
		dmap.Uint16("msqy", 1),
		dmap.Uint16("msix", 1),
		dmap.Uint32("mscu", 101),
	)
}

// ControlInterface returns the caci descriptor of the single control interface.
func ControlInterface() dmap.Tag {
	return dmap.Container("caci",
		dmap.Uint32("mstt", http.StatusOK),
		dmap.Uint32("mtco", 1),
		dmap.Uint32("mrco", 1),
		dmap.Container("mlcl",
			dmap.Container("mlit",
				dmap.Uint32("miid", 1),
				dmap.Uint32("cmik", 1),
				dmap.Uint32("cmpr", 131074),
				dmap.Uint32("capr", 131077),
				dmap.Uint32("atCV", 65539),
				dmap.Uint32("cmsp", 1),
				dmap.Uint32("cmsb", 1),
				dmap.Uint32("aeFR", 100),
				dmap.Uint32("cmsv", 0),
				dmap.Uint32("cmsc", 1),
				dmap.Uint32("cass", 0),
				dmap.Uint32("caov", 0),
				dmap.Uint32("casu", 0),
				dmap.Uint32("ceSG", 0),
				dmap.Uint32("ceDR", 1),
				dmap.Uint32("cmrl", 1),
				dmap.Uint32("ceSX", 0b1011),
			),
		),
	)
}

func (s *Server) handleServerInfo(w http.ResponseWriter, r *http.Request) {
	s.writeDMAP(w, http.StatusOK, s.ServerInfo())
}

func (s *Server) handleCtrlInt(w http.ResponseWriter, r *http.Request) {
	s.writeDMAP(w, http.StatusOK, ControlInterface())
}

func (s *Server) handlePlayStatusUpdate(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("revision-number") == "2" {
		if !sleep(r.Context(), s.longPollDelay) {
			return
		}
		s.writeDMAP(w, http.StatusNotAcceptable)
		return
	}
	s.writeDMAP(w, http.StatusOK, dmap.Container("cmst",
		dmap.Uint32("mstt", http.StatusOK),
		dmap.Uint32("cmsr", 2),
	))
}

func (s *Server) handlePlayQueueContents(w http.ResponseWriter, r *http.Request) {
	_, _ = io.Copy(io.Discard, r.Body)
	s.writeDMAP(w, http.StatusOK, dmap.Container("ceQR",
		dmap.Uint32("mstt", http.StatusOK),
	))
}
