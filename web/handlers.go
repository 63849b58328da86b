// Package web serves a listener's state over HTTP for debugging.
package web

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"badc0de.net/pkg/go-raknet/server"
	"badc0de.net/pkg/go-raknet/session"
)

type Handler struct {
	l *server.Listener
}

// NewHandler constructs a web handler for the passed listener.
func NewHandler(l *server.Listener) *Handler {
	return &Handler{l: l}
}

type connection struct {
	Addr       string    `json:"addr"`
	State      string    `json:"state"`
	MTU        uint16    `json:"mtu"`
	GUID       uint64    `json:"guid"`
	ClientGUID uint64    `json:"client_guid"`
	Created    time.Time `json:"created"`
	LastSeen   time.Time `json:"last_seen"`
}

func newConnection(c session.Connection) connection {
	return connection{
		Addr:       c.Addr.String(),
		State:      c.State.String(),
		MTU:        c.MTU,
		GUID:       c.GUID,
		ClientGUID: c.ClientGUID,
		Created:    c.Created,
		LastSeen:   c.LastSeen,
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		glog.Errorf("encoding response: %s", err)
	}
}

func (h *Handler) connectionsHandler(w http.ResponseWriter, r *http.Request) {
	out := []connection{}
	for _, c := range h.l.Connections() {
		out = append(out, newConnection(c))
	}
	writeJSON(w, out)
}

func (h *Handler) connectionHandler(w http.ResponseWriter, r *http.Request) {
	addr := mux.Vars(r)["addr"]
	for _, c := range h.l.Connections() {
		if c.Addr.String() == addr {
			writeJSON(w, newConnection(c))
			return
		}
	}
	http.Error(w, "no such connection", http.StatusNotFound)
}

func (h *Handler) evictHandler(w http.ResponseWriter, r *http.Request) {
	addr, err := net.ResolveUDPAddr("udp", mux.Vars(r)["addr"])
	if err != nil {
		http.Error(w, "bad address", http.StatusBadRequest)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), time.Second)
	defer cancel()
	if err := h.l.Evict(ctx, addr); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) descriptorHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.l.Descriptor())
}

// RegisterRoutes adds the listener's debug pages and the Prometheus
// endpoint to r.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/debug/connections", h.connectionsHandler).Methods(http.MethodGet)
	r.HandleFunc("/debug/connections/{addr}", h.connectionHandler).Methods(http.MethodGet)
	r.HandleFunc("/debug/connections/{addr}", h.evictHandler).Methods(http.MethodDelete)
	r.HandleFunc("/debug/descriptor", h.descriptorHandler).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler())
}
