package main

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"voxelsession.ai/internal/hub"
	"voxelsession.ai/internal/persistence/indexdb"
)

// registerAdmin mounts local-only read endpoints over the hub and index.
func registerAdmin(mux *http.ServeMux, h *hub.Hub, idx *indexdb.SQLiteIndex, log *zap.Logger) {
	mux.HandleFunc("/admin/v1/state", loopbackOnly(func(rw http.ResponseWriter, r *http.Request) {
		resp := struct {
			Tick     uint64        `json:"tick"`
			Sessions int           `json:"sessions"`
			Index    indexdb.Stats `json:"index"`
		}{
			Tick:     h.Tick(),
			Sessions: h.Sessions(),
			Index:    idx.Stats(),
		}
		writeJSON(rw, http.StatusOK, resp)
	}))
	if idx == nil {
		return
	}
	mux.HandleFunc("/admin/v1/violations", loopbackOnly(func(rw http.ResponseWriter, r *http.Request) {
		player := strings.TrimSpace(r.URL.Query().Get("player_id"))
		if player == "" {
			writeJSON(rw, http.StatusBadRequest, map[string]any{"ok": false, "error": "player_id is required"})
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		rows, err := idx.Violations(ctx, player, limit)
		if err != nil {
			log.Warn("violations query failed", zap.Error(err))
			writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()})
			return
		}
		writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "violations": rows})
	}))
	mux.HandleFunc("/admin/v1/disconnects", loopbackOnly(func(rw http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		counts, err := idx.DisconnectCounts(ctx)
		if err != nil {
			log.Warn("disconnects query failed", zap.Error(err))
			writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()})
			return
		}
		writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "reasons": counts})
	}))
}

func loopbackOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		next(rw, r)
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}
