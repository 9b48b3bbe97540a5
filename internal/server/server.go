// Package server exposes the relay over HTTP: the WebSocket handshake
// endpoint and a health check. The handshake authenticates the bearer
// credential and resolves the identity before any registry state exists for
// the connection.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"

	"github.com/tesloshop/relay/internal/auth"
	"github.com/tesloshop/relay/internal/directory"
	"github.com/tesloshop/relay/internal/hub"
)

// errIdentityRejected covers unknown and inactive identities. Externally it
// is indistinguishable from a bad credential: the transport just closes.
var errIdentityRejected = errors.New("identity rejected")

// Server wires the handshake collaborators to the hub.
type Server struct {
	hub       *hub.Hub
	verifier  auth.Verifier
	directory directory.Directory

	// baseCtx bounds the lifetime of admitted clients; it outlives any
	// single HTTP request.
	baseCtx context.Context

	handshakeTimeout time.Duration
	socketOpts       hub.Options
}

// New creates a server. baseCtx should be the daemon's run context.
func New(baseCtx context.Context, h *hub.Hub, verifier auth.Verifier, dir directory.Directory, handshakeTimeout time.Duration, socketOpts hub.Options) *Server {
	return &Server{
		hub:              h,
		verifier:         verifier,
		directory:        dir,
		baseCtx:          baseCtx,
		handshakeTimeout: handshakeTimeout,
		socketOpts:       socketOpts,
	}
}

// Router returns the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/ws", s.wsHandler)
	r.Get("/health", s.healthHandler)
	return r
}

// wsHandler upgrades the connection, runs the handshake under a bounded
// deadline, and hands admitted clients to the hub. Every handshake failure
// has the same externally-observable effect: the socket closes with no
// payload, no registry mutation and no broadcast.
func (s *Server) wsHandler(w http.ResponseWriter, r *http.Request) {
	credential := bearerCredential(r)

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Cross-origin storefront clients connect directly.
		InsecureSkipVerify: true,
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}

	handshakeCtx, cancel := context.WithTimeout(s.baseCtx, s.handshakeTimeout)
	identity, err := s.authenticate(handshakeCtx, credential)
	cancel()
	if err != nil {
		slog.Info("handshake rejected", "reason", err)
		conn.Close(websocket.StatusPolicyViolation, "")
		return
	}

	client := hub.NewClient(s.hub, conn, identity, s.baseCtx, s.socketOpts)
	if err := s.hub.Admit(client); err != nil {
		slog.Error("admission failed", "connection", client.ID(), "error", err)
		conn.Close(websocket.StatusInternalError, "")
		return
	}

	go client.ReadPump()
	go client.WritePump()
	go client.PingLoop()
}

// authenticate runs the two-step handshake: verify the credential, then
// resolve and vet the identity.
func (s *Server) authenticate(ctx context.Context, credential string) (directory.Identity, error) {
	if credential == "" {
		return directory.Identity{}, auth.ErrAuthenticationFailed
	}

	identityID, err := s.verifier.Verify(credential)
	if err != nil {
		return directory.Identity{}, err
	}

	identity, err := s.directory.FetchByID(ctx, identityID)
	if err != nil {
		return directory.Identity{}, errIdentityRejected
	}
	if !identity.IsActive {
		return directory.Identity{}, errIdentityRejected
	}
	return identity, nil
}

// healthHandler reports goroutine and connection counts.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := map[string]int{
		"goroutines":  runtime.NumGoroutine(),
		"connections": s.hub.Count(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

// bearerCredential extracts the credential from the Authorization header or,
// for browser clients that cannot set headers on a WebSocket dial, the token
// query parameter.
func bearerCredential(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return token
		}
		return h
	}
	return r.URL.Query().Get("token")
}
