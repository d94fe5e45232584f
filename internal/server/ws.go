package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/divyanshmehta355/aurahub-notify/internal/errors"
	"github.com/divyanshmehta355/aurahub-notify/internal/hub"
	"github.com/divyanshmehta355/aurahub-notify/internal/logger"
)

// handleWebSocket upgrades the request and keeps the connection registered
// for its lifetime. It is mounted on the plain mux, not the gin router: the
// upgrade writes the 101 status and then hijacks the connection, and gin's
// response writer refuses to hijack once a status has been written.
// Identity comes from ?userId= (the observed contract), or from a signed
// token when NOTIFY_JWT_SECRET is configured.
// GET /ws?userId=<id>
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, apiErr := s.authenticateConnect(r)
	if apiErr != nil {
		logger.Log.Warn("websocket auth failed",
			logger.WithIP(r.RemoteAddr),
			zap.String("reason", apiErr.Message),
		)
		writeAPIError(w, apiErr)
		return
	}

	opts := &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionContextTakeover,
	}
	if allowAll(s.cfg.AllowedOrigins) {
		opts.InsecureSkipVerify = true
	} else {
		opts.OriginPatterns = s.cfg.AllowedOrigins
	}

	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		logger.Log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := hub.NewClient(s.hub, conn, userID)
	client.RemoteAddr = r.RemoteAddr
	client.UserAgent = r.UserAgent()

	s.hub.Register(client)

	go client.WritePump()
	client.ReadPump() // blocks until the client disconnects
}

// writeAPIError renders an APIError outside the gin pipeline.
func writeAPIError(w http.ResponseWriter, apiErr *errors.APIError) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(apiErr.Status)
	_ = json.NewEncoder(w).Encode(apiErr)
}

// authenticateConnect resolves the user identity for a connection request.
//
// Default mode trusts the caller-supplied userId: the service runs apart from
// the web app's session store and the worst an impostor gains is someone
// else's toasts — the notification list itself is served by the web app
// behind real auth. Hardened mode instead requires a short-lived HS256 token
// minted by the web app with a user_id claim.
func (s *Server) authenticateConnect(r *http.Request) (string, *errors.APIError) {
	userID := r.URL.Query().Get("userId")

	if !s.cfg.HardenedAuth() {
		if userID == "" {
			return "", errors.BadRequest("userId query parameter is required")
		}
		return userID, nil
	}

	tokenString := r.URL.Query().Get("token")
	if auth := r.Header.Get("Authorization"); auth != "" {
		tokenString = strings.TrimPrefix(auth, "Bearer ")
	}
	if tokenString == "" {
		return "", errors.Unauthorized("connection token is required")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return "", errors.Unauthorized("invalid connection token").WithDetails(err.Error())
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", errors.Unauthorized("invalid token claims")
	}

	claimID, ok := claims["user_id"].(string)
	if !ok || claimID == "" {
		return "", errors.Unauthorized("token missing user_id claim")
	}

	// A userId param may still be present; it must agree with the token.
	if userID != "" && userID != claimID {
		return "", errors.Unauthorized("userId does not match token")
	}

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		logger.Log.Debug("hardened connect",
			logger.WithUserID(claimID),
			zap.Time("token_expiry", exp.Time),
		)
	}

	return claimID, nil
}
