package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/DoyleJ11/snakes-ladders-backend/internal/engine"
	"github.com/DoyleJ11/snakes-ladders-backend/internal/hub"
	"github.com/DoyleJ11/snakes-ladders-backend/internal/lobby"
	"github.com/DoyleJ11/snakes-ladders-backend/internal/store"
)

const codeLength = 6

// LeaderboardSource is the read side of the results store.
type LeaderboardSource interface {
	Leaderboard(ctx context.Context, limit int) ([]store.PlayerStats, error)
}

func GenerateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, codeLength)
	for i := 0; i < codeLength; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

type createLobbyRequest struct {
	Bots int `json:"bots"`
}

type createLobbyResponse struct {
	Code    string `json:"code"`
	JoinURL string `json:"join_url"`
	QRURL   string `json:"qr_url"`
}

func CreateLobby(h *hub.Hub, publicURL string, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createLobbyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if maxBots := h.MaxBots(); req.Bots < 0 || req.Bots > maxBots {
			http.Error(w, fmt.Sprintf("bots must be between 0 and %d", maxBots), http.StatusBadRequest)
			return
		}

		var code string
		for {
			c, err := GenerateCode()
			if err != nil {
				http.Error(w, "failed to generate code", http.StatusInternalServerError)
				return
			}
			reply := make(chan *lobby.Lobby, 1)
			h.Inbox() <- hub.GetLobby{Code: c, Reply: reply}
			if <-reply == nil {
				code = c
				break
			}
			log.Debug("collision on code, regenerating", zap.String("lobby", c))
		}

		reply := make(chan *lobby.Lobby, 1)
		h.Inbox() <- hub.EnsureLobby{Code: code, Bots: req.Bots, Reply: reply}
		if <-reply == nil {
			http.Error(w, "failed to create lobby", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusCreated, createLobbyResponse{
			Code:    code,
			JoinURL: joinURL(baseURL(r, publicURL), code),
			QRURL:   "/lobbies/" + code + "/qr",
		})
	}
}

type lobbyResponse struct {
	Code       string          `json:"code"`
	Version    int             `json:"version"`
	NumClients int             `json:"num_clients"`
	State      engine.Snapshot `json:"state"`
}

func GetLobby(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		lb := lookup(h, code)
		if lb == nil {
			http.Error(w, "lobby not found", http.StatusNotFound)
			return
		}

		reply := make(chan lobby.View, 1)
		lb.Inbox() <- lobby.GetState{Reply: reply}
		select {
		case v := <-reply:
			writeJSON(w, http.StatusOK, lobbyResponse{
				Code:       code,
				Version:    v.Version,
				NumClients: v.NumClients,
				State:      v.State,
			})
		case <-time.After(2 * time.Second):
			http.Error(w, "lobby did not answer", http.StatusGatewayTimeout)
		case <-r.Context().Done():
		}
	}
}

// LobbyQR renders the join link for a lobby as a PNG so people in the room
// can scan their way in.
func LobbyQR(h *hub.Hub, publicURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		if lookup(h, code) == nil {
			http.Error(w, "lobby not found", http.StatusNotFound)
			return
		}
		png, err := qrcode.Encode(joinURL(baseURL(r, publicURL), code), qrcode.Medium, 256)
		if err != nil {
			http.Error(w, "failed to render qr code", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(png)
	}
}

func Leaderboard(src LeaderboardSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := store.DefaultLeaderboardSize
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 || n > 100 {
				http.Error(w, "limit must be between 1 and 100", http.StatusBadRequest)
				return
			}
			limit = n
		}
		rows, err := src.Leaderboard(r.Context(), limit)
		if err != nil {
			http.Error(w, "failed to load leaderboard", http.StatusInternalServerError)
			return
		}
		if rows == nil {
			rows = []store.PlayerStats{}
		}
		writeJSON(w, http.StatusOK, rows)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func lookup(h *hub.Hub, code string) *lobby.Lobby {
	reply := make(chan *lobby.Lobby, 1)
	h.Inbox() <- hub.GetLobby{Code: code, Reply: reply}
	return <-reply
}

func baseURL(r *http.Request, publicURL string) string {
	if publicURL != "" {
		return publicURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func joinURL(base, code string) string {
	return base + "/?code=" + url.QueryEscape(code)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
