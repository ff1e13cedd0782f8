package hub

import (
	"context"

	"go.uber.org/zap"

	"github.com/DoyleJ11/snakes-ladders-backend/internal/engine"
	"github.com/DoyleJ11/snakes-ladders-backend/internal/lobby"
)

type HubMsg interface{ isHubMsg() }

type CreateLobby struct {
	Code  string
	Bots  int
	Reply chan *lobby.Lobby
}

type GetLobby struct {
	Code  string
	Reply chan *lobby.Lobby
}

type EnsureLobby struct {
	Code  string
	Bots  int // only used if creation happens
	Reply chan *lobby.Lobby
}

type RemoveLobby struct {
	Code string
}

type ListLobbies struct {
	Reply chan []string
}

type Hub struct {
	inbox   chan HubMsg
	lobbies map[string]*lobby.Lobby
	base    lobby.Config
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

type ShutdownHub struct{}

func (CreateLobby) isHubMsg() {}
func (GetLobby) isHubMsg()    {}
func (EnsureLobby) isHubMsg() {}
func (RemoveLobby) isHubMsg() {}
func (ListLobbies) isHubMsg() {}
func (ShutdownHub) isHubMsg() {}

// NewHub starts the registry. Every lobby it creates is configured from base,
// with its own code and bot count filled in.
func NewHub(parent context.Context, base lobby.Config) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if base.Logger == nil {
		base.Logger = zap.NewNop()
	}
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		lobbies: make(map[string]*lobby.Lobby),
		base:    base,
		log:     base.Logger,
		ctx:     ctx,
		cancel:  cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// MaxBots is how many bots a new lobby may be created with: every seat but
// one, so a human can always join.
func (h *Hub) MaxBots() int {
	limit := h.base.Rules.MaxPlayers
	if limit <= 0 {
		limit = engine.MaxPlayers
	}
	return limit - 1
}

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateLobby:
				if lb := h.lobbies[msg.Code]; lb != nil {
					msg.Reply <- lb
					break
				}
				msg.Reply <- h.create(msg.Code, msg.Bots)

			case GetLobby:
				msg.Reply <- h.lobbies[msg.Code] // May be nil

			case EnsureLobby:
				if lb := h.lobbies[msg.Code]; lb != nil {
					msg.Reply <- lb
					break
				}
				msg.Reply <- h.create(msg.Code, msg.Bots)

			case RemoveLobby:
				if lb := h.lobbies[msg.Code]; lb != nil {
					lb.Close()
					delete(h.lobbies, msg.Code)
					h.log.Info("lobby removed", zap.String("lobby", msg.Code))
				}

			case ListLobbies:
				codes := make([]string, 0, len(h.lobbies))
				for code := range h.lobbies {
					codes = append(codes, code)
				}
				msg.Reply <- codes

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) create(code string, bots int) *lobby.Lobby {
	cfg := h.base
	cfg.Code = code
	cfg.Bots = bots
	if cfg.IdleTimeout > 0 {
		cfg.OnIdle = h.requestRemoval
	}
	lb := lobby.NewLobby(h.ctx, cfg)
	h.lobbies[code] = lb
	h.log.Info("lobby created", zap.String("lobby", code), zap.Int("bots", bots))
	return lb
}

// requestRemoval runs on a lobby goroutine, so it must not wait on a hub that
// is shutting down.
func (h *Hub) requestRemoval(code string) {
	select {
	case h.inbox <- RemoveLobby{Code: code}:
	case <-h.ctx.Done():
	}
}

func (h *Hub) shutdown() {
	for _, lb := range h.lobbies {
		select {
		case lb.Inbox() <- lobby.Shutdown{}:
		default:
			// Lobby inbox is full; cancelling the context below stops it anyway.
		}
	}
	clear(h.lobbies)
	h.cancel()
}
