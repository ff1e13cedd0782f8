package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/snakes-ladders-backend/internal/engine"
	"github.com/DoyleJ11/snakes-ladders-backend/internal/hub"
	"github.com/DoyleJ11/snakes-ladders-backend/internal/lobby"
	"github.com/DoyleJ11/snakes-ladders-backend/internal/types"
)

const msgPredict = "Predict"

func Handler(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}

		reply := make(chan *lobby.Lobby, 1)
		h.Inbox() <- hub.GetLobby{Code: code, Reply: reply}
		lb := <-reply
		if lb == nil {
			http.Error(w, "lobby not found", http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// In dev ONLY, you can loosen origin checks:
			// OriginPatterns: []string{"http://localhost:*", "http://127.0.0.1:*"},
		})
		if err != nil {
			log.Debug("websocket accept failed", zap.String("lobby", code), zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan lobby.Update, 32)
		clientID := uuid.NewString()
		clog := log.With(zap.String("lobby", code), zap.String("client_id", clientID))

		lb.Inbox() <- lobby.Join{ClientID: clientID, Outbox: out}
		defer func() { lb.Inbox() <- lobby.Leave{ClientID: clientID} }()

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for u := range out {
				if err := writeJSON(writeCtx, conn, toServerMessage(u)); err != nil {
					clog.Debug("websocket write failed", zap.Error(err))
				}
			}
			// Lobby closed our outbox: we were too slow or it shut down.
			conn.Close(websocket.StatusGoingAway, "lobby closed")
		}()

		// Reader loop
		for {
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
			_, data, err := conn.Read(ctx)
			cancel()
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					clog.Debug("websocket read ended", zap.Error(err))
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				_ = writeJSON(r.Context(), conn, errorMessage("bad_json", "bad json"))
				continue
			}

			if cm.Type == msgPredict {
				_ = writeJSON(r.Context(), conn, predict(r.Context(), lb, cm.Value))
				continue
			}

			cmd, ok := toEngineCommand(cm)
			if !ok {
				_ = writeJSON(r.Context(), conn, errorMessage("unknown_type", "unknown type"))
				continue
			}

			lb.Inbox() <- lobby.FromClient{ClientID: clientID, Cmd: cmd}
		}
	}
}

func predict(ctx context.Context, lb *lobby.Lobby, roll int) types.ServerMessage {
	reply := make(chan lobby.Prediction, 1)
	lb.Inbox() <- lobby.Predict{Roll: roll, Reply: reply}
	select {
	case p := <-reply:
		if p.Err != nil {
			return errorMessage(ErrorCode(p.Err), p.Err.Error())
		}
		return types.ServerMessage{Type: types.MsgPrediction, Prediction: &p.Result}
	case <-ctx.Done():
		return errorMessage("internal", ctx.Err().Error())
	}
}

func writeJSON(ctx context.Context, conn *websocket.Conn, msg types.ServerMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, payload)
}

func toServerMessage(u lobby.Update) types.ServerMessage {
	switch {
	case u.Err != nil:
		msg := errorMessage(ErrorCode(u.Err), u.Err.Error())
		msg.Version = u.Version
		return msg
	case u.Frame != nil:
		return types.ServerMessage{Type: types.MsgFrame, Version: u.Version, Frame: u.Frame}
	default:
		return types.ServerMessage{Type: types.MsgStateSnapshot, Version: u.Version, State: u.State, Events: u.Events}
	}
}

func errorMessage(code, text string) types.ServerMessage {
	return types.ServerMessage{Type: types.MsgError, Code: code, Error: text}
}

func toEngineCommand(m types.ClientMessage) (engine.Command, bool) {
	switch m.Type {
	case "Join":
		return engine.Command{Type: engine.CmdJoin, Name: m.Name, Color: m.Color}, true
	case "AddBot":
		return engine.Command{Type: engine.CmdAddBot}, true
	case "StartGame":
		return engine.Command{Type: engine.CmdStartGame}, true
	case "RollDice":
		return engine.Command{Type: engine.CmdRollDice, Value: m.Value, Custom: m.Custom}, true
	case "EndTurn":
		return engine.Command{Type: engine.CmdEndTurn}, true
	case "Teleport":
		return engine.Command{Type: engine.CmdTeleport}, true
	case "ActivateShield":
		return engine.Command{Type: engine.CmdActivateShield}, true
	case "Pause":
		return engine.Command{Type: engine.CmdPause}, true
	case "Resume":
		return engine.Command{Type: engine.CmdResume}, true
	case "Reset":
		return engine.Command{Type: engine.CmdReset}, true
	case "Leave":
		return engine.Command{Type: engine.CmdLeave}, true
	default:
		return engine.Command{}, false
	}
}

var errorCodes = []struct {
	err  error
	code string
}{
	{lobby.ErrNotSeated, "not_seated"},
	{lobby.ErrAlreadySeated, "already_seated"},
	{lobby.ErrServerOnly, "server_only"},
	{engine.ErrNotPlaying, "not_playing"},
	{engine.ErrGameInProgress, "game_in_progress"},
	{engine.ErrGameFinished, "game_finished"},
	{engine.ErrNotEnoughPlayers, "not_enough_players"},
	{engine.ErrLobbyFull, "lobby_full"},
	{engine.ErrDuplicatePlayer, "duplicate_player"},
	{engine.ErrUnknownPlayer, "unknown_player"},
	{engine.ErrWrongTurn, "wrong_turn"},
	{engine.ErrPaused, "paused"},
	{engine.ErrAnimating, "animating"},
	{engine.ErrInvalidRoll, "invalid_roll"},
	{engine.ErrAwaitingEndTurn, "awaiting_end_turn"},
	{engine.ErrTurnNotResolved, "turn_not_resolved"},
	{engine.ErrStaleCollision, "stale_collision"},
	{engine.ErrTeleportUsed, "teleport_used"},
	{engine.ErrNoLadderAhead, "no_ladder_ahead"},
	{engine.ErrTeleportBlocked, "teleport_blocked"},
	{engine.ErrRestrictedZone, "restricted_zone"},
	{engine.ErrShieldActive, "shield_active"},
	{engine.ErrCooldown, "cooldown"},
	{engine.ErrUnsupportedCommand, "unsupported_command"},
}

// ErrorCode maps an error to the stable code clients switch on.
func ErrorCode(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return "internal"
}
