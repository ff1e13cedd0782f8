package types

import (
	"github.com/DoyleJ11/snakes-ladders-backend/internal/engine"
	"github.com/DoyleJ11/snakes-ladders-backend/internal/lobby"
)

// ClientMessage types: Join, AddBot, StartGame, Predict, RollDice, EndTurn,
// Teleport, ActivateShield, Pause, Resume, Reset, Leave.
type ClientMessage struct {
	Type   string `json:"type"`
	Name   string `json:"name,omitempty"`
	Color  string `json:"color,omitempty"`
	Value  int    `json:"value,omitempty"`  // Predict, or RollDice with custom
	Custom bool   `json:"custom,omitempty"` // RollDice with a chosen value
}

const (
	MsgStateSnapshot = "StateSnapshot"
	MsgFrame         = "Frame"
	MsgPrediction    = "Prediction"
	MsgError         = "Error"
)

type ServerMessage struct {
	Type       string             `json:"type"` // "StateSnapshot" | "Frame" | "Prediction" | "Error"
	Version    int                `json:"version,omitempty"`
	State      *engine.Snapshot   `json:"state,omitempty"`
	Events     []engine.Event     `json:"events,omitempty"`
	Frame      *lobby.Frame       `json:"frame,omitempty"`
	Prediction *engine.MoveResult `json:"prediction,omitempty"`
	Code       string             `json:"code,omitempty"`
	Error      string             `json:"error,omitempty"`
}
