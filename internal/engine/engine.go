package engine

import "errors"

var ErrUnsupportedCommand = errors.New("unsupported command")

type CommandType string

const (
	CmdJoin           CommandType = "Join"
	CmdAddBot         CommandType = "AddBot"
	CmdLeave          CommandType = "Leave"
	CmdStartGame      CommandType = "StartGame"
	CmdRollDice       CommandType = "RollDice"
	CmdEndTurn        CommandType = "EndTurn"
	CmdTeleport       CommandType = "Teleport"
	CmdActivateShield CommandType = "ActivateShield"
	CmdApplyCollision CommandType = "ApplyCollision"
	CmdPause          CommandType = "Pause"
	CmdResume         CommandType = "Resume"
	CmdReset          CommandType = "Reset"
)

/*
	CmdRollDice       -> EvtPlayerMoved -> EvtBonusRollGranted (rolled a six) or EvtGameCompleted (landed on 100)
	CmdTeleport       -> EvtPlayerMoved -> EvtGameCompleted (never in practice, tops near the finish are refused)
	CmdEndTurn        -> EvtTurnAdvanced, or nothing when a bonus roll keeps the turn
	CmdApplyCollision -> EvtPlayerBumped
	CmdReset          -> EvtGameReset (carries the new epoch)
*/

type Command struct {
	Type      CommandType
	PlayerID  string
	Name      string
	Color     string
	Value     int  // die value for RollDice
	Custom    bool // Value was picked by the player rather than rolled
	Overrides Overrides
	Collision Collision
}

type EventType string

const (
	EvtPlayerJoined     EventType = "PlayerJoined"
	EvtPlayerLeft       EventType = "PlayerLeft"
	EvtGameStarted      EventType = "GameStarted"
	EvtPlayerMoved      EventType = "PlayerMoved"
	EvtPlayerBumped     EventType = "PlayerBumped"
	EvtBonusRollGranted EventType = "BonusRollGranted"
	EvtTurnAdvanced     EventType = "TurnAdvanced"
	EvtShieldActivated  EventType = "ShieldActivated"
	EvtGamePaused       EventType = "GamePaused"
	EvtGameResumed      EventType = "GameResumed"
	EvtGameReset        EventType = "GameReset"
	EvtGameCompleted    EventType = "GameCompleted"
)

type Event struct {
	Type      EventType   `json:"type"`
	PlayerID  string      `json:"player_id,omitempty"`
	Move      *MoveResult `json:"move,omitempty"`
	Collision *Collision  `json:"collision,omitempty"`
	Epoch     uint64      `json:"epoch,omitempty"`
}

func (s *Session) Apply(cmd Command) ([]Event, error) {
	switch cmd.Type {
	case CmdJoin:
		p, err := s.Join(Player{ID: cmd.PlayerID, Name: cmd.Name, Color: cmd.Color})
		if err != nil {
			return nil, err
		}
		return []Event{{Type: EvtPlayerJoined, PlayerID: p.ID}}, nil

	case CmdAddBot:
		p, err := s.AddBot()
		if err != nil {
			return nil, err
		}
		return []Event{{Type: EvtPlayerJoined, PlayerID: p.ID}}, nil

	case CmdLeave:
		if err := s.Leave(cmd.PlayerID); err != nil {
			return nil, err
		}
		return []Event{{Type: EvtPlayerLeft, PlayerID: cmd.PlayerID}}, nil

	case CmdStartGame:
		if err := s.Start(); err != nil {
			return nil, err
		}
		p, _ := s.CurrentPlayer()
		return []Event{{Type: EvtGameStarted, PlayerID: p.ID}}, nil

	case CmdRollDice:
		var (
			res MoveResult
			err error
		)
		if cmd.Custom {
			res, err = s.RollCustom(cmd.PlayerID, cmd.Value, cmd.Overrides)
		} else {
			res, err = s.Roll(cmd.PlayerID, cmd.Value, cmd.Overrides)
		}
		if err != nil {
			return nil, err
		}
		return s.moveEvents(res), nil

	case CmdTeleport:
		res, err := s.Teleport(cmd.PlayerID)
		if err != nil {
			return nil, err
		}
		return s.moveEvents(res), nil

	case CmdEndTurn:
		if err := s.checkTurn(cmd.PlayerID); err != nil {
			return nil, err
		}
		advanced, err := s.EndTurn()
		if err != nil {
			return nil, err
		}
		if !advanced {
			return nil, nil
		}
		p, _ := s.CurrentPlayer()
		return []Event{{Type: EvtTurnAdvanced, PlayerID: p.ID}}, nil

	case CmdActivateShield:
		if err := s.ActivateShield(cmd.PlayerID); err != nil {
			return nil, err
		}
		return []Event{{Type: EvtShieldActivated, PlayerID: cmd.PlayerID}}, nil

	case CmdApplyCollision:
		if err := s.ApplyCollision(cmd.Collision); err != nil {
			return nil, err
		}
		c := cmd.Collision
		return []Event{{Type: EvtPlayerBumped, PlayerID: c.PlayerID, Collision: &c}}, nil

	case CmdPause:
		if err := s.Pause(); err != nil {
			return nil, err
		}
		return []Event{{Type: EvtGamePaused, PlayerID: cmd.PlayerID}}, nil

	case CmdResume:
		if err := s.Resume(); err != nil {
			return nil, err
		}
		return []Event{{Type: EvtGameResumed, PlayerID: cmd.PlayerID}}, nil

	case CmdReset:
		epoch := s.Reset()
		return []Event{{Type: EvtGameReset, Epoch: epoch}}, nil

	default:
		return nil, ErrUnsupportedCommand
	}
}

func (s *Session) moveEvents(res MoveResult) []Event {
	events := []Event{{Type: EvtPlayerMoved, PlayerID: res.PlayerID, Move: &res}}
	if s.bonus && res.Roll == BonusRollValue {
		events = append(events, Event{Type: EvtBonusRollGranted, PlayerID: res.PlayerID})
	}
	if s.status == StatusFinished {
		events = append(events, Event{Type: EvtGameCompleted, PlayerID: s.winnerID})
	}
	return events
}

// CollisionEvents applies every collision in res and reports the bumps that
// still held. Stale ones are skipped.
func (s *Session) CollisionEvents(res MoveResult) []Event {
	s.bumps = nil
	var events []Event
	for _, c := range res.Collisions {
		if err := s.ApplyCollision(c); err != nil {
			continue
		}
		events = append(events, Event{Type: EvtPlayerBumped, PlayerID: c.PlayerID, Collision: &c})
	}
	return events
}
