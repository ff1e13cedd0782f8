package engine

import "errors"

var ErrNoLadderAhead = errors.New("no ladder ahead")
var ErrTeleportBlocked = errors.New("teleport target too close to the finish")

type MoveKind string

const (
	KindNormal   MoveKind = "normal"
	KindSnake    MoveKind = "snake"
	KindLadder   MoveKind = "ladder"
	KindBounce   MoveKind = "bounce"
	KindTeleport MoveKind = "teleport"
)

// Overrides let a caller skip a snake or ladder the prediction showed,
// e.g. after a quiz answer or a shield charge.
type Overrides struct {
	IgnoreSnakes  bool `json:"ignore_snakes,omitempty"`
	IgnoreLadders bool `json:"ignore_ladders,omitempty"`
}

type Collision struct {
	PlayerID string `json:"player_id"`
	From     int    `json:"from"`
	To       int    `json:"to"`
}

type MoveResult struct {
	PlayerID   string      `json:"player_id,omitempty"`
	From       int         `json:"from"`
	To         int         `json:"to"`
	Roll       int         `json:"roll"`
	Kind       MoveKind    `json:"kind"`
	Shielded   bool        `json:"shielded,omitempty"`
	FunFact    bool        `json:"fun_fact,omitempty"`
	Collisions []Collision `json:"collisions,omitempty"`
}

func (r MoveResult) Won() bool { return r.To == FinalSquare }

// Resolve computes where a roll from start lands. It never mutates anything,
// so it doubles as the prediction step.
func (b Board) Resolve(start, roll int, o Overrides) MoveResult {
	res := MoveResult{From: start, To: start, Roll: roll, Kind: KindNormal}
	if start >= FinalSquare {
		return res
	}

	raw := start + roll
	switch {
	case raw > FinalSquare:
		res.To = FinalSquare - (raw - FinalSquare)
		res.Kind = KindBounce
	case raw == FinalSquare:
		res.To = FinalSquare
	default:
		res.To = raw
		if tail, ok := b.SnakeTail(raw); ok {
			if !o.IgnoreSnakes {
				res.To = tail
				res.Kind = KindSnake
			}
		} else if top, ok := b.LadderTop(raw); ok {
			if !o.IgnoreLadders {
				res.To = top
				res.Kind = KindLadder
			}
		}
	}
	res.FunFact = b.IsFunFact(res.To)
	return res
}

func (b Board) Predict(start, roll int) MoveResult {
	return b.Resolve(start, roll, Overrides{})
}

// Teleport jumps to the top of the nearest ladder ahead of start. Ladders
// whose top is at or beyond zone are refused.
func (b Board) Teleport(start, zone int) (MoveResult, error) {
	bottom, ok := b.NextLadderAfter(start)
	if !ok {
		return MoveResult{}, ErrNoLadderAhead
	}
	top := b.Ladders[bottom]
	if zone > 0 && top >= zone {
		return MoveResult{}, ErrTeleportBlocked
	}
	return MoveResult{
		From:    start,
		To:      top,
		Kind:    KindTeleport,
		FunFact: b.IsFunFact(top),
	}, nil
}

// Path lists every square a token visits for res, in order, excluding the
// starting square. Teleports jump straight to the destination.
func Path(res MoveResult) []int {
	if res.Kind == KindTeleport || res.Roll == 0 {
		return []int{res.To}
	}

	steps := make([]int, 0, res.Roll+1)
	pos := res.From
	dir := 1
	for i := 0; i < res.Roll; i++ {
		if pos == FinalSquare {
			dir = -1
		}
		pos += dir
		steps = append(steps, pos)
	}
	if steps[len(steps)-1] != res.To {
		steps = append(steps, res.To)
	}
	return steps
}
