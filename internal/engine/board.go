package engine

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

var ErrInvalidBoard = errors.New("invalid board")
var ErrCyclicBoard = errors.New("cyclic board")

const (
	FinalSquare = 100
	StartSquare = 1
)

// Board is the static layout: snake heads map to tails, ladder bottoms map to
// tops, fun-fact squares only trigger side content.
type Board struct {
	Snakes   map[int]int `yaml:"snakes" json:"snakes"`
	Ladders  map[int]int `yaml:"ladders" json:"ladders"`
	FunFacts []int       `yaml:"fun_facts" json:"fun_facts"`
}

func DefaultBoard() Board {
	return Board{
		Snakes: map[int]int{
			99: 83,
			95: 36,
			62: 19,
			54: 14,
			17: 6,
		},
		Ladders: map[int]int{
			3:  22,
			5:  14,
			9:  31,
			20: 39,
			27: 84,
			51: 67,
			72: 91,
			73: 93,
			88: 99,
		},
		FunFacts: []int{2, 7, 12, 25, 33, 41, 48, 58, 65, 76, 82, 90, 96},
	}
}

// LoadBoard reads a YAML board file and validates it.
func LoadBoard(path string) (Board, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Board{}, fmt.Errorf("reading board file: %w", err)
	}
	var b Board
	if err := yaml.Unmarshal(data, &b); err != nil {
		return Board{}, fmt.Errorf("parsing board file: %w", err)
	}
	if err := b.Validate(); err != nil {
		return Board{}, err
	}
	return b, nil
}

func (b Board) Validate() error {
	for head, tail := range b.Snakes {
		if head <= tail {
			return fmt.Errorf("%w: snake %d->%d must go down", ErrInvalidBoard, head, tail)
		}
		if head >= FinalSquare || tail < StartSquare {
			return fmt.Errorf("%w: snake %d->%d out of range", ErrInvalidBoard, head, tail)
		}
		if _, ok := b.Ladders[head]; ok {
			return fmt.Errorf("%w: square %d is both a snake head and a ladder bottom", ErrInvalidBoard, head)
		}
	}
	for bottom, top := range b.Ladders {
		if top <= bottom {
			return fmt.Errorf("%w: ladder %d->%d must go up", ErrInvalidBoard, bottom, top)
		}
		if bottom <= StartSquare || top > FinalSquare {
			return fmt.Errorf("%w: ladder %d->%d out of range", ErrInvalidBoard, bottom, top)
		}
	}
	for _, sq := range b.FunFacts {
		if sq < StartSquare || sq > FinalSquare {
			return fmt.Errorf("%w: fun fact square %d out of range", ErrInvalidBoard, sq)
		}
	}

	// Jumps are never chained during resolution, but a loop in the jump graph
	// still means the layout was written wrong.
	for start := range b.jumps() {
		seen := map[int]bool{}
		pos := start
		for {
			next, ok := b.jump(pos)
			if !ok {
				break
			}
			if seen[pos] {
				return fmt.Errorf("%w: loop through square %d", ErrCyclicBoard, start)
			}
			seen[pos] = true
			pos = next
		}
	}
	return nil
}

func (b Board) jumps() map[int]int {
	all := make(map[int]int, len(b.Snakes)+len(b.Ladders))
	for k, v := range b.Snakes {
		all[k] = v
	}
	for k, v := range b.Ladders {
		all[k] = v
	}
	return all
}

func (b Board) jump(pos int) (int, bool) {
	if tail, ok := b.Snakes[pos]; ok {
		return tail, true
	}
	if top, ok := b.Ladders[pos]; ok {
		return top, true
	}
	return 0, false
}

func (b Board) SnakeTail(head int) (int, bool) {
	tail, ok := b.Snakes[head]
	return tail, ok
}

func (b Board) LadderTop(bottom int) (int, bool) {
	top, ok := b.Ladders[bottom]
	return top, ok
}

func (b Board) IsFunFact(pos int) bool {
	return slices.Contains(b.FunFacts, pos)
}

// NextLadderAfter returns the lowest ladder bottom strictly ahead of pos.
func (b Board) NextLadderAfter(pos int) (int, bool) {
	best := 0
	for bottom := range b.Ladders {
		if bottom > pos && (best == 0 || bottom < best) {
			best = bottom
		}
	}
	return best, best != 0
}
