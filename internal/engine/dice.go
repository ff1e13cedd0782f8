package engine

import (
	"math/rand/v2"
	"sync"
)

type Dice interface {
	Roll() int
}

// RandomDice draws uniformly from 1..6.
type RandomDice struct{}

func (RandomDice) Roll() int { return rand.IntN(DieFaces) + 1 }

// FixedDice replays a fixed sequence of rolls, wrapping around when it runs
// out. Tests use it to script games.
type FixedDice struct {
	mu    sync.Mutex
	rolls []int
	next  int
}

func NewFixedDice(rolls ...int) *FixedDice {
	return &FixedDice{rolls: rolls}
}

func (d *FixedDice) Roll() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.rolls) == 0 {
		return 1
	}
	v := d.rolls[d.next%len(d.rolls)]
	d.next++
	return v
}
