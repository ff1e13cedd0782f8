package engine

func nextIndex(current, n int) int {
	if n == 0 {
		return 0
	}
	return (current + 1) % n
}

// firstHumanIndex picks who opens the game: the first non-bot seat, or seat 0
// when only bots are playing.
func firstHumanIndex(players []Player) int {
	for i, p := range players {
		if !p.IsBot {
			return i
		}
	}
	return 0
}
