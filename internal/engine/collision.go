package engine

// DefaultBumpDistance is how far an occupant is knocked back when another
// player lands on their square.
const DefaultBumpDistance = 5

// ResolveCollisions returns one Collision per player (other than mover)
// standing on dest. The finish square is shared, so nobody is bumped there.
func ResolveCollisions(dest int, moverID string, players []Player, bump int) []Collision {
	if dest >= FinalSquare {
		return nil
	}
	var out []Collision
	for _, p := range players {
		if p.ID == moverID || p.Position != dest {
			continue
		}
		out = append(out, Collision{
			PlayerID: p.ID,
			From:     dest,
			To:       max(StartSquare, dest-bump),
		})
	}
	return out
}
