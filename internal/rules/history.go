package rules

// History is the append-only log of executed moves for one game.
type History struct {
	moves []Move
}

func (h *History) Append(m Move) { h.moves = append(h.moves, m) }

// Last returns the most recent move, or nil on an empty history.
func (h *History) Last() *Move {
	if h == nil || len(h.moves) == 0 {
		return nil
	}
	m := h.moves[len(h.moves)-1]
	return &m
}

func (h *History) Len() int {
	if h == nil {
		return 0
	}
	return len(h.moves)
}

// Moves returns a copy of the log.
func (h *History) Moves() []Move {
	if h == nil {
		return nil
	}
	return append([]Move(nil), h.moves...)
}

// Reset clears the log; only a game reset does this.
func (h *History) Reset() { h.moves = nil }

// isHop reports whether m was a two-row pawn hop.
func isHop(m *Move) bool {
	if m == nil || m.Piece.Kind != Pawn {
		return false
	}
	return m.Steps.Y == 2 || m.Steps.Y == -2
}
