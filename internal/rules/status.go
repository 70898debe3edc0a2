package rules

// Status is the lifecycle phase of a game.
type Status string

const (
	InProgress Status = "inProgress"
	Check      Status = "check"
	Checkmate  Status = "checkmate"
	Stalemate  Status = "stalemate"
	Dropped    Status = "dropped"
)

// State is the turn/outcome snapshot. Winner is set for Checkmate and Dropped.
type State struct {
	Status Status `json:"status"`
	Turn   Color  `json:"turn"`
	Winner Color  `json:"winner,omitempty"`
}

// Terminal reports whether no further moves are accepted.
func (s State) Terminal() bool {
	switch s.Status {
	case Checkmate, Stalemate, Dropped:
		return true
	}
	return false
}

// Classify evaluates the position after mover has played. The opponent is to
// move unless the game has ended.
func Classify(b *Board, h *History, mover Color) State {
	opp := mover.Opposite()
	king, ok := b.King(opp)
	if !ok {
		return State{Status: Checkmate, Turn: opp, Winner: mover}
	}
	reachable := Attacked(b, h.Last(), king.Position, mover)
	canMove := HasLegalMove(b, h, opp)
	switch {
	case !canMove && reachable:
		return State{Status: Checkmate, Turn: opp, Winner: mover}
	case !canMove:
		return State{Status: Stalemate, Turn: opp}
	case reachable:
		return State{Status: Check, Turn: opp}
	default:
		return State{Status: InProgress, Turn: opp}
	}
}
