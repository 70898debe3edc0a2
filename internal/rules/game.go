package rules

import "fmt"

// Game bundles a board, its history and the turn/outcome state. A Game is
// owned by a single goroutine; it carries no locking.
type Game struct {
	start     Board
	startTurn Color

	board   Board
	history History
	state   State
}

// NewGame returns a game on the starting layout with white to move.
func NewGame() *Game { return NewGameFrom(NewBoard(), White) }

// NewGameFrom starts a game on a custom board. The initial state is
// classified as if the other side had just moved.
func NewGameFrom(b *Board, turn Color) *Game {
	g := &Game{start: *b, startTurn: turn}
	g.Reset()
	return g
}

// Reset restores the initial board, clears the history and reopens the game.
func (g *Game) Reset() {
	g.board = g.start
	g.history.Reset()
	g.state = Classify(&g.board, &g.history, g.startTurn.Opposite())
}

// Snapshot is a saved game position that Restore can return to.
type Snapshot struct {
	board Board
	moves []Move
	state State
}

func (g *Game) Snapshot() Snapshot {
	return Snapshot{board: g.board, moves: g.history.Moves(), state: g.state}
}

// Restore rewinds the game to s.
func (g *Game) Restore(s Snapshot) {
	g.board = s.board
	g.history.moves = append([]Move(nil), s.moves...)
	g.state = s.state
}

// Board returns a copy of the current board.
func (g *Game) Board() *Board { return g.board.Clone() }

func (g *Game) State() State { return g.state }

func (g *Game) Turn() Color { return g.state.Turn }

// History returns a copy of the executed moves.
func (g *Game) History() []Move { return g.history.Moves() }

// LegalMoves lists the king-safe moves of the piece on from.
func (g *Game) LegalMoves(from Position) []Move {
	p, ok := g.board.Lookup(from)
	if !ok {
		return nil
	}
	return Candidates(&g.board, &g.history, p, KingSafe)
}

// AllLegalMoves lists every king-safe move of colour c.
func (g *Game) AllLegalMoves(c Color) []Move {
	var out []Move
	for _, p := range g.board.Pieces(c) {
		out = append(out, Candidates(&g.board, &g.history, p, KingSafe)...)
	}
	return out
}

// Play validates and executes the side-to-move's move from -> to.
func (g *Game) Play(from, to Position) (Move, error) {
	p, err := g.movable(from)
	if err != nil {
		return Move{}, err
	}
	for _, m := range Candidates(&g.board, &g.history, p, KingSafe) {
		if m.NewPosition == to {
			g.execute(m)
			return m, nil
		}
	}
	return Move{}, fmt.Errorf("%w: %s to %s", ErrIllegalMove, from, to)
}

// Apply executes a move received from the remote side. Geometry is not
// re-validated; only turn order and the presence of the piece are checked.
// Piece and capture details are taken from the local board.
func (g *Game) Apply(m Move) (Move, error) {
	p, err := g.movable(m.From())
	if err != nil {
		return Move{}, err
	}
	if m.Piece.Color != "" && m.Piece.Color != p.Color {
		return Move{}, fmt.Errorf("%w: piece colour mismatch at %s", ErrNoPiece, m.From())
	}
	if !m.NewPosition.OnBoard() {
		return Move{}, fmt.Errorf("%w: destination %s off board", ErrIllegalMove, m.NewPosition)
	}
	applied := Move{
		Piece:       p,
		Steps:       Pos(m.NewPosition.X-p.Position.X, m.NewPosition.Y-p.Position.Y),
		NewPosition: m.NewPosition,
		Type:        MoveNormal,
	}
	capAt := m.NewPosition
	if m.CapturePosition != nil {
		capAt = *m.CapturePosition
	}
	if victim, ok := g.board.Lookup(capAt); ok && victim.Color != p.Color {
		applied = withCapture(applied, victim)
	}
	g.execute(applied)
	return applied, nil
}

// Drop ends the game in favour of winner because the other party left.
func (g *Game) Drop(winner Color) error {
	if g.state.Terminal() {
		return ErrGameOver
	}
	g.state = State{Status: Dropped, Turn: g.state.Turn, Winner: winner}
	return nil
}

// Outcome builds the terminal record. ok is false while the game is open.
// For a stalemate the winner slot holds the side that made the last move.
func (g *Game) Outcome(sessionID, white, black string) (GameOver, bool) {
	if !g.state.Terminal() {
		return GameOver{}, false
	}
	ids := map[Color]string{White: white, Black: black}
	out := GameOver{SessionID: sessionID, Moves: g.history.Moves()}
	first := g.state.Winner
	switch g.state.Status {
	case Checkmate:
		out.Type = GameOverCheckmate
		out.Winner = first
	case Dropped:
		out.Type = GameOverDropped
		out.Winner = first
	case Stalemate:
		out.Type = GameOverStalemate
		first = g.state.Turn.Opposite()
	}
	out.WinnerIdentity = ids[first]
	out.LoserIdentity = ids[first.Opposite()]
	return out, true
}

func (g *Game) movable(from Position) (Piece, error) {
	if g.state.Terminal() {
		return Piece{}, ErrGameOver
	}
	p, ok := g.board.Lookup(from)
	if !ok {
		return Piece{}, fmt.Errorf("%w: %s", ErrNoPiece, from)
	}
	if p.Color != g.state.Turn {
		return Piece{}, ErrNotYourTurn
	}
	return p, nil
}

func (g *Game) execute(m Move) {
	g.board.execute(m)
	g.history.Append(m)
	g.state = Classify(&g.board, &g.history, m.Piece.Color)
}
