package rules

// Legality decides whether a generated candidate may be offered.
type Legality func(b *Board, m Move) bool

// Unfiltered keeps every candidate. Threat scans use it so that generation
// never recurses into another legality pass.
func Unfiltered(*Board, Move) bool { return true }

type generator func(b *Board, last *Move, p Piece) []Move

var generators = map[Kind]generator{
	Pawn:   pawnMoves,
	Rook:   func(b *Board, _ *Move, p Piece) []Move { return slide(b, p, orthogonal) },
	Bishop: func(b *Board, _ *Move, p Piece) []Move { return slide(b, p, diagonal) },
	Queen:  func(b *Board, _ *Move, p Piece) []Move { return slide(b, p, diagonal) },
	Knight: func(b *Board, _ *Move, p Piece) []Move { return step(b, p, knightOffsets) },
	King:   func(b *Board, _ *Move, p Piece) []Move { return step(b, p, kingOffsets) },
}

var (
	orthogonal = []Position{{0, -1}, {1, 0}, {0, 1}, {-1, 0}}
	diagonal   = []Position{{1, 1}, {-1, -1}, {-1, 1}, {1, -1}}

	knightOffsets = []Position{
		{1, 2}, {2, 1}, {2, -1}, {1, -2},
		{-1, -2}, {-2, -1}, {-2, 1}, {-1, 2},
	}
	kingOffsets = []Position{
		{0, -1}, {1, -1}, {1, 0}, {1, 1},
		{0, 1}, {-1, 1}, {-1, 0}, {-1, -1},
	}
)

// Generate returns the geometrically reachable moves of p, ignoring king
// safety. last is the previous move of the game, if any.
func Generate(b *Board, last *Move, p Piece) []Move {
	gen, ok := generators[p.Kind]
	if !ok || b == nil {
		return nil
	}
	return gen(b, last, p)
}

// Candidates generates p's moves against the game history and keeps those
// accepted by legal.
func Candidates(b *Board, h *History, p Piece, legal Legality) []Move {
	moves := Generate(b, h.Last(), p)
	if legal == nil {
		return moves
	}
	out := moves[:0]
	for _, m := range moves {
		if legal(b, m) {
			out = append(out, m)
		}
	}
	return out
}

// target builds a move from p to pos, or reports false when pos is off-board
// or holds a piece of p's own colour.
func target(b *Board, p Piece, pos Position) (Move, bool) {
	if !pos.OnBoard() {
		return Move{}, false
	}
	m := Move{
		Piece:       p,
		Steps:       Pos(pos.X-p.Position.X, pos.Y-p.Position.Y),
		NewPosition: pos,
		Type:        MoveNormal,
	}
	occ, ok := b.Lookup(pos)
	if !ok {
		return m, true
	}
	if occ.Color == p.Color {
		return Move{}, false
	}
	return withCapture(m, occ), true
}

func withCapture(m Move, victim Piece) Move {
	m.Type = MoveCapture
	if victim.Kind == King {
		m.Type = MoveCaptureKing
	}
	at := victim.Position
	m.Capture = &victim
	m.CapturePosition = &at
	return m
}

func slide(b *Board, p Piece, dirs []Position) []Move {
	var moves []Move
	for _, d := range dirs {
		for pos := p.Position.Add(d); pos.OnBoard(); pos = pos.Add(d) {
			m, ok := target(b, p, pos)
			if !ok {
				break
			}
			moves = append(moves, m)
			if m.CapturePosition != nil {
				break
			}
		}
	}
	return moves
}

func step(b *Board, p Piece, offsets []Position) []Move {
	var moves []Move
	for _, d := range offsets {
		if m, ok := target(b, p, p.Position.Add(d)); ok {
			moves = append(moves, m)
		}
	}
	return moves
}

// pawnMoves: single diagonal steps forward onto empty squares, hops over an
// adjacent opposing piece onto an empty square behind it, and the jump capture
// of a pawn that hopped alongside on the previous move.
func pawnMoves(b *Board, last *Move, p Piece) []Move {
	f := p.Color.forward()
	var moves []Move
	for _, dx := range []int{1, -1} {
		to := p.Position.Add(Pos(dx, f))
		if !to.OnBoard() {
			continue
		}
		if _, occ := b.Lookup(to); occ {
			continue
		}
		moves = append(moves, Move{Piece: p, Steps: Pos(dx, f), NewPosition: to, Type: MoveNormal})
	}
	for _, dx := range []int{1, -1} {
		over := p.Position.Add(Pos(dx, f))
		land := p.Position.Add(Pos(2*dx, 2*f))
		victim, ok := b.Lookup(over)
		if !ok || victim.Color == p.Color || !land.OnBoard() {
			continue
		}
		if _, occ := b.Lookup(land); occ {
			continue
		}
		m := Move{Piece: p, Steps: Pos(2*dx, 2*f), NewPosition: land}
		moves = append(moves, withCapture(m, victim))
	}
	if m, ok := jumpCapture(b, last, p); ok {
		// The jump lands on a square the plain step also reaches; the capture wins.
		for i := range moves {
			if moves[i].NewPosition == m.NewPosition {
				moves[i] = m
				return moves
			}
		}
		moves = append(moves, m)
	}
	return moves
}

func jumpCapture(b *Board, last *Move, p Piece) (Move, bool) {
	if !isHop(last) || last.Piece.Color == p.Color {
		return Move{}, false
	}
	at := last.NewPosition
	if at.Y != p.Position.Y || (at.X != p.Position.X+1 && at.X != p.Position.X-1) {
		return Move{}, false
	}
	victim, ok := b.Lookup(at)
	if !ok || victim.Color == p.Color {
		return Move{}, false
	}
	f := p.Color.forward()
	to := Pos(at.X, p.Position.Y+f)
	if !to.OnBoard() {
		return Move{}, false
	}
	if _, occ := b.Lookup(to); occ {
		return Move{}, false
	}
	m := Move{Piece: p, Steps: Pos(at.X-p.Position.X, f), NewPosition: to}
	return withCapture(m, victim), true
}
