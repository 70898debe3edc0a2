package rules

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// Size is the board edge length.
const Size = 8

// Color identifies a side.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

// Opposite returns the other side.
func (c Color) Opposite() Color {
	if c == White {
		return Black
	}
	return White
}

// Valid reports whether c is one of the two sides.
func (c Color) Valid() bool { return c == White || c == Black }

// forward is the y delta a pawn of this colour advances by.
func (c Color) forward() int {
	if c == White {
		return -1
	}
	return 1
}

// Kind is a piece type. The zero Kind marks an empty slot.
type Kind string

const (
	NoKind Kind = ""
	Pawn   Kind = "pawn"
	Rook   Kind = "rook"
	Knight Kind = "knight"
	Bishop Kind = "bishop"
	Queen  Kind = "queen"
	King   Kind = "king"
)

// Position is a board coordinate. y=0 is black's home row.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Pos is shorthand for Position{X: x, Y: y}.
func Pos(x, y int) Position { return Position{X: x, Y: y} }

// OnBoard reports whether both coordinates are within [0,7].
func (p Position) OnBoard() bool {
	return p.X >= 0 && p.X < Size && p.Y >= 0 && p.Y < Size
}

// Add offsets p by d.
func (p Position) Add(d Position) Position { return Position{X: p.X + d.X, Y: p.Y + d.Y} }

// Square maps the position onto algebraic coordinates (white at the bottom).
func (p Position) Square() nchess.Square {
	return nchess.NewSquare(nchess.File(p.X), nchess.Rank(Size-1-p.Y))
}

// squares indexes every algebraic name the chess library prints.
var squares = func() map[string]nchess.Square {
	m := make(map[string]nchess.Square, Size*Size)
	for sq := nchess.A1; sq <= nchess.H8; sq++ {
		m[sq.String()] = sq
	}
	return m
}()

// ParsePosition reads algebraic coordinates such as "c3". It is the inverse
// of Position.String.
func ParsePosition(s string) (Position, error) {
	sq, ok := squares[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return Position{}, fmt.Errorf("bad square %q", s)
	}
	return Position{X: int(sq.File()), Y: Size - 1 - int(sq.Rank())}, nil
}

func (p Position) String() string {
	if !p.OnBoard() {
		return fmt.Sprintf("(%d,%d)", p.X, p.Y)
	}
	return p.Square().String()
}

// Piece is a single man on the board. Pieces are values; the board owns them.
type Piece struct {
	ID       int      `json:"id"`
	Color    Color    `json:"color"`
	Kind     Kind     `json:"kind"`
	Position Position `json:"position"`
	HasMoved bool     `json:"hasMoved,omitempty"`
}

// Empty reports whether p is the zero piece.
func (p Piece) Empty() bool { return p.Kind == NoKind }

// MoveType classifies a move by what it takes.
type MoveType string

const (
	MoveNormal      MoveType = "normal"
	MoveCapture     MoveType = "capture"
	MoveCaptureKing MoveType = "captureKing"
)

// Move is a proposed or executed transition.
type Move struct {
	Piece           Piece     `json:"piece"`
	Steps           Position  `json:"steps"`
	NewPosition     Position  `json:"newPosition"`
	Type            MoveType  `json:"type"`
	Capture         *Piece    `json:"capture,omitempty"`
	CapturePosition *Position `json:"capturePosition,omitempty"`
}

// From is the square the piece leaves.
func (m Move) From() Position { return m.Piece.Position }

// Threatens reports whether executing m would take whatever stands on pos.
func (m Move) Threatens(pos Position) bool {
	if m.CapturePosition == nil {
		return false
	}
	return *m.CapturePosition == pos
}

// Notation renders the move as "c3-d4" or "c3xe5".
func (m Move) Notation() string {
	sep := "-"
	if m.Type != MoveNormal && m.Type != "" {
		sep = "x"
	}
	return m.From().String() + sep + m.NewPosition.String()
}

// GameOverType tags how a game ended.
type GameOverType string

const (
	GameOverCheckmate GameOverType = "checkmate"
	GameOverStalemate GameOverType = "stalemate"
	GameOverDropped   GameOverType = "dropped"
)

// GameOver is the terminal record of a game. It is produced once.
type GameOver struct {
	Type           GameOverType `json:"type"`
	Winner         Color        `json:"winner,omitempty"`
	WinnerIdentity string       `json:"winnerUuid,omitempty"`
	LoserIdentity  string       `json:"loserUuid,omitempty"`
	SessionID      string       `json:"gameSessionUuid"`
	Moves          []Move       `json:"moves,omitempty"`
}
