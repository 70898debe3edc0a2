package rules

// Tile is one of the 64 fixed cells.
type Tile struct {
	Position Position `json:"position"`
	Piece    Piece    `json:"piece"`
}

// Occupied reports whether the tile holds a piece.
func (t Tile) Occupied() bool { return !t.Piece.Empty() }

// Board is the full grid, indexed [y][x]. It is a plain value: copying a Board
// copies every tile and every piece.
type Board struct {
	tiles [Size][Size]Tile
}

// Home-row kings of the starting layout.
var (
	blackKingStart = Pos(3, 0)
	whiteKingStart = Pos(4, 7)
)

// EmptyBoard returns a board with all 64 tiles and no pieces.
func EmptyBoard() *Board {
	b := &Board{}
	for y := 0; y < Size; y++ {
		for x := 0; x < Size; x++ {
			b.tiles[y][x].Position = Pos(x, y)
		}
	}
	return b
}

// NewBoard returns the starting layout: pawns on the dark squares of rows 0-2
// (black) and 5-7 (white), with one home-row slot per side holding the king.
func NewBoard() *Board {
	b := EmptyBoard()
	ids := map[Color]int{}
	for y := 0; y < Size; y++ {
		var c Color
		switch {
		case y <= 2:
			c = Black
		case y >= 5:
			c = White
		default:
			continue
		}
		for x := 0; x < Size; x++ {
			if (x+y)%2 == 0 {
				continue
			}
			ids[c]++
			pos := Pos(x, y)
			kind := Pawn
			if pos == blackKingStart || pos == whiteKingStart {
				kind = King
			}
			b.tiles[y][x].Piece = Piece{ID: ids[c], Color: c, Kind: kind, Position: pos}
		}
	}
	return b
}

// Lookup returns the piece at pos. Off-board positions are empty.
func (b *Board) Lookup(pos Position) (Piece, bool) {
	if b == nil || !pos.OnBoard() {
		return Piece{}, false
	}
	p := b.tiles[pos.Y][pos.X].Piece
	return p, !p.Empty()
}

// Tile returns the tile at pos; ok is false off-board.
func (b *Board) Tile(pos Position) (Tile, bool) {
	if b == nil || !pos.OnBoard() {
		return Tile{}, false
	}
	return b.tiles[pos.Y][pos.X], true
}

// Clone returns an independent copy.
func (b *Board) Clone() *Board {
	cp := *b
	return &cp
}

// Place puts p on the tile at its own position, replacing any occupant.
func (b *Board) Place(p Piece) bool {
	if !p.Position.OnBoard() || p.Empty() {
		return false
	}
	b.tiles[p.Position.Y][p.Position.X].Piece = p
	return true
}

// Remove empties the tile at pos and returns what was there.
func (b *Board) Remove(pos Position) (Piece, bool) {
	p, ok := b.Lookup(pos)
	if !ok {
		return Piece{}, false
	}
	b.tiles[pos.Y][pos.X].Piece = Piece{}
	return p, true
}

// Pieces lists the pieces of one colour in row-major order.
func (b *Board) Pieces(c Color) []Piece {
	var out []Piece
	for y := 0; y < Size; y++ {
		for x := 0; x < Size; x++ {
			if p := b.tiles[y][x].Piece; !p.Empty() && p.Color == c {
				out = append(out, p)
			}
		}
	}
	return out
}

// King returns the king of colour c.
func (b *Board) King(c Color) (Piece, bool) {
	for y := 0; y < Size; y++ {
		for x := 0; x < Size; x++ {
			if p := b.tiles[y][x].Piece; p.Kind == King && p.Color == c {
				return p, true
			}
		}
	}
	return Piece{}, false
}

// Consistent reports whether every tile's piece agrees with the tile coordinates.
func (b *Board) Consistent() bool {
	for y := 0; y < Size; y++ {
		for x := 0; x < Size; x++ {
			t := b.tiles[y][x]
			if t.Position != Pos(x, y) {
				return false
			}
			if t.Occupied() && t.Piece.Position != t.Position {
				return false
			}
		}
	}
	return true
}

// Equal compares two boards tile by tile.
func (b *Board) Equal(o *Board) bool {
	if b == nil || o == nil {
		return b == o
	}
	return b.tiles == o.tiles
}

// execute moves the piece and removes any captured piece. It does not check
// legality.
func (b *Board) execute(m Move) {
	if m.CapturePosition != nil {
		b.Remove(*m.CapturePosition)
	}
	p, ok := b.Remove(m.From())
	if !ok {
		p = m.Piece
	}
	p.Position = m.NewPosition
	p.HasMoved = true
	b.Place(p)
}
