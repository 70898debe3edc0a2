package rules

// KingSafe rejects candidates that leave the mover's own king capturable by any
// opposing reply. Replies are generated unfiltered with the candidate as the
// preceding move, so a reply may itself be a jump capture.
func KingSafe(b *Board, m Move) bool {
	scratch := *b
	scratch.execute(m)
	king, ok := scratch.King(m.Piece.Color)
	if !ok {
		return true
	}
	return !Attacked(&scratch, &m, king.Position, m.Piece.Color.Opposite())
}

// Attacked reports whether any piece of colour by has an unfiltered move that
// captures on target.
func Attacked(b *Board, last *Move, target Position, by Color) bool {
	for _, p := range b.Pieces(by) {
		for _, reply := range Generate(b, last, p) {
			if reply.Threatens(target) {
				return true
			}
		}
	}
	return false
}

// HasLegalMove reports whether colour c has at least one king-safe move.
func HasLegalMove(b *Board, h *History, c Color) bool {
	for _, p := range b.Pieces(c) {
		if len(Candidates(b, h, p, KingSafe)) > 0 {
			return true
		}
	}
	return false
}
