package rules

import "errors"

var (
	ErrGameOver    = errors.New("game is over")
	ErrNotYourTurn = errors.New("not your turn")
	ErrNoPiece     = errors.New("no piece on source square")
	ErrIllegalMove = errors.New("illegal move")
)
