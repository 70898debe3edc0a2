package outcome

import (
    "fmt"

    "github.com/park285/hopchess/internal/rules"
)

// Game-level statuses understood by the external game backend.
const (
    GameFinished = "FINISHED"
    GameDrawn    = "DRAWN"
    GameDropped  = "DROPPED"
)

// Per-player statuses.
const (
    PlayerWon      = "WON"
    PlayerDefeated = "DEFEATED"
    PlayerDrawn    = "DRAWN"
    PlayerDropped  = "DROPPED"
)

const (
    winPoints  = 100
    losePoints = 0
)

// PlayerResult is one entry of Submission.Players.
type PlayerResult struct {
    Identity string `json:"uuid"`
    Points   int    `json:"points"`
    Status   string `json:"userGameSessionStatus"`
}

// Submission is the game_session_finish request body.
type Submission struct {
    SessionID  string         `json:"gameSessionUuid"`
    GameStatus string         `json:"gameStatus"`
    Players    []PlayerResult `json:"players"`
}

var ErrInvalidOutcome = errf("invalid outcome")

type staticErr string
func (e staticErr) Error() string { return string(e) }
func errf(s string) error { return staticErr(s) }

// BuildSubmission maps a terminal outcome to the backend payload. The first
// player entry is always the winner slot; for a draw both slots score zero.
func BuildSubmission(over rules.GameOver) (Submission, error) {
    if over.SessionID == "" {
        return Submission{}, fmt.Errorf("%w: missing session id", ErrInvalidOutcome)
    }
    s := Submission{SessionID: over.SessionID}
    switch over.Type {
    case rules.GameOverCheckmate:
        s.GameStatus = GameFinished
        s.Players = []PlayerResult{
            {Identity: over.WinnerIdentity, Points: winPoints, Status: PlayerWon},
            {Identity: over.LoserIdentity, Points: losePoints, Status: PlayerDefeated},
        }
    case rules.GameOverStalemate:
        s.GameStatus = GameDrawn
        s.Players = []PlayerResult{
            {Identity: over.WinnerIdentity, Points: losePoints, Status: PlayerDrawn},
            {Identity: over.LoserIdentity, Points: losePoints, Status: PlayerDrawn},
        }
    case rules.GameOverDropped:
        s.GameStatus = GameDropped
        s.Players = []PlayerResult{
            {Identity: over.WinnerIdentity, Points: winPoints, Status: PlayerWon},
            {Identity: over.LoserIdentity, Points: losePoints, Status: PlayerDropped},
        }
    default:
        return Submission{}, fmt.Errorf("%w: type %q", ErrInvalidOutcome, over.Type)
    }
    return s, nil
}
