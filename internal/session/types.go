package session

import (
    "context"
    "time"

    "github.com/park285/hopchess/internal/protocol"
    "github.com/park285/hopchess/internal/provision"
    "github.com/park285/hopchess/internal/rules"
)

// State is the membership lifecycle of a room.
type State string

const (
    StateEmpty      State = "empty"
    StateAwaiting   State = "awaitingSecondPlayer"
    StateReady      State = "ready"
    StateInGame     State = "inGame"
    StateTerminated State = "terminated"
)

// Peer is one connected client. Send must not block; transports queue or drop.
type Peer interface {
    ID() string
    Send(env protocol.Envelope) error
}

// RecordSource resolves room records by session id.
type RecordSource interface {
    Get(ctx context.Context, sessionID string) (*provision.Room, error)
}

// StatusUpdater mirrors room status changes to the provisioning store.
type StatusUpdater interface {
    SetStatus(ctx context.Context, sessionID string, st provision.Status) error
}

// OutcomeRecorder receives each terminal outcome exactly once. Implementations
// must return quickly; the room actor calls it inline.
type OutcomeRecorder interface {
    Record(ctx context.Context, over rules.GameOver)
}

// Options tune a Hub.
type Options struct {
    // StrictMoves validates relayed moves against the room's mirror game and
    // rejects anything the rule engine would not generate.
    StrictMoves bool
    InboxSize   int
    // StoreTimeout bounds each status write.
    StoreTimeout time.Duration

    Status   StatusUpdater
    Recorder OutcomeRecorder
}

// BoundPlayer is one membership binding.
type BoundPlayer struct {
    Identity  string      `json:"identity"`
    Name      string      `json:"name"`
    Color     rules.Color `json:"color"`
    Connected bool        `json:"connected"`
}

// Snapshot is a read-only view of a room.
type Snapshot struct {
    SessionID string        `json:"gameSessionUuid"`
    State     State         `json:"state"`
    Players   []BoundPlayer `json:"players"`
    Game      rules.State   `json:"game"`
    Moves     int           `json:"moves"`
    Outcome   *rules.GameOver `json:"outcome,omitempty"`
}

// JoinResult describes the joiner's binding after a successful join.
type JoinResult struct {
    Color rules.Color
    State State
    Count int
}

// Errors
var (
    ErrInvalidArgs    = errf("invalid arguments")
    ErrRoomNotFound   = errf("room not found")
    ErrUnknownPlayer  = errf("identity is not a player of this room")
    ErrRoomFull       = errf("room already has two players")
    ErrRoomTerminated = errf("room terminated")
    ErrNotJoined      = errf("peer has not joined this room")
    ErrNotReady       = errf("waiting for second player")
    ErrIllegalMove    = errf("move rejected")
    ErrHubClosed      = errf("hub closed")
)

type staticErr string
func (e staticErr) Error() string { return string(e) }
func errf(s string) error { return staticErr(s) }

// errReaped is internal: the room stopped between lookup and delivery.
var errReaped = errf("room reaped")
