package provision

import (
    "time"

    "github.com/park285/hopchess/internal/rules"
)

// Status is the lifecycle of a provisioned room as seen by the outside world.
type Status string

const (
    StatusWaiting  Status = "WAITING"
    StatusReady    Status = "READY"
    StatusInGame   Status = "IN_GAME"
    StatusFinished Status = "FINISHED"
    StatusDrawn    Status = "DRAWN"
    StatusDropped  Status = "DROPPED"
)

// Player is one seat of a room record. Color is assigned at creation.
type Player struct {
    Identity     string      `json:"uuid"`
    Name         string      `json:"name"`
    ProfileImage string      `json:"profileImage,omitempty"`
    Ready        string      `json:"ready,omitempty"`
    Color        rules.Color `json:"color,omitempty"`
}

// Room is stored as JSON in Redis under room:<gameSessionUuid>.
type Room struct {
    SessionID string    `json:"gameSessionUuid"`
    StateID   string    `json:"gameStateId"`
    Name      string    `json:"name"`
    Players   []Player  `json:"players"`
    Status    Status    `json:"status"`
    CreatedAt time.Time `json:"createdDate"`
    UpdatedAt time.Time `json:"updatedDate"`
}

// Player returns the seat bound to identity.
func (r *Room) Player(identity string) (Player, bool) {
    if r == nil { return Player{}, false }
    for _, p := range r.Players {
        if p.Identity == identity { return p, true }
    }
    return Player{}, false
}

// Opponent returns the first seat not bound to identity.
func (r *Room) Opponent(identity string) (Player, bool) {
    if r == nil { return Player{}, false }
    for _, p := range r.Players {
        if p.Identity != identity { return p, true }
    }
    return Player{}, false
}

// IdentityOf returns the identity seated with colour c.
func (r *Room) IdentityOf(c rules.Color) string {
    if r == nil { return "" }
    for _, p := range r.Players {
        if p.Color == c { return p.Identity }
    }
    return ""
}

// RoomSpec names the room in a create request.
type RoomSpec struct {
    SessionID string `json:"gameSessionUuid"`
    Name      string `json:"name"`
}

// CreateRequest is the body of POST /api/rooms.
type CreateRequest struct {
    Room    RoomSpec `json:"room"`
    Players []Player `json:"players"`
}

// CreatePayload is returned on success.
type CreatePayload struct {
    SessionID string    `json:"gameSessionUuid"`
    StateID   string    `json:"gameStateId"`
    Name      string    `json:"name"`
    CreatedAt time.Time `json:"createDate"`
    Link      string    `json:"link1,omitempty"`
}

// CreateResponse wraps every create answer, success or not.
type CreateResponse struct {
    Status  bool           `json:"status"`
    Message string         `json:"message"`
    Payload *CreatePayload `json:"payload,omitempty"`
}

// Errors
var (
    ErrInvalidArgs    = errf("invalid arguments")
    ErrTooManyPlayers = errf("only two players can be added")
    ErrDuplicateSeat  = errf("player listed twice")
    ErrRoomExists     = errf("request id already exists")
    ErrRoomNotFound   = errf("room not found or expired")
)

type staticErr string
func (e staticErr) Error() string { return string(e) }
func errf(s string) error { return staticErr(s) }
