package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/park285/hopchess/internal/rules"
)

// Type names a relay event. The set is part of the wire contract.
type Type string

const (
	// client -> server
	TypeJoinRoom     Type = "joinRoom"
	TypeFetchPlayers Type = "fetchPlayers"
	TypeResetGame    Type = "resetGame"
	TypePlayerLeft   Type = "playerLeft"

	// both directions; the server forwards to the other party
	TypeExistingPlayer Type = "existingPlayer"
	TypeMoveMade       Type = "moveMade"

	// server -> client
	TypePlayerJoined       Type = "playerJoined"
	TypePlayersInRoom      Type = "playersInRoom"
	TypeGameReset          Type = "gameReset"
	TypePlayerDisconnected Type = "playerDisconnected"
	TypeNewError           Type = "newError"
)

var known = map[Type]bool{
	TypeJoinRoom: true, TypeFetchPlayers: true, TypeResetGame: true, TypePlayerLeft: true,
	TypeExistingPlayer: true, TypeMoveMade: true,
	TypePlayerJoined: true, TypePlayersInRoom: true, TypeGameReset: true,
	TypePlayerDisconnected: true, TypeNewError: true,
}

var (
	ErrMalformed   = errors.New("malformed envelope")
	ErrUnknownType = errors.New("unknown event type")
)

// Envelope is one relay frame.
type Envelope struct {
	Type Type            `json:"type"`
	Room string          `json:"room,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// New wraps payload into an envelope. A nil payload leaves Data empty.
func New(t Type, room string, payload any) (Envelope, error) {
	env := Envelope{Type: t, Room: room}
	if payload == nil {
		return env, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s: %w", t, err)
	}
	env.Data = raw
	return env, nil
}

// Encode builds and serialises an envelope in one step.
func Encode(t Type, room string, payload any) ([]byte, error) {
	env, err := New(t, room, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// Parse decodes a frame and rejects unknown event types.
func Parse(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	if !known[env.Type] {
		return Envelope{}, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	return env, nil
}

// Decode unmarshals the payload into v. An empty payload leaves v untouched.
func (e Envelope) Decode(v any) error {
	if len(e.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrMalformed, e.Type, err)
	}
	return nil
}

// Bytes serialises the envelope.
func (e Envelope) Bytes() ([]byte, error) { return json.Marshal(e) }

// JoinRoom asks the relay to bind identity to the room's session.
type JoinRoom struct {
	Identity string      `json:"identity"`
	Name     string      `json:"name"`
	Color    rules.Color `json:"color,omitempty"`
}

// PlayerJoined announces a bound player to everyone in the room.
type PlayerJoined struct {
	Identity string      `json:"identity"`
	Name     string      `json:"name"`
	Color    rules.Color `json:"color"`
}

// ExistingPlayer tells a newcomer who was already seated.
type ExistingPlayer struct {
	Identity string `json:"identity"`
	Name     string `json:"name"`
}

// MoveMade carries an executed move to the other party.
type MoveMade struct {
	Move rules.Move `json:"move"`
}

// PlayersInRoom reports how many identities are bound; 2 starts the game.
type PlayersInRoom struct {
	Count int `json:"count"`
}

// PlayerDisconnected signals that the other party is gone.
type PlayerDisconnected struct {
	Dropped bool `json:"dropped"`
}

// NewError reports a boundary error to the peer that caused it.
type NewError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
