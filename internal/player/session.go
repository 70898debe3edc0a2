package player

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/hopchess/internal/msgcat"
	"github.com/park285/hopchess/internal/obslog"
	"github.com/park285/hopchess/internal/protocol"
	"github.com/park285/hopchess/internal/provision"
	"github.com/park285/hopchess/internal/rules"
)

// RecordFetcher resolves room records; provision.Client and provision.Store both fit.
type RecordFetcher interface {
	Get(ctx context.Context, sessionID string) (*provision.Room, error)
}

// Sender delivers frames to the relay.
type Sender interface {
	Send(ctx context.Context, env protocol.Envelope) error
}

var (
	ErrInvalidArgs   = errors.New("missing session or identity")
	ErrRoomNotFound  = errors.New("room not found")
	ErrUnknownPlayer = errors.New("identity is not a player of this room")
	ErrNotJoined     = errors.New("not joined")
	ErrNotStarted    = errors.New("waiting for the opponent")
	ErrNotYourPiece  = errors.New("piece belongs to the opponent")
)

// Notification is one system message shown to the player.
type Notification struct {
	Author string
	Text   string
	At     time.Time
}

// Opponent is what the client knows about the other seat.
type Opponent struct {
	Identity string
	Name     string
}

// View is a copy of the session state for rendering.
type View struct {
	SessionID string
	Identity  string
	Name      string
	Color     rules.Color
	Opponent  Opponent
	Joined    bool
	Started   bool
	Game      rules.State
	Board     *rules.Board
	Over      *rules.GameOver
}

// Session is one player's side of a relayed game. The local rules.Game is
// authoritative for this client; the relay only forwards.
type Session struct {
	cache   IdentityCache
	records RecordFetcher
	out     Sender
	cat     *msgcat.Catalog
	tasks   chan func()
	now     func() time.Time

	mu        sync.Mutex
	sessionID string
	identity  string
	name      string
	color     rules.Color
	opponent  Opponent
	joined    bool
	started   bool
	game      *rules.Game
	over      *rules.GameOver
	notes     []Notification
	onNote    func(Notification)
}

func NewSession(cache IdentityCache, records RecordFetcher, out Sender, cat *msgcat.Catalog) *Session {
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Session{
		cache:   cache,
		records: records,
		out:     out,
		cat:     cat,
		tasks:   make(chan func(), 16),
		now:     time.Now,
		game:    rules.NewGame(),
	}
}

// OnNotification registers a callback invoked for each new notification.
func (s *Session) OnNotification(fn func(Notification)) {
	s.mu.Lock()
	s.onNote = fn
	s.mu.Unlock()
}

// Join binds this client to sessionID. A cached identity for the session
// skips the record fetch.
func (s *Session) Join(ctx context.Context, sessionID, identity string) error {
	sessionID = strings.TrimSpace(sessionID)
	identity = strings.TrimSpace(identity)
	if sessionID == "" || identity == "" {
		s.notifyError(msgcat.CodeInvalidArgs, sessionID)
		return ErrInvalidArgs
	}

	id, opp, err := s.resolve(ctx, sessionID, identity)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.sessionID = id.SessionID
	s.identity = id.Identity
	s.name = id.Name
	s.color = id.Color
	if opp.Identity != "" {
		s.opponent = opp
	}
	s.mu.Unlock()

	obslog.Room(sessionID).Info("player_join", obslog.Identity(id.Identity), zap.String("color", string(id.Color)))
	return s.send(ctx, protocol.TypeJoinRoom, protocol.JoinRoom{Identity: id.Identity, Name: id.Name, Color: id.Color})
}

func (s *Session) resolve(ctx context.Context, sessionID, identity string) (Identity, Opponent, error) {
	if cached, ok := s.cache.Load(sessionID); ok && cached.Identity == identity {
		return cached, Opponent{}, nil
	}
	if s.records == nil {
		return Identity{}, Opponent{}, fmt.Errorf("%w: no record source", ErrRoomNotFound)
	}
	rec, err := s.records.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, provision.ErrRoomNotFound) {
			s.notifyError(msgcat.CodeRoomNotFound, sessionID)
			return Identity{}, Opponent{}, ErrRoomNotFound
		}
		s.notifyError(msgcat.CodeInternal, sessionID)
		return Identity{}, Opponent{}, fmt.Errorf("fetch room %s: %w", sessionID, err)
	}
	seat, ok := rec.Player(identity)
	if !ok {
		s.notifyError(msgcat.CodeUnknownPlayer, sessionID)
		return Identity{}, Opponent{}, ErrUnknownPlayer
	}
	id := Identity{SessionID: sessionID, Identity: seat.Identity, Name: seat.Name, Color: seat.Color}
	var opp Opponent
	if o, ok := rec.Opponent(identity); ok {
		opp = Opponent{Identity: o.Identity, Name: o.Name}
	}
	if err := s.cache.Store(id); err != nil {
		obslog.Room(sessionID).Warn("player_cache_error", zap.Error(err))
	}
	return id, opp, nil
}

// Handle applies one relay frame to the local state.
func (s *Session) Handle(ctx context.Context, env protocol.Envelope) error {
	s.mu.Lock()
	if s.sessionID != "" && env.Room != "" && env.Room != s.sessionID {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	switch env.Type {
	case protocol.TypePlayerJoined:
		var p protocol.PlayerJoined
		if err := env.Decode(&p); err != nil {
			return err
		}
		return s.playerJoined(ctx, p)
	case protocol.TypeExistingPlayer:
		var p protocol.ExistingPlayer
		if err := env.Decode(&p); err != nil {
			return err
		}
		s.mu.Lock()
		if p.Identity != s.identity {
			s.opponent = Opponent{Identity: p.Identity, Name: p.Name}
		}
		s.mu.Unlock()
	case protocol.TypeMoveMade:
		var p protocol.MoveMade
		if err := env.Decode(&p); err != nil {
			return err
		}
		return s.moveMade(p.Move)
	case protocol.TypeGameReset:
		s.mu.Lock()
		s.game.Reset()
		s.over = nil
		s.mu.Unlock()
		s.addNote(s.cat.Reset())
	case protocol.TypePlayerDisconnected:
		s.opponentDropped()
	case protocol.TypePlayersInRoom:
		var p protocol.PlayersInRoom
		if err := env.Decode(&p); err != nil {
			return err
		}
		s.mu.Lock()
		was := s.started
		s.started = p.Count >= 2
		now := s.started
		s.mu.Unlock()
		if now && !was {
			s.addNote(s.cat.Started())
		}
	case protocol.TypeNewError:
		var p protocol.NewError
		if err := env.Decode(&p); err != nil {
			return err
		}
		s.addNote(p.Message)
	default:
		obslog.L().Debug("player_frame_ignored", zap.String("type", string(env.Type)))
	}
	return nil
}

func (s *Session) playerJoined(ctx context.Context, p protocol.PlayerJoined) error {
	s.mu.Lock()
	room := s.sessionID
	self := p.Identity == s.identity
	if self {
		s.joined = true
		if p.Color.Valid() {
			s.color = p.Color
		}
	} else {
		s.opponent = Opponent{Identity: p.Identity, Name: p.Name}
	}
	identity, name := s.identity, s.name
	s.mu.Unlock()

	s.addNote(s.cat.Joined(p.Name, room))
	if self {
		return nil
	}
	return s.send(ctx, protocol.TypeExistingPlayer, protocol.ExistingPlayer{Identity: identity, Name: name})
}

func (s *Session) moveMade(m rules.Move) error {
	s.mu.Lock()
	_, err := s.game.Apply(m)
	s.mu.Unlock()
	if err != nil {
		obslog.L().Warn("player_move_rejected", obslog.Move(m.Notation()), zap.Error(err))
		s.notifyError(msgcat.CodeIllegalMove, "")
		return err
	}
	s.checkGameOver()
	return nil
}

// opponentDropped ends the game once; later frames are ignored.
func (s *Session) opponentDropped() {
	s.mu.Lock()
	if s.over != nil || !s.color.Valid() {
		s.mu.Unlock()
		return
	}
	if err := s.game.Drop(s.color); err != nil {
		s.mu.Unlock()
		return
	}
	over, _ := s.outcomeLocked()
	s.over = &over
	opp, room := s.opponent.Name, s.sessionID
	s.mu.Unlock()

	obslog.Room(room).Info("player_opponent_dropped")
	s.addNote(s.cat.Dropped(opp, room))
}

// Play executes a legal move locally and relays it. When the relay refuses
// the frame the local move is taken back.
func (s *Session) Play(ctx context.Context, from, to rules.Position) (rules.Move, error) {
	s.mu.Lock()
	if s.sessionID == "" {
		s.mu.Unlock()
		return rules.Move{}, ErrNotJoined
	}
	if !s.started {
		s.mu.Unlock()
		return rules.Move{}, ErrNotStarted
	}
	if p, ok := s.game.Board().Lookup(from); ok && !p.Empty() && p.Color != s.color {
		s.mu.Unlock()
		return rules.Move{}, ErrNotYourPiece
	}
	snap := s.game.Snapshot()
	played := len(s.game.History())
	room := s.sessionID
	m, err := s.game.Play(from, to)
	s.mu.Unlock()
	if err != nil {
		return rules.Move{}, err
	}
	if err := s.send(ctx, protocol.TypeMoveMade, protocol.MoveMade{Move: m}); err != nil {
		s.takeBack(snap, played+1)
		obslog.Room(room).Warn("player_move_unsent", obslog.Move(m.Notation()), zap.Error(err))
		return rules.Move{}, err
	}
	s.checkGameOver()
	return m, nil
}

// takeBack restores snap unless another frame changed the game after the
// unsent move.
func (s *Session) takeBack(snap rules.Snapshot, moves int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.game.History()) == moves {
		s.game.Restore(snap)
	}
}

// LegalMoves lists the moves the piece on from may make.
func (s *Session) LegalMoves(from rules.Position) []rules.Move {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.game.LegalMoves(from)
}

// RequestReset asks the relay to restart the game; the board resets when
// gameReset arrives.
func (s *Session) RequestReset(ctx context.Context) error {
	return s.send(ctx, protocol.TypeResetGame, nil)
}

// Leave tells the relay this player is gone.
func (s *Session) Leave(ctx context.Context) error {
	return s.send(ctx, protocol.TypePlayerLeft, nil)
}

// Post queues fn to run on the Run loop.
func (s *Session) Post(fn func()) {
	s.tasks <- fn
}

// Run handles inbound frames and posted tasks one at a time until ctx ends
// or inbound closes.
func (s *Session) Run(ctx context.Context, inbound <-chan protocol.Envelope) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-s.tasks:
			fn()
		case env, ok := <-inbound:
			if !ok {
				return nil
			}
			if err := s.Handle(ctx, env); err != nil {
				obslog.L().Warn("player_frame_error", zap.String("type", string(env.Type)), zap.Error(err))
			}
		}
	}
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{
		SessionID: s.sessionID,
		Identity:  s.identity,
		Name:      s.name,
		Color:     s.color,
		Opponent:  s.opponent,
		Joined:    s.joined,
		Started:   s.started,
		Game:      s.game.State(),
		Board:     s.game.Board(),
	}
	if s.over != nil {
		o := *s.over
		v.Over = &o
	}
	return v
}

func (s *Session) Notifications() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Notification(nil), s.notes...)
}

func (s *Session) checkGameOver() {
	s.mu.Lock()
	if s.over != nil || !s.game.State().Terminal() {
		s.mu.Unlock()
		return
	}
	over, ok := s.outcomeLocked()
	if !ok {
		s.mu.Unlock()
		return
	}
	s.over = &over
	winner := s.name
	if over.Winner != s.color {
		winner = s.opponent.Name
	}
	s.mu.Unlock()

	switch over.Type {
	case rules.GameOverCheckmate:
		s.addNote(s.cat.Checkmate(winner))
	case rules.GameOverStalemate:
		s.addNote(s.cat.Stalemate())
	}
}

func (s *Session) outcomeLocked() (rules.GameOver, bool) {
	white, black := s.identity, s.opponent.Identity
	if s.color == rules.Black {
		white, black = black, white
	}
	return s.game.Outcome(s.sessionID, white, black)
}

func (s *Session) send(ctx context.Context, t protocol.Type, payload any) error {
	s.mu.Lock()
	room := s.sessionID
	s.mu.Unlock()
	if s.out == nil {
		return ErrNotJoined
	}
	env, err := protocol.New(t, room, payload)
	if err != nil {
		return err
	}
	if err := s.out.Send(ctx, env); err != nil {
		return fmt.Errorf("send %s: %w", t, err)
	}
	return nil
}

func (s *Session) notifyError(code, room string) {
	s.addNote(s.cat.Error(code, room))
}

func (s *Session) addNote(text string) {
	if text == "" {
		return
	}
	n := Notification{Author: s.cat.Author(), Text: text, At: s.now()}
	s.mu.Lock()
	s.notes = append(s.notes, n)
	cb := s.onNote
	s.mu.Unlock()
	if cb != nil {
		cb(n)
	}
}
