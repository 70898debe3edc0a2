package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/park285/hopchess/internal/msgcat"
	"github.com/park285/hopchess/internal/obslog"
	"github.com/park285/hopchess/internal/protocol"
	"github.com/park285/hopchess/internal/rules"
	"github.com/park285/hopchess/internal/session"
)

// Rooms is the part of session.Hub the transport drives.
type Rooms interface {
	Join(ctx context.Context, sessionID, identity, name string, peer session.Peer) (session.JoinResult, error)
	RelayMove(ctx context.Context, sessionID string, peer session.Peer, m rules.Move) error
	ExistingPlayer(ctx context.Context, sessionID string, peer session.Peer, name string) error
	FetchPlayers(ctx context.Context, sessionID string, peer session.Peer) error
	Reset(ctx context.Context, sessionID string, peer session.Peer) error
	Disconnect(ctx context.Context, sessionID string, peer session.Peer) error
	Rooms() int
}

type Options struct {
	// AllowOrigins lists browser origins accepted on /ws. Empty accepts any origin.
	AllowOrigins []string
	SendQueue    int
	PingInterval time.Duration
	Catalog      *msgcat.Catalog
}

// Server accepts relay websockets and feeds their frames to Rooms.
type Server struct {
	rooms  Rooms
	allow  map[string]bool
	queue  int
	ping   time.Duration
	cat    *msgcat.Catalog
	peers  atomic.Int64
}

func NewServer(rooms Rooms, opts Options) *Server {
	allow := map[string]bool{}
	for _, o := range opts.AllowOrigins {
		if o = strings.TrimSpace(o); o != "" {
			allow[o] = true
		}
	}
	if opts.SendQueue <= 0 {
		opts.SendQueue = 64
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 15 * time.Second
	}
	return &Server{rooms: rooms, allow: allow, queue: opts.SendQueue, ping: opts.PingInterval, cat: opts.Catalog}
}

// Register mounts /ws and /health.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.ServeWS)
	mux.HandleFunc("/health", s.health)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": "ok",
		"rooms":  s.rooms.Rooms(),
		"peers":  s.peers.Load(),
	})
}

func (s *Server) originAllowed(origin string) bool {
	if origin == "" || len(s.allow) == 0 {
		return true
	}
	return s.allow[origin]
}

func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if !s.originAllowed(origin) {
		obslog.L().Warn("relay_origin_rejected", zap.String("origin", origin))
		http.Error(w, "forbidden origin", http.StatusForbidden)
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		obslog.L().Warn("relay_accept_error", zap.Error(err))
		return
	}

	p := newPeer(newPeerID(), s.queue)
	s.peers.Add(1)
	p.log.Info("relay_connected", zap.String("remote", r.RemoteAddr))

	ctx := r.Context()
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.writeLoop(ctx, c, p)
	}()

	s.readLoop(ctx, c, p)

	p.close()
	<-done
	if room := p.room(); room != "" {
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.rooms.Disconnect(dctx, room, p); err != nil {
			p.log.Warn("relay_disconnect_error", obslog.Session(room), zap.Error(err))
		}
		cancel()
	}
	_ = c.Close(websocket.StatusNormalClosure, "bye")
	s.peers.Add(-1)
	p.log.Info("relay_disconnected")
}

func (s *Server) writeLoop(ctx context.Context, c *websocket.Conn, p *peer) {
	ping := time.NewTicker(s.ping)
	defer ping.Stop()
	for {
		select {
		case <-p.closed:
			return
		case msg := <-p.send:
			wctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := c.Write(wctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				p.log.Debug("relay_write_error", zap.Error(err))
				p.close()
				_ = c.Close(websocket.StatusGoingAway, "write failed")
				return
			}
		case <-ping.C:
			pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := c.Ping(pctx)
			cancel()
			if err != nil {
				p.log.Debug("relay_ping_error", zap.Error(err))
				p.close()
				_ = c.Close(websocket.StatusGoingAway, "ping failed")
				return
			}
		}
	}
}

func (s *Server) readLoop(ctx context.Context, c *websocket.Conn, p *peer) {
	for {
		_, data, err := c.Read(ctx)
		if err != nil {
			return
		}
		env, err := protocol.Parse(data)
		if err != nil {
			s.reject(p, "", err)
			continue
		}
		s.dispatch(ctx, p, env)
	}
}

func (s *Server) dispatch(ctx context.Context, p *peer, env protocol.Envelope) {
	room := p.room()
	if room == "" {
		room = strings.TrimSpace(env.Room)
	}
	var err error
	switch env.Type {
	case protocol.TypeJoinRoom:
		var jr protocol.JoinRoom
		if err = env.Decode(&jr); err != nil {
			break
		}
		target := strings.TrimSpace(env.Room)
		if prev := p.room(); prev != "" && prev != target {
			_ = s.rooms.Disconnect(ctx, prev, p)
			p.setRoom("")
		}
		var res session.JoinResult
		if res, err = s.rooms.Join(ctx, target, jr.Identity, jr.Name, p); err != nil {
			room = target
			break
		}
		p.setRoom(target)
		p.log.Info("relay_join",
			obslog.Session(target),
			zap.String("color", string(res.Color)),
			zap.Int("connected", res.Count),
		)
	case protocol.TypeMoveMade:
		var mm protocol.MoveMade
		if err = env.Decode(&mm); err == nil {
			err = s.rooms.RelayMove(ctx, room, p, mm.Move)
		}
	case protocol.TypeExistingPlayer:
		var ep protocol.ExistingPlayer
		if err = env.Decode(&ep); err == nil {
			err = s.rooms.ExistingPlayer(ctx, room, p, ep.Name)
		}
	case protocol.TypeFetchPlayers:
		err = s.rooms.FetchPlayers(ctx, room, p)
	case protocol.TypeResetGame:
		err = s.rooms.Reset(ctx, room, p)
	case protocol.TypePlayerLeft:
		err = s.rooms.Disconnect(ctx, room, p)
		p.setRoom("")
	default:
		p.log.Debug("relay_frame_ignored", zap.String("type", string(env.Type)))
		return
	}
	if err != nil {
		s.reject(p, room, err)
	}
}

// reject answers the offending peer with a newError frame.
func (s *Server) reject(p *peer, room string, cause error) {
	code := errorCode(cause)
	msg := s.cat.Error(code, room)
	p.log.Info("relay_rejected", obslog.Session(room), zap.String("code", code), zap.Error(cause))
	env, err := protocol.New(protocol.TypeNewError, room, protocol.NewError{Code: code, Message: msg})
	if err != nil {
		return
	}
	_ = p.Send(env)
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, session.ErrInvalidArgs):
		return msgcat.CodeInvalidArgs
	case errors.Is(err, session.ErrRoomNotFound):
		return msgcat.CodeRoomNotFound
	case errors.Is(err, session.ErrUnknownPlayer):
		return msgcat.CodeUnknownPlayer
	case errors.Is(err, session.ErrRoomFull):
		return msgcat.CodeRoomFull
	case errors.Is(err, session.ErrRoomTerminated):
		return msgcat.CodeRoomTerminated
	case errors.Is(err, session.ErrNotJoined):
		return msgcat.CodeNotJoined
	case errors.Is(err, session.ErrNotReady):
		return msgcat.CodeNotReady
	case errors.Is(err, session.ErrIllegalMove):
		return msgcat.CodeIllegalMove
	case errors.Is(err, protocol.ErrMalformed), errors.Is(err, protocol.ErrUnknownType):
		return msgcat.CodeMalformed
	}
	return msgcat.CodeInternal
}

var (
	errPeerClosed = errors.New("peer closed")
	errQueueFull  = errors.New("send queue full")
)

// peer is one websocket connection as seen by the session hub.
type peer struct {
	id        string
	log       *zap.Logger
	send      chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	session string
}

func newPeer(id string, queue int) *peer {
	return &peer{id: id, log: obslog.Peer(id), send: make(chan []byte, queue), closed: make(chan struct{})}
}

func (p *peer) ID() string { return p.id }

// Send queues env without blocking; a full queue drops the frame.
func (p *peer) Send(env protocol.Envelope) error {
	b, err := env.Bytes()
	if err != nil {
		return err
	}
	select {
	case <-p.closed:
		return errPeerClosed
	default:
	}
	select {
	case p.send <- b:
		return nil
	default:
		return errQueueFull
	}
}

func (p *peer) close() { p.closeOnce.Do(func() { close(p.closed) }) }

func (p *peer) room() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session
}

func (p *peer) setRoom(id string) {
	p.mu.Lock()
	p.session = id
	p.mu.Unlock()
}

func newPeerID() string { return uuid.NewString() }
