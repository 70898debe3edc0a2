package session

import (
    "context"
    "errors"
    "fmt"
    "strings"
    "sync"
    "time"

    "go.uber.org/zap"

    "github.com/park285/hopchess/internal/obslog"
    "github.com/park285/hopchess/internal/provision"
    "github.com/park285/hopchess/internal/rules"
)

// Hub owns the live rooms. Each room runs as its own goroutine and is
// created on first join and reaped once nobody is connected.
type Hub struct {
    src  RecordSource
    opts Options

    mu     sync.Mutex
    rooms  map[string]*room
    closed bool
    wg     sync.WaitGroup
}

func NewHub(src RecordSource, opts Options) *Hub {
    if opts.InboxSize <= 0 { opts.InboxSize = 32 }
    if opts.StoreTimeout <= 0 { opts.StoreTimeout = 2 * time.Second }
    return &Hub{src: src, opts: opts, rooms: make(map[string]*room)}
}

// Join binds identity to sessionID through peer. The room record is
// resolved once per join.
func (h *Hub) Join(ctx context.Context, sessionID, identity, name string, peer Peer) (JoinResult, error) {
    sessionID = strings.TrimSpace(sessionID)
    identity = strings.TrimSpace(identity)
    if sessionID == "" || identity == "" || peer == nil { return JoinResult{}, ErrInvalidArgs }
    rec, err := h.src.Get(ctx, sessionID)
    if err != nil {
        if errors.Is(err, provision.ErrRoomNotFound) { return JoinResult{}, ErrRoomNotFound }
        return JoinResult{}, fmt.Errorf("resolve room %s: %w", sessionID, err)
    }
    if rec == nil { return JoinResult{}, ErrRoomNotFound }
    switch rec.Status {
    case provision.StatusFinished, provision.StatusDrawn, provision.StatusDropped:
        return JoinResult{}, ErrRoomTerminated
    }
    res := h.dispatch(ctx, sessionID, true, event{kind: evJoin, peer: peer, identity: identity, name: strings.TrimSpace(name), record: rec})
    return res.join, res.err
}

// RelayMove forwards a move from peer to the other party.
func (h *Hub) RelayMove(ctx context.Context, sessionID string, peer Peer, m rules.Move) error {
    return h.dispatch(ctx, sessionID, false, event{kind: evMove, peer: peer, move: m}).err
}

// ExistingPlayer tells the other party that peer's player is already seated.
func (h *Hub) ExistingPlayer(ctx context.Context, sessionID string, peer Peer, name string) error {
    return h.dispatch(ctx, sessionID, false, event{kind: evExisting, peer: peer, name: name}).err
}

// FetchPlayers answers peer with the current connected count.
func (h *Hub) FetchPlayers(ctx context.Context, sessionID string, peer Peer) error {
    return h.dispatch(ctx, sessionID, false, event{kind: evFetch, peer: peer}).err
}

// Reset restarts the game for both players; membership is unchanged.
func (h *Hub) Reset(ctx context.Context, sessionID string, peer Peer) error {
    return h.dispatch(ctx, sessionID, false, event{kind: evReset, peer: peer}).err
}

// Disconnect unbinds peer. Safe to call more than once and for rooms that
// no longer exist.
func (h *Hub) Disconnect(ctx context.Context, sessionID string, peer Peer) error {
    err := h.dispatch(ctx, sessionID, false, event{kind: evDisconnect, peer: peer}).err
    if errors.Is(err, ErrRoomNotFound) || errors.Is(err, ErrHubClosed) { return nil }
    return err
}

func (h *Hub) Snapshot(ctx context.Context, sessionID string) (Snapshot, error) {
    res := h.dispatch(ctx, sessionID, false, event{kind: evSnapshot})
    return res.snap, res.err
}

// Rooms returns the number of live rooms.
func (h *Hub) Rooms() int {
    h.mu.Lock()
    defer h.mu.Unlock()
    return len(h.rooms)
}

// Close stops every room and waits for their goroutines.
func (h *Hub) Close() {
    h.mu.Lock()
    if h.closed {
        h.mu.Unlock()
        return
    }
    h.closed = true
    for id, r := range h.rooms {
        r.stop()
        delete(h.rooms, id)
    }
    h.mu.Unlock()
    h.wg.Wait()
    obslog.L().Info("hub_closed")
}

func (h *Hub) dispatch(ctx context.Context, sessionID string, create bool, ev event) reply {
    if sessionID == "" { return reply{err: ErrInvalidArgs} }
    for attempt := 0; attempt < 3; attempt++ {
        r, err := h.lookup(sessionID, create)
        if err != nil { return reply{err: err} }
        res := r.submit(ctx, ev)
        if !errors.Is(res.err, errReaped) { return res }
    }
    return reply{err: ErrRoomTerminated}
}

func (h *Hub) lookup(sessionID string, create bool) (*room, error) {
    h.mu.Lock()
    defer h.mu.Unlock()
    if h.closed { return nil, ErrHubClosed }
    if r, ok := h.rooms[sessionID]; ok { return r, nil }
    if !create { return nil, ErrRoomNotFound }
    r := newRoom(sessionID, h)
    h.rooms[sessionID] = r
    h.wg.Add(1)
    go r.run()
    obslog.Room(sessionID).Debug("room_open")
    return r, nil
}

// reap removes r if it is still the registered room for its id.
func (h *Hub) reap(r *room) bool {
    h.mu.Lock()
    defer h.mu.Unlock()
    if cur, ok := h.rooms[r.id]; ok && cur == r {
        delete(h.rooms, r.id)
    }
    r.stop()
    r.log.Debug("room_reaped", zap.String("state", string(r.state)))
    return true
}
