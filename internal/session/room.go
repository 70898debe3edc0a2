package session

import (
    "context"
    "fmt"
    "sync"

    "go.uber.org/zap"

    "github.com/park285/hopchess/internal/obslog"
    "github.com/park285/hopchess/internal/protocol"
    "github.com/park285/hopchess/internal/provision"
    "github.com/park285/hopchess/internal/rules"
)

type eventKind int

const (
    evJoin eventKind = iota
    evMove
    evExisting
    evFetch
    evReset
    evDisconnect
    evSnapshot
)

func (k eventKind) String() string {
    switch k {
    case evJoin:
        return "join"
    case evMove:
        return "move"
    case evExisting:
        return "existing"
    case evFetch:
        return "fetch"
    case evReset:
        return "reset"
    case evDisconnect:
        return "disconnect"
    case evSnapshot:
        return "snapshot"
    }
    return "unknown"
}

type event struct {
    kind     eventKind
    peer     Peer
    identity string
    name     string
    record   *provision.Room
    move     rules.Move
    reply    chan reply
}

type reply struct {
    err  error
    join JoinResult
    snap Snapshot
}

type binding struct {
    identity string
    name     string
    color    rules.Color
    peer     Peer
}

// room is a single-goroutine actor. Every field below quit is owned by run.
type room struct {
    id       string
    hub      *Hub
    log      *zap.Logger
    inbox    chan event
    quit     chan struct{}
    quitOnce sync.Once

    state   State
    players []*binding
    game    *rules.Game
    desync  bool
    outcome *rules.GameOver
}

func newRoom(id string, h *Hub) *room {
    return &room{
        id:    id,
        hub:   h,
        log:   obslog.Room(id),
        inbox: make(chan event, h.opts.InboxSize),
        quit:  make(chan struct{}),
        state: StateEmpty,
        game:  rules.NewGame(),
    }
}

func (r *room) stop() { r.quitOnce.Do(func() { close(r.quit) }) }

func (r *room) run() {
    defer r.hub.wg.Done()
    for {
        select {
        case ev := <-r.inbox:
            res := r.handle(ev)
            if ev.reply != nil {
                ev.reply <- res
            }
            if r.reapable() && r.hub.reap(r) {
                return
            }
        case <-r.quit:
            return
        }
    }
}

// submit delivers ev and waits for the actor's answer.
func (r *room) submit(ctx context.Context, ev event) reply {
    ev.reply = make(chan reply, 1)
    select {
    case r.inbox <- ev:
    case <-r.quit:
        return reply{err: errReaped}
    case <-ctx.Done():
        return reply{err: ctx.Err()}
    }
    select {
    case res := <-ev.reply:
        return res
    case <-r.quit:
        // the answer is buffered before the actor can stop
        select {
        case res := <-ev.reply:
            return res
        default:
            return reply{err: errReaped}
        }
    case <-ctx.Done():
        return reply{err: ctx.Err()}
    }
}

func (r *room) handle(ev event) reply {
    if ev.kind == evSnapshot {
        return reply{snap: r.snapshot()}
    }
    if r.state == StateTerminated {
        if ev.kind == evDisconnect {
            if b := r.byPeer(ev.peer); b != nil {
                b.peer = nil
            }
            return reply{}
        }
        r.log.Debug("room_event_dropped", zap.String("event", ev.kind.String()))
        return reply{err: ErrRoomTerminated}
    }
    switch ev.kind {
    case evJoin:
        return r.join(ev)
    case evMove:
        return reply{err: r.relayMove(ev)}
    case evExisting:
        return reply{err: r.existing(ev)}
    case evFetch:
        r.send(ev.peer, protocol.TypePlayersInRoom, protocol.PlayersInRoom{Count: r.connected()})
        return reply{}
    case evReset:
        return reply{err: r.reset(ev)}
    case evDisconnect:
        r.disconnect(ev)
        return reply{}
    }
    return reply{err: fmt.Errorf("unhandled event %s", ev.kind)}
}

func (r *room) join(ev event) reply {
    if b := r.byIdentity(ev.identity); b != nil {
        if b.peer != nil && b.peer.ID() != ev.peer.ID() {
            r.log.Info("room_rebind", obslog.Identity(b.identity), zap.String("peer", ev.peer.ID()))
        }
        b.peer = ev.peer
        if ev.name != "" {
            b.name = ev.name
        }
        r.announce(b)
        return reply{join: r.joinResult(b)}
    }
    if len(r.players) >= 2 {
        r.log.Warn("room_join_rejected", obslog.Identity(ev.identity), zap.String("reason", "full"))
        return reply{err: ErrRoomFull}
    }
    seat, ok := ev.record.Player(ev.identity)
    if !ok {
        r.log.Warn("room_join_rejected", obslog.Identity(ev.identity), zap.String("reason", "unknown_player"))
        return reply{err: ErrUnknownPlayer}
    }
    if !seat.Color.Valid() || r.byColor(seat.Color) != nil {
        return reply{err: fmt.Errorf("%w: colour %q unavailable", ErrRoomFull, seat.Color)}
    }
    name := ev.name
    if name == "" {
        name = seat.Name
    }
    b := &binding{identity: ev.identity, name: name, color: seat.Color, peer: ev.peer}
    r.players = append(r.players, b)
    if len(r.players) == 2 {
        r.setState(StateReady)
    } else {
        r.setState(StateAwaiting)
    }
    r.log.Info("room_join",
        obslog.Identity(b.identity),
        zap.String("color", string(b.color)),
        zap.Int("bound", len(r.players)),
    )
    r.announce(b)
    return reply{join: r.joinResult(b)}
}

func (r *room) relayMove(ev event) error {
    b := r.byPeer(ev.peer)
    if b == nil {
        return ErrNotJoined
    }
    if r.state != StateReady && r.state != StateInGame {
        return ErrNotReady
    }
    m := ev.move
    if r.hub.opts.StrictMoves {
        if b.color != r.game.Turn() {
            return fmt.Errorf("%w: %v", ErrIllegalMove, rules.ErrNotYourTurn)
        }
        applied, err := r.game.Play(m.From(), m.NewPosition)
        if err != nil {
            return fmt.Errorf("%w: %v", ErrIllegalMove, err)
        }
        m = applied
    } else if !r.desync {
        if b.color != r.game.Turn() {
            r.markDesync(b, rules.ErrNotYourTurn)
        } else if _, err := r.game.Apply(m); err != nil {
            r.markDesync(b, err)
        }
    }
    r.setState(StateInGame)
    r.sendOthers(b, protocol.TypeMoveMade, protocol.MoveMade{Move: m})
    r.log.Info("room_relay_move",
        obslog.Identity(b.identity),
        obslog.Move(m.Notation()),
    )
    if !r.desync && r.game.State().Terminal() {
        r.finish()
    }
    return nil
}

// markDesync stops mirroring after the relayed game diverges from the mirror.
// Moves are still forwarded; the room simply stops recording board outcomes.
func (r *room) markDesync(b *binding, cause error) {
    r.desync = true
    r.log.Warn("room_mirror_desync", obslog.Identity(b.identity), zap.Error(cause))
}

func (r *room) existing(ev event) error {
    b := r.byPeer(ev.peer)
    if b == nil {
        return ErrNotJoined
    }
    name := ev.name
    if name == "" {
        name = b.name
    }
    r.sendOthers(b, protocol.TypeExistingPlayer, protocol.ExistingPlayer{Identity: b.identity, Name: name})
    return nil
}

func (r *room) reset(ev event) error {
    b := r.byPeer(ev.peer)
    if b == nil {
        return ErrNotJoined
    }
    if r.state != StateReady && r.state != StateInGame {
        return ErrNotReady
    }
    r.game.Reset()
    r.desync = false
    r.broadcast(protocol.TypeGameReset, nil)
    r.setState(StateReady)
    r.log.Info("room_reset", obslog.Identity(b.identity))
    return nil
}

func (r *room) disconnect(ev event) {
    b := r.byPeer(ev.peer)
    if b == nil {
        return
    }
    b.peer = nil
    if r.state != StateReady && r.state != StateInGame {
        r.log.Info("room_leave", obslog.Identity(b.identity))
        return
    }
    other := r.other(b)
    if other == nil {
        return
    }
    if err := r.game.Drop(other.color); err != nil {
        r.log.Warn("room_drop_error", zap.Error(err))
        return
    }
    if other.peer != nil {
        r.send(other.peer, protocol.TypePlayerDisconnected, protocol.PlayerDisconnected{Dropped: true})
    }
    r.log.Info("room_dropped",
        zap.String("dropped", b.identity),
        zap.String("winner", other.identity),
    )
    r.finish()
}

// finish records the terminal outcome once and closes the room to events.
func (r *room) finish() {
    over, ok := r.game.Outcome(r.id, r.identityOf(rules.White), r.identityOf(rules.Black))
    if !ok || r.outcome != nil {
        return
    }
    r.outcome = &over
    r.state = StateTerminated
    switch over.Type {
    case rules.GameOverCheckmate:
        r.updateStatus(provision.StatusFinished)
    case rules.GameOverStalemate:
        r.updateStatus(provision.StatusDrawn)
    case rules.GameOverDropped:
        r.updateStatus(provision.StatusDropped)
    }
    r.log.Info("room_game_over",
        zap.String("type", string(over.Type)),
        zap.String("winner", string(over.Winner)),
        zap.Int("moves", len(over.Moves)),
    )
    if rec := r.hub.opts.Recorder; rec != nil {
        rec.Record(context.Background(), over)
    }
}

func (r *room) setState(st State) {
    if r.state == st {
        return
    }
    r.state = st
    switch st {
    case StateAwaiting:
        r.updateStatus(provision.StatusWaiting)
    case StateReady:
        r.updateStatus(provision.StatusReady)
    case StateInGame:
        r.updateStatus(provision.StatusInGame)
    }
}

func (r *room) updateStatus(st provision.Status) {
    up := r.hub.opts.Status
    if up == nil {
        return
    }
    ctx, cancel := context.WithTimeout(context.Background(), r.hub.opts.StoreTimeout)
    defer cancel()
    if err := up.SetStatus(ctx, r.id, st); err != nil {
        r.log.Warn("room_status_sync_error", zap.String("status", string(st)), zap.Error(err))
    }
}

// reapable: nobody is connected and nothing is left to play.
func (r *room) reapable() bool {
    if r.connected() > 0 {
        return false
    }
    return r.state == StateTerminated || r.state == StateAwaiting || r.state == StateEmpty
}

func (r *room) announce(b *binding) {
    r.broadcast(protocol.TypePlayerJoined, protocol.PlayerJoined{Identity: b.identity, Name: b.name, Color: b.color})
    r.broadcast(protocol.TypePlayersInRoom, protocol.PlayersInRoom{Count: r.connected()})
}

func (r *room) joinResult(b *binding) JoinResult {
    return JoinResult{Color: b.color, State: r.state, Count: r.connected()}
}

func (r *room) send(p Peer, t protocol.Type, payload any) {
    if p == nil {
        return
    }
    env, err := protocol.New(t, r.id, payload)
    if err != nil {
        r.log.Error("room_encode_error", zap.String("type", string(t)), zap.Error(err))
        return
    }
    if err := p.Send(env); err != nil {
        r.log.Warn("room_send_error", zap.String("peer", p.ID()), zap.String("type", string(t)), zap.Error(err))
    }
}

func (r *room) broadcast(t protocol.Type, payload any) {
    for _, b := range r.players {
        r.send(b.peer, t, payload)
    }
}

func (r *room) sendOthers(from *binding, t protocol.Type, payload any) {
    for _, b := range r.players {
        if b != from {
            r.send(b.peer, t, payload)
        }
    }
}

func (r *room) connected() int {
    n := 0
    for _, b := range r.players {
        if b.peer != nil {
            n++
        }
    }
    return n
}

func (r *room) byIdentity(id string) *binding {
    for _, b := range r.players {
        if b.identity == id {
            return b
        }
    }
    return nil
}

func (r *room) byPeer(p Peer) *binding {
    if p == nil {
        return nil
    }
    for _, b := range r.players {
        if b.peer != nil && b.peer.ID() == p.ID() {
            return b
        }
    }
    return nil
}

func (r *room) byColor(c rules.Color) *binding {
    for _, b := range r.players {
        if b.color == c {
            return b
        }
    }
    return nil
}

func (r *room) other(b *binding) *binding {
    for _, o := range r.players {
        if o != b {
            return o
        }
    }
    return nil
}

func (r *room) identityOf(c rules.Color) string {
    if b := r.byColor(c); b != nil {
        return b.identity
    }
    return ""
}

func (r *room) snapshot() Snapshot {
    s := Snapshot{
        SessionID: r.id,
        State:     r.state,
        Game:      r.game.State(),
        Moves:     len(r.game.History()),
        Outcome:   r.outcome,
    }
    for _, b := range r.players {
        s.Players = append(s.Players, BoundPlayer{Identity: b.identity, Name: b.name, Color: b.color, Connected: b.peer != nil})
    }
    return s
}
