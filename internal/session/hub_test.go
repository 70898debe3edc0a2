package session

import (
    "context"
    "errors"
    "fmt"
    "sync"
    "testing"
    "time"

    miniredis "github.com/alicebob/miniredis/v2"
    "github.com/redis/go-redis/v9"

    "github.com/park285/hopchess/internal/protocol"
    "github.com/park285/hopchess/internal/provision"
    "github.com/park285/hopchess/internal/rules"
)

type fakePeer struct {
    id  string
    mu  sync.Mutex
    got []protocol.Envelope
}

func (p *fakePeer) ID() string { return p.id }

func (p *fakePeer) Send(env protocol.Envelope) error {
    p.mu.Lock()
    defer p.mu.Unlock()
    p.got = append(p.got, env)
    return nil
}

func (p *fakePeer) count(t protocol.Type) int {
    p.mu.Lock()
    defer p.mu.Unlock()
    n := 0
    for _, e := range p.got {
        if e.Type == t { n++ }
    }
    return n
}

func (p *fakePeer) last(t protocol.Type) (protocol.Envelope, bool) {
    p.mu.Lock()
    defer p.mu.Unlock()
    for i := len(p.got) - 1; i >= 0; i-- {
        if p.got[i].Type == t { return p.got[i], true }
    }
    return protocol.Envelope{}, false
}

type fakeRecorder struct {
    mu   sync.Mutex
    seen []rules.GameOver
}

func (r *fakeRecorder) Record(_ context.Context, over rules.GameOver) {
    r.mu.Lock()
    defer r.mu.Unlock()
    r.seen = append(r.seen, over)
}

func (r *fakeRecorder) all() []rules.GameOver {
    r.mu.Lock()
    defer r.mu.Unlock()
    return append([]rules.GameOver(nil), r.seen...)
}

type fixture struct {
    hub   *Hub
    store *provision.Store
    rec   *fakeRecorder
    white string
    black string
}

func newFixture(t *testing.T, strict bool) *fixture {
    t.Helper()
    mr, err := miniredis.Run()
    if err != nil { t.Fatalf("miniredis: %v", err) }
    t.Cleanup(func() { mr.Close() })
    rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
    t.Cleanup(func() { _ = rdb.Close() })
    store := provision.NewStore(rdb, time.Hour)

    room, err := store.Create(context.Background(), provision.CreateRequest{
        Room:    provision.RoomSpec{SessionID: "s1", Name: "table"},
        Players: []provision.Player{{Identity: "u1", Name: "Alice"}, {Identity: "u2", Name: "Bob"}},
    })
    if err != nil { t.Fatalf("Create: %v", err) }

    rec := &fakeRecorder{}
    hub := NewHub(store, Options{StrictMoves: strict, Status: store, Recorder: rec})
    t.Cleanup(hub.Close)
    return &fixture{
        hub:   hub,
        store: store,
        rec:   rec,
        white: room.IdentityOf(rules.White),
        black: room.IdentityOf(rules.Black),
    }
}

func (f *fixture) status(t *testing.T) provision.Status {
    t.Helper()
    room, err := f.store.Get(context.Background(), "s1")
    if err != nil { t.Fatalf("Get: %v", err) }
    return room.Status
}

func (f *fixture) seat(t *testing.T) (*fakePeer, *fakePeer) {
    t.Helper()
    ctx := context.Background()
    w, b := &fakePeer{id: "pw"}, &fakePeer{id: "pb"}
    if _, err := f.hub.Join(ctx, "s1", f.white, "", w); err != nil { t.Fatalf("join white: %v", err) }
    if _, err := f.hub.Join(ctx, "s1", f.black, "", b); err != nil { t.Fatalf("join black: %v", err) }
    return w, b
}

func firstWhiteMove(t *testing.T) rules.Move {
    t.Helper()
    moves := rules.NewGame().AllLegalMoves(rules.White)
    if len(moves) == 0 { t.Fatalf("no opening moves") }
    return moves[0]
}

func TestJoinLifecycle(t *testing.T) {
    f := newFixture(t, false)
    ctx := context.Background()
    w := &fakePeer{id: "pw"}

    res, err := f.hub.Join(ctx, "s1", f.white, "Alice", w)
    if err != nil { t.Fatalf("join white: %v", err) }
    if res.Color != rules.White || res.State != StateAwaiting || res.Count != 1 { t.Fatalf("first join: %+v", res) }
    if f.status(t) != provision.StatusWaiting { t.Fatalf("status %q", f.status(t)) }

    b := &fakePeer{id: "pb"}
    res, err = f.hub.Join(ctx, "s1", f.black, "Bob", b)
    if err != nil { t.Fatalf("join black: %v", err) }
    if res.Color != rules.Black || res.State != StateReady || res.Count != 2 { t.Fatalf("second join: %+v", res) }
    if f.status(t) != provision.StatusReady { t.Fatalf("status %q", f.status(t)) }

    env, ok := w.last(protocol.TypePlayersInRoom)
    if !ok { t.Fatalf("white got no playersInRoom") }
    var pr protocol.PlayersInRoom
    if err := env.Decode(&pr); err != nil || pr.Count != 2 { t.Fatalf("playersInRoom %+v %v", pr, err) }
    if w.count(protocol.TypePlayerJoined) != 2 { t.Fatalf("white should see both joins") }

    if _, err := f.hub.Join(ctx, "s1", "u3", "Eve", &fakePeer{id: "pe"}); !errors.Is(err, ErrRoomFull) { t.Fatalf("third identity: %v", err) }
    if _, err := f.hub.Join(ctx, "missing", "u1", "", &fakePeer{id: "px"}); !errors.Is(err, ErrRoomNotFound) { t.Fatalf("missing room: %v", err) }
    if _, err := f.hub.Join(ctx, "s1", "", "", w); !errors.Is(err, ErrInvalidArgs) { t.Fatalf("empty identity: %v", err) }

    snap, err := f.hub.Snapshot(ctx, "s1")
    if err != nil { t.Fatalf("Snapshot: %v", err) }
    if snap.State != StateReady || len(snap.Players) != 2 { t.Fatalf("snapshot %+v", snap) }
}

func TestJoinUnknownIdentity(t *testing.T) {
    f := newFixture(t, false)
    if _, err := f.hub.Join(context.Background(), "s1", "stranger", "", &fakePeer{id: "p"}); !errors.Is(err, ErrUnknownPlayer) {
        t.Fatalf("got %v", err)
    }
}

func TestRejoinRebindsPeer(t *testing.T) {
    f := newFixture(t, false)
    ctx := context.Background()
    f.seat(t)
    again := &fakePeer{id: "pw2"}
    res, err := f.hub.Join(ctx, "s1", f.white, "", again)
    if err != nil { t.Fatalf("rejoin: %v", err) }
    if res.Color != rules.White || res.Count != 2 { t.Fatalf("rejoin result %+v", res) }
    snap, _ := f.hub.Snapshot(ctx, "s1")
    if len(snap.Players) != 2 { t.Fatalf("rejoin added a binding: %+v", snap.Players) }
}

func TestRelayMoveReachesOtherPartyOnly(t *testing.T) {
    f := newFixture(t, false)
    ctx := context.Background()
    w, b := f.seat(t)
    m := firstWhiteMove(t)

    if err := f.hub.RelayMove(ctx, "s1", w, m); err != nil { t.Fatalf("RelayMove: %v", err) }
    if w.count(protocol.TypeMoveMade) != 0 { t.Fatalf("sender received its own move") }
    env, ok := b.last(protocol.TypeMoveMade)
    if !ok { t.Fatalf("black got no move") }
    var mm protocol.MoveMade
    if err := env.Decode(&mm); err != nil { t.Fatalf("decode: %v", err) }
    if mm.Move.NewPosition != m.NewPosition || mm.Move.From() != m.From() { t.Fatalf("forwarded %+v want %+v", mm.Move, m) }
    if f.status(t) != provision.StatusInGame { t.Fatalf("status %q", f.status(t)) }

    if err := f.hub.RelayMove(ctx, "s1", &fakePeer{id: "stranger"}, m); !errors.Is(err, ErrNotJoined) { t.Fatalf("unjoined: %v", err) }
    if err := f.hub.RelayMove(ctx, "nowhere", w, m); !errors.Is(err, ErrRoomNotFound) { t.Fatalf("no room: %v", err) }
}

func TestMoveBeforeSecondPlayer(t *testing.T) {
    f := newFixture(t, false)
    ctx := context.Background()
    w := &fakePeer{id: "pw"}
    if _, err := f.hub.Join(ctx, "s1", f.white, "", w); err != nil { t.Fatalf("join: %v", err) }
    if err := f.hub.RelayMove(ctx, "s1", w, firstWhiteMove(t)); !errors.Is(err, ErrNotReady) { t.Fatalf("got %v", err) }
}

func TestStrictMovesRejectsOutOfTurnAndIllegal(t *testing.T) {
    f := newFixture(t, true)
    ctx := context.Background()
    w, b := f.seat(t)
    m := firstWhiteMove(t)

    if err := f.hub.RelayMove(ctx, "s1", b, m); !errors.Is(err, ErrIllegalMove) { t.Fatalf("out of turn: %v", err) }
    bogus := m
    bogus.NewPosition = rules.Pos(m.From().X, 0)
    if err := f.hub.RelayMove(ctx, "s1", w, bogus); !errors.Is(err, ErrIllegalMove) { t.Fatalf("illegal: %v", err) }
    if b.count(protocol.TypeMoveMade) != 0 { t.Fatalf("rejected move was forwarded") }

    if err := f.hub.RelayMove(ctx, "s1", w, m); err != nil { t.Fatalf("legal move: %v", err) }
    if b.count(protocol.TypeMoveMade) != 1 { t.Fatalf("legal move not forwarded") }
    snap, _ := f.hub.Snapshot(ctx, "s1")
    if snap.Moves != 1 || snap.Game.Turn != rules.Black { t.Fatalf("mirror not advanced: %+v", snap) }
}

func TestResetKeepsMembership(t *testing.T) {
    f := newFixture(t, true)
    ctx := context.Background()
    w, b := f.seat(t)
    if err := f.hub.RelayMove(ctx, "s1", w, firstWhiteMove(t)); err != nil { t.Fatalf("move: %v", err) }
    if err := f.hub.Reset(ctx, "s1", b); err != nil { t.Fatalf("Reset: %v", err) }
    if w.count(protocol.TypeGameReset) != 1 || b.count(protocol.TypeGameReset) != 1 { t.Fatalf("reset not broadcast") }
    snap, _ := f.hub.Snapshot(ctx, "s1")
    if snap.State != StateReady || snap.Moves != 0 || len(snap.Players) != 2 { t.Fatalf("after reset %+v", snap) }
    if snap.Game.Turn != rules.White { t.Fatalf("turn after reset %q", snap.Game.Turn) }
}

func TestDisconnectDropsOnce(t *testing.T) {
    f := newFixture(t, false)
    ctx := context.Background()
    w, b := f.seat(t)

    if err := f.hub.Disconnect(ctx, "s1", w); err != nil { t.Fatalf("Disconnect: %v", err) }
    if err := f.hub.Disconnect(ctx, "s1", w); err != nil { t.Fatalf("second Disconnect: %v", err) }
    if n := b.count(protocol.TypePlayerDisconnected); n != 1 { t.Fatalf("playerDisconnected sent %d times", n) }

    outs := f.rec.all()
    if len(outs) != 1 { t.Fatalf("recorded %d outcomes", len(outs)) }
    o := outs[0]
    if o.Type != rules.GameOverDropped || o.Winner != rules.Black || o.WinnerIdentity != f.black || o.LoserIdentity != f.white {
        t.Fatalf("outcome %+v", o)
    }
    if f.status(t) != provision.StatusDropped { t.Fatalf("status %q", f.status(t)) }

    if err := f.hub.RelayMove(ctx, "s1", b, firstWhiteMove(t)); !errors.Is(err, ErrRoomTerminated) { t.Fatalf("move after drop: %v", err) }
    if err := f.hub.Disconnect(ctx, "s1", b); err != nil { t.Fatalf("last Disconnect: %v", err) }

    deadline := time.Now().Add(2 * time.Second)
    for f.hub.Rooms() != 0 {
        if time.Now().After(deadline) { t.Fatalf("room was not reaped") }
        time.Sleep(5 * time.Millisecond)
    }
    if _, err := f.hub.Join(ctx, "s1", f.white, "", &fakePeer{id: "late"}); !errors.Is(err, ErrRoomTerminated) { t.Fatalf("join after drop: %v", err) }
    if len(f.rec.all()) != 1 { t.Fatalf("outcome recorded again") }
}

func TestDisconnectWhileAwaitingReapsRoom(t *testing.T) {
    f := newFixture(t, false)
    ctx := context.Background()
    w := &fakePeer{id: "pw"}
    if _, err := f.hub.Join(ctx, "s1", f.white, "", w); err != nil { t.Fatalf("join: %v", err) }
    if err := f.hub.Disconnect(ctx, "s1", w); err != nil { t.Fatalf("Disconnect: %v", err) }
    if len(f.rec.all()) != 0 { t.Fatalf("no outcome expected before the game starts") }

    deadline := time.Now().Add(2 * time.Second)
    for f.hub.Rooms() != 0 {
        if time.Now().After(deadline) { t.Fatalf("room was not reaped") }
        time.Sleep(5 * time.Millisecond)
    }
    if _, err := f.hub.Join(ctx, "s1", f.white, "", &fakePeer{id: "pw2"}); err != nil { t.Fatalf("rejoin after reap: %v", err) }
}

func TestExistingAndFetch(t *testing.T) {
    f := newFixture(t, false)
    ctx := context.Background()
    w, b := f.seat(t)
    if err := f.hub.ExistingPlayer(ctx, "s1", w, "Alice"); err != nil { t.Fatalf("ExistingPlayer: %v", err) }
    env, ok := b.last(protocol.TypeExistingPlayer)
    if !ok { t.Fatalf("existingPlayer not forwarded") }
    var ep protocol.ExistingPlayer
    if err := env.Decode(&ep); err != nil || ep.Identity != f.white || ep.Name != "Alice" { t.Fatalf("existing %+v %v", ep, err) }
    if w.count(protocol.TypeExistingPlayer) != 0 { t.Fatalf("existingPlayer echoed to sender") }

    before := b.count(protocol.TypePlayersInRoom)
    if err := f.hub.FetchPlayers(ctx, "s1", w); err != nil { t.Fatalf("FetchPlayers: %v", err) }
    if b.count(protocol.TypePlayersInRoom) != before { t.Fatalf("fetch reply went to the wrong peer") }
    if _, ok := w.last(protocol.TypePlayersInRoom); !ok { t.Fatalf("fetch reply missing") }
}

func TestRoomsRunIndependently(t *testing.T) {
    f := newFixture(t, false)
    ctx := context.Background()
    const rooms = 20

    type table struct {
        id           string
        white, black string
        w, b         *fakePeer
    }
    tables := make([]*table, rooms)
    for i := range tables {
        id := fmt.Sprintf("par-%02d", i)
        room, err := f.store.Create(ctx, provision.CreateRequest{
            Room:    provision.RoomSpec{SessionID: id},
            Players: []provision.Player{{Identity: id + "-a", Name: "A"}, {Identity: id + "-b", Name: "B"}},
        })
        if err != nil { t.Fatalf("Create %s: %v", id, err) }
        tables[i] = &table{
            id:    id,
            white: room.IdentityOf(rules.White),
            black: room.IdentityOf(rules.Black),
            w:     &fakePeer{id: id + "-pw"},
            b:     &fakePeer{id: id + "-pb"},
        }
    }

    m := firstWhiteMove(t)
    errs := make(chan error, rooms*8)
    var wg sync.WaitGroup
    for _, tb := range tables {
        wg.Add(1)
        go func(tb *table) {
            defer wg.Done()
            var joins sync.WaitGroup
            joins.Add(2)
            go func() {
                defer joins.Done()
                if _, err := f.hub.Join(ctx, tb.id, tb.white, "", tb.w); err != nil { errs <- fmt.Errorf("%s join white: %w", tb.id, err) }
            }()
            go func() {
                defer joins.Done()
                if _, err := f.hub.Join(ctx, tb.id, tb.black, "", tb.b); err != nil { errs <- fmt.Errorf("%s join black: %w", tb.id, err) }
            }()
            joins.Wait()

            if err := f.hub.RelayMove(ctx, tb.id, tb.w, m); err != nil { errs <- fmt.Errorf("%s move: %w", tb.id, err) }

            var drops sync.WaitGroup
            for i := 0; i < 3; i++ {
                drops.Add(1)
                go func() {
                    defer drops.Done()
                    if err := f.hub.Disconnect(ctx, tb.id, tb.w); err != nil { errs <- fmt.Errorf("%s disconnect: %w", tb.id, err) }
                }()
            }
            drops.Wait()
        }(tb)
    }
    wg.Wait()
    close(errs)
    for err := range errs { t.Error(err) }
    if t.Failed() { t.FailNow() }

    perRoom := map[string]int{}
    for _, o := range f.rec.all() {
        perRoom[o.SessionID]++
    }
    for _, tb := range tables {
        if n := tb.b.count(protocol.TypeMoveMade); n != 1 { t.Fatalf("%s: black saw %d moves", tb.id, n) }
        if n := tb.b.count(protocol.TypePlayerDisconnected); n != 1 { t.Fatalf("%s: playerDisconnected sent %d times", tb.id, n) }
        if n := tb.w.count(protocol.TypePlayerDisconnected); n != 0 { t.Fatalf("%s: dropped player notified", tb.id) }
        if perRoom[tb.id] != 1 { t.Fatalf("%s: recorded %d outcomes", tb.id, perRoom[tb.id]) }
    }
    if len(perRoom) != rooms { t.Fatalf("outcomes for %d rooms", len(perRoom)) }
}
