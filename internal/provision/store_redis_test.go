package provision

import (
    "context"
    "encoding/json"
    "errors"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"
    "time"

    miniredis "github.com/alicebob/miniredis/v2"
    "github.com/redis/go-redis/v9"

    "github.com/park285/hopchess/internal/rules"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
    t.Helper()
    mr, err := miniredis.Run()
    if err != nil { t.Fatalf("miniredis: %v", err) }
    t.Cleanup(func() { mr.Close() })
    rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
    t.Cleanup(func() { _ = rdb.Close() })
    return NewStore(rdb, time.Hour), mr
}

func twoPlayers(session string) CreateRequest {
    return CreateRequest{
        Room:    RoomSpec{SessionID: session, Name: "table"},
        Players: []Player{{Identity: "u1", Name: "Alice"}, {Identity: "u2", Name: "Bob"}},
    }
}

func TestCreateAssignsDistinctColors(t *testing.T) {
    s, mr := newTestStore(t)
    ctx := context.Background()
    room, err := s.Create(ctx, twoPlayers("sess-1"))
    if err != nil { t.Fatalf("Create: %v", err) }
    if room.StateID == "" || room.Status != StatusWaiting { t.Fatalf("unexpected record %+v", room) }
    a, b := room.Players[0].Color, room.Players[1].Color
    if !a.Valid() || !b.Valid() || a == b { t.Fatalf("colours not distinct: %q %q", a, b) }
    if room.IdentityOf(rules.White) == "" || room.IdentityOf(rules.Black) == "" { t.Fatalf("IdentityOf failed") }
    if ttl := mr.TTL(keyRoom("sess-1")); ttl != time.Hour { t.Fatalf("ttl %v", ttl) }

    got, err := s.Get(ctx, "sess-1")
    if err != nil { t.Fatalf("Get: %v", err) }
    if p, ok := got.Player("u2"); !ok || p.Name != "Bob" { t.Fatalf("Player lookup: %+v %v", p, ok) }
    if p, ok := got.Opponent("u2"); !ok || p.Identity != "u1" { t.Fatalf("Opponent lookup: %+v %v", p, ok) }
}

func TestCreateRejects(t *testing.T) {
    s, _ := newTestStore(t)
    ctx := context.Background()
    if _, err := s.Create(ctx, twoPlayers("dup")); err != nil { t.Fatalf("Create: %v", err) }

    three := twoPlayers("three")
    three.Players = append(three.Players, Player{Identity: "u3"})
    dupSeat := twoPlayers("dupseat")
    dupSeat.Players[1].Identity = "u1"
    cases := []struct {
        name string
        req  CreateRequest
        want error
    }{
        {"existing session", twoPlayers("dup"), ErrRoomExists},
        {"three players", three, ErrTooManyPlayers},
        {"no players", CreateRequest{Room: RoomSpec{SessionID: "empty"}}, ErrInvalidArgs},
        {"same identity twice", dupSeat, ErrDuplicateSeat},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            if _, err := s.Create(ctx, tc.req); !errors.Is(err, tc.want) { t.Fatalf("got %v want %v", err, tc.want) }
        })
    }
}

func TestCreateGeneratesSessionID(t *testing.T) {
    s, _ := newTestStore(t)
    req := twoPlayers("")
    room, err := s.Create(context.Background(), req)
    if err != nil { t.Fatalf("Create: %v", err) }
    if len(room.SessionID) != 36 { t.Fatalf("expected uuid session id, got %q", room.SessionID) }
}

func TestGetMissing(t *testing.T) {
    s, _ := newTestStore(t)
    if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, ErrRoomNotFound) { t.Fatalf("got %v", err) }
}

func TestSetStatusKeepsTTL(t *testing.T) {
    s, mr := newTestStore(t)
    ctx := context.Background()
    if _, err := s.Create(ctx, twoPlayers("st")); err != nil { t.Fatalf("Create: %v", err) }
    mr.FastForward(10 * time.Minute)
    if err := s.SetStatus(ctx, "st", StatusInGame); err != nil { t.Fatalf("SetStatus: %v", err) }
    got, _ := s.Get(ctx, "st")
    if got.Status != StatusInGame { t.Fatalf("status %q", got.Status) }
    if ttl := mr.TTL(keyRoom("st")); ttl <= 0 || ttl > 50*time.Minute { t.Fatalf("ttl not kept: %v", ttl) }
    if err := s.SetStatus(ctx, "gone", StatusDropped); !errors.Is(err, ErrRoomNotFound) { t.Fatalf("missing room: %v", err) }
}

func TestParseRedisURL(t *testing.T) {
    opts, err := parseRedisURL("redis://:secret@localhost:6380/2")
    if err != nil { t.Fatalf("parse: %v", err) }
    if opts.Addr != "localhost:6380" || opts.Password != "secret" || opts.DB != 2 { t.Fatalf("opts %+v", opts) }
    if _, err := parseRedisURL("http://localhost"); err == nil { t.Fatalf("expected scheme error") }
}

func TestAPIAndClient(t *testing.T) {
    s, _ := newTestStore(t)
    mux := http.NewServeMux()
    NewAPI(s, "http://play.test").Register(mux)
    srv := httptest.NewServer(mux)
    defer srv.Close()

    body, _ := json.Marshal(twoPlayers("api-1"))
    resp, err := http.Post(srv.URL+"/api/rooms", "application/json", strings.NewReader(string(body)))
    if err != nil { t.Fatalf("POST: %v", err) }
    var cr CreateResponse
    _ = json.NewDecoder(resp.Body).Decode(&cr)
    resp.Body.Close()
    if resp.StatusCode != http.StatusOK || !cr.Status || cr.Payload == nil { t.Fatalf("create: %d %+v", resp.StatusCode, cr) }
    if !strings.HasPrefix(cr.Payload.Link, "http://play.test/?") || !strings.Contains(cr.Payload.Link, "gameSessionUuid=api-1") {
        t.Fatalf("link %q", cr.Payload.Link)
    }

    resp, err = http.Post(srv.URL+"/api/rooms", "application/json", strings.NewReader(string(body)))
    if err != nil { t.Fatalf("POST dup: %v", err) }
    resp.Body.Close()
    if resp.StatusCode != http.StatusBadRequest { t.Fatalf("duplicate create status %d", resp.StatusCode) }

    ctx := context.Background()
    c := NewClient(srv.URL)
    room, err := c.Get(ctx, "api-1")
    if err != nil { t.Fatalf("client Get: %v", err) }
    if len(room.Players) != 2 || room.SessionID != "api-1" { t.Fatalf("room %+v", room) }
    if _, err := c.Get(ctx, "missing"); !errors.Is(err, ErrRoomNotFound) { t.Fatalf("missing via client: %v", err) }

    payload, err := c.Create(ctx, twoPlayers("api-2"))
    if err != nil || payload.SessionID != "api-2" { t.Fatalf("client Create: %+v %v", payload, err) }
    if _, err := c.Create(ctx, twoPlayers("api-2")); err == nil { t.Fatalf("expected duplicate error through client") }
}
