package provision

import (
    "context"
    "crypto/rand"
    "encoding/json"
    "errors"
    "fmt"
    "math/big"
    "net/url"
    "strconv"
    "strings"
    "time"

    "github.com/google/uuid"
    "github.com/redis/go-redis/v9"
    "go.uber.org/zap"

    "github.com/park285/hopchess/internal/obslog"
    "github.com/park285/hopchess/internal/rules"
)

const defaultRoomTTL = 24 * time.Hour

type Store struct {
    rdb *redis.Client
    ttl time.Duration
    now func() time.Time
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
    if ttl <= 0 { ttl = defaultRoomTTL }
    return &Store{rdb: rdb, ttl: ttl, now: time.Now}
}

func keyRoom(id string) string { return "room:" + strings.TrimSpace(id) }

// Create validates the request, assigns colours at random and stores the
// record only if the session id is unused.
func (s *Store) Create(ctx context.Context, req CreateRequest) (*Room, error) {
    if len(req.Players) == 0 { return nil, ErrInvalidArgs }
    if len(req.Players) > 2 { return nil, ErrTooManyPlayers }
    seen := map[string]bool{}
    for _, p := range req.Players {
        id := strings.TrimSpace(p.Identity)
        if id == "" { return nil, ErrInvalidArgs }
        if seen[id] { return nil, ErrDuplicateSeat }
        seen[id] = true
    }

    sessionID := strings.TrimSpace(req.Room.SessionID)
    if sessionID == "" { sessionID = uuid.NewString() }
    name := strings.TrimSpace(req.Room.Name)
    if name == "" { name = sessionID }

    players, err := assignColors(req.Players)
    if err != nil { return nil, err }
    now := s.now()
    room := &Room{
        SessionID: sessionID,
        StateID:   uuid.NewString(),
        Name:      name,
        Players:   players,
        Status:    StatusWaiting,
        CreatedAt: now,
        UpdatedAt: now,
    }
    raw, err := json.Marshal(room)
    if err != nil { return nil, err }
    ok, err := s.rdb.SetNX(ctx, keyRoom(sessionID), raw, s.ttl).Result()
    if err != nil { return nil, err }
    if !ok { return nil, ErrRoomExists }
    obslog.Room(sessionID).Info("room_create",
        zap.String("state_id", room.StateID),
        zap.Int("players", len(players)),
    )
    return room, nil
}

// Get loads a record; a missing or expired key yields ErrRoomNotFound.
func (s *Store) Get(ctx context.Context, sessionID string) (*Room, error) {
    if strings.TrimSpace(sessionID) == "" { return nil, ErrInvalidArgs }
    raw, err := s.rdb.Get(ctx, keyRoom(sessionID)).Bytes()
    if errors.Is(err, redis.Nil) { return nil, ErrRoomNotFound }
    if err != nil { return nil, err }
    var r Room
    if err := json.Unmarshal(raw, &r); err != nil { return nil, err }
    return &r, nil
}

// SetStatus rewrites the status of an existing record, keeping its TTL.
func (s *Store) SetStatus(ctx context.Context, sessionID string, st Status) error {
    key := keyRoom(sessionID)
    err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
        raw, err := tx.Get(ctx, key).Bytes()
        if errors.Is(err, redis.Nil) { return ErrRoomNotFound }
        if err != nil { return err }
        var r Room
        if err := json.Unmarshal(raw, &r); err != nil { return err }
        if r.Status == st { return nil }
        r.Status = st
        r.UpdatedAt = s.now()
        next, err := json.Marshal(&r)
        if err != nil { return err }
        _, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
            pipe.Set(ctx, key, next, redis.KeepTTL)
            return nil
        })
        return err
    }, key)
    if err != nil {
        obslog.Room(sessionID).Warn("room_status_error", zap.String("status", string(st)), zap.Error(err))
        return err
    }
    obslog.Room(sessionID).Info("room_status", zap.String("status", string(st)))
    return nil
}

func assignColors(in []Player) ([]Player, error) {
    colors := []rules.Color{rules.White, rules.Black}
    n, err := rand.Int(rand.Reader, big.NewInt(2))
    if err != nil { return nil, fmt.Errorf("colour draw: %w", err) }
    if n.Int64() == 0 { colors[0], colors[1] = colors[1], colors[0] }
    out := make([]Player, len(in))
    for i, p := range in {
        p.Identity = strings.TrimSpace(p.Identity)
        p.Name = strings.TrimSpace(p.Name)
        p.Color = colors[i%len(colors)]
        out[i] = p
    }
    return out, nil
}

// OpenRedis parses a redis:// or rediss:// URL and pings the server.
func OpenRedis(ctx context.Context, raw string) (*redis.Client, error) {
    if strings.TrimSpace(raw) == "" {
        return nil, fmt.Errorf("REDIS_URL required")
    }
    opts, err := parseRedisURL(raw)
    if err != nil { return nil, err }
    rdb := redis.NewClient(opts)
    if err := rdb.Ping(ctx).Err(); err != nil {
        _ = rdb.Close()
        return nil, fmt.Errorf("redis ping: %w", err)
    }
    return rdb, nil
}

func parseRedisURL(raw string) (*redis.Options, error) {
    u, err := url.Parse(raw)
    if err != nil { return nil, err }
    if u.Scheme != "redis" && u.Scheme != "rediss" { return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme) }
    db := 0
    if p := strings.TrimPrefix(u.Path, "/"); p != "" { if n, err := strconv.Atoi(p); err == nil { db = n } }
    pass, _ := u.User.Password()
    return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
