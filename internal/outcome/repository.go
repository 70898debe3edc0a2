package outcome

import (
    "context"
    "database/sql"
    "encoding/json"
    "fmt"
    "strings"
    "time"

    _ "github.com/lib/pq"

    "github.com/park285/hopchess/internal/rules"
)

const schema = `CREATE TABLE IF NOT EXISTS game_outcomes (
    session_id   TEXT PRIMARY KEY,
    outcome_type TEXT NOT NULL,
    game_status  TEXT NOT NULL,
    winner_color TEXT NOT NULL DEFAULT '',
    winner_id    TEXT NOT NULL DEFAULT '',
    loser_id     TEXT NOT NULL DEFAULT '',
    move_count   INTEGER NOT NULL DEFAULT 0,
    moves        JSONB NOT NULL DEFAULT '[]',
    notation     TEXT NOT NULL DEFAULT '',
    recorded_at  TIMESTAMPTZ NOT NULL
)`

// Repository archives outcomes in Postgres, one row per session.
type Repository struct {
    db  *sql.DB
    now func() time.Time
}

func NewRepository(databaseURL string) (*Repository, error) {
    if strings.TrimSpace(databaseURL) == "" {
        return nil, fmt.Errorf("DATABASE_URL is required")
    }
    db, err := sql.Open("postgres", databaseURL)
    if err != nil {
        return nil, err
    }
    db.SetMaxOpenConns(16)
    db.SetMaxIdleConns(8)
    db.SetConnMaxLifetime(30 * time.Minute)
    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    if err := db.PingContext(ctx); err != nil {
        _ = db.Close()
        return nil, err
    }
    if _, err := db.ExecContext(ctx, schema); err != nil {
        _ = db.Close()
        return nil, fmt.Errorf("ensure schema: %w", err)
    }
    return &Repository{db: db, now: time.Now}, nil
}

func (r *Repository) Close() error {
    if r == nil || r.db == nil { return nil }
    return r.db.Close()
}

func (r *Repository) Name() string { return "postgres" }

// Save inserts the outcome; a second outcome for the same session is ignored.
func (r *Repository) Save(ctx context.Context, over rules.GameOver) error {
    if r == nil || r.db == nil {
        return nil
    }
    sub, err := BuildSubmission(over)
    if err != nil {
        return err
    }
    movesRaw, err := json.Marshal(notations(over.Moves))
    if err != nil {
        return fmt.Errorf("marshal moves: %w", err)
    }

    q := `INSERT INTO game_outcomes (
        session_id, outcome_type, game_status, winner_color, winner_id, loser_id,
        move_count, moves, notation, recorded_at
      ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10
      ) ON CONFLICT (session_id) DO NOTHING`

    _, err = r.db.ExecContext(ctx, q,
        over.SessionID, string(over.Type), sub.GameStatus, string(over.Winner),
        over.WinnerIdentity, over.LoserIdentity,
        len(over.Moves), string(movesRaw), Transcript(over.Moves), r.now().UTC(),
    )
    return err
}

func notations(moves []rules.Move) []string {
    out := make([]string, 0, len(moves))
    for _, m := range moves {
        out = append(out, m.Notation())
    }
    return out
}

// Transcript numbers moves in pairs: "1. c2-c3 f7-f6 2. ...".
func Transcript(moves []rules.Move) string {
    var b strings.Builder
    for i := 0; i < len(moves); i += 2 {
        if i > 0 {
            b.WriteString(" ")
        }
        fmt.Fprintf(&b, "%d. %s", i/2+1, moves[i].Notation())
        if i+1 < len(moves) {
            b.WriteString(" ")
            b.WriteString(moves[i+1].Notation())
        }
    }
    return b.String()
}
