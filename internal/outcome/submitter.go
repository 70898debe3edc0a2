package outcome

import (
    "context"
    "fmt"
    "time"

    "github.com/park285/hopchess/internal/apiclient"
    "github.com/park285/hopchess/internal/rules"
)

// FinishPath is the backend endpoint that closes a game session.
const FinishPath = "/api/external_game/v1/game_session_finish"

// Submitter posts outcomes to the external game backend.
type Submitter struct {
    api *apiclient.Client
}

func NewSubmitter(baseURL string, retry int, timeout time.Duration) *Submitter {
    opts := []apiclient.Option{apiclient.WithRetry(retry)}
    if timeout > 0 {
        opts = append(opts, apiclient.WithTimeout(timeout))
    }
    return &Submitter{api: apiclient.New(baseURL, opts...)}
}

func (s *Submitter) Name() string { return "backend" }

// Save submits over; transport failures and 5xx answers are retried.
func (s *Submitter) Save(ctx context.Context, over rules.GameOver) error {
    sub, err := BuildSubmission(over)
    if err != nil {
        return err
    }
    if err := s.api.PostJSON(ctx, FinishPath, sub, nil, true); err != nil {
        return fmt.Errorf("submit %s: %w", over.SessionID, err)
    }
    return nil
}
