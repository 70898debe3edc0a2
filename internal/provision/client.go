package provision

import (
    "context"
    "fmt"
    "net/http"
    "net/url"
    "strings"

    "github.com/park285/hopchess/internal/apiclient"
)

// Client fetches room records from a remote provisioning API.
type Client struct {
    api *apiclient.Client
}

func NewClient(baseURL string, opts ...apiclient.Option) *Client {
    return &Client{api: apiclient.New(baseURL, opts...)}
}

// Get fetches the record for sessionID. A 404 maps to ErrRoomNotFound.
func (c *Client) Get(ctx context.Context, sessionID string) (*Room, error) {
    sessionID = strings.TrimSpace(sessionID)
    if sessionID == "" { return nil, ErrInvalidArgs }
    var room Room
    path := "/api/rooms?gameSessionUuid=" + url.QueryEscape(sessionID)
    if err := c.api.GetJSON(ctx, path, &room); err != nil {
        if apiclient.StatusOf(err) == http.StatusNotFound { return nil, ErrRoomNotFound }
        return nil, fmt.Errorf("fetch room %s: %w", sessionID, err)
    }
    if room.SessionID == "" { return nil, ErrRoomNotFound }
    return &room, nil
}

// Create asks the remote API to provision a room.
func (c *Client) Create(ctx context.Context, req CreateRequest) (*CreatePayload, error) {
    var resp CreateResponse
    if err := c.api.PostJSON(ctx, "/api/rooms", req, &resp, false); err != nil {
        return nil, fmt.Errorf("create room: %w", err)
    }
    if !resp.Status || resp.Payload == nil {
        return nil, fmt.Errorf("create room: %s", resp.Message)
    }
    return resp.Payload, nil
}
