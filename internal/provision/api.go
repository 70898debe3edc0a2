package provision

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "net/http"
    "net/url"
    "strings"

    "go.uber.org/zap"

    "github.com/park285/hopchess/internal/obslog"
)

// RoomStore is the subset of Store the HTTP API needs.
type RoomStore interface {
    Create(ctx context.Context, req CreateRequest) (*Room, error)
    Get(ctx context.Context, sessionID string) (*Room, error)
}

// API serves room creation and lookup.
type API struct {
    store    RoomStore
    linkBase string
}

// NewAPI builds the handler set. linkBase, when set, is used to render the
// join link of the first player in create responses.
func NewAPI(store RoomStore, linkBase string) *API {
    return &API{store: store, linkBase: strings.TrimRight(linkBase, "/")}
}

// Register mounts the routes on mux.
func (a *API) Register(mux *http.ServeMux) {
    mux.HandleFunc("/api/rooms", a.handleRooms)
}

func (a *API) handleRooms(w http.ResponseWriter, r *http.Request) {
    switch r.Method {
    case http.MethodPost:
        a.create(w, r)
    case http.MethodGet:
        a.get(w, r)
    default:
        writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "wrong method called"})
    }
}

func (a *API) create(w http.ResponseWriter, r *http.Request) {
    var req CreateRequest
    if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
        writeJSON(w, http.StatusBadRequest, CreateResponse{Message: "malformed request body"})
        return
    }
    room, err := a.store.Create(r.Context(), req)
    if err != nil {
        status := http.StatusInternalServerError
        msg := "failed to create room"
        switch {
        case errors.Is(err, ErrInvalidArgs), errors.Is(err, ErrTooManyPlayers),
            errors.Is(err, ErrDuplicateSeat), errors.Is(err, ErrRoomExists):
            status = http.StatusBadRequest
            msg = err.Error()
        default:
            obslog.Room(req.Room.SessionID).Error("room_create_error", zap.Error(err))
        }
        writeJSON(w, status, CreateResponse{Message: msg})
        return
    }
    payload := &CreatePayload{
        SessionID: room.SessionID,
        StateID:   room.StateID,
        Name:      room.Name,
        CreatedAt: room.CreatedAt,
    }
    if a.linkBase != "" && len(room.Players) > 0 {
        payload.Link = a.joinLink(room, room.Players[0].Identity)
    }
    writeJSON(w, http.StatusOK, CreateResponse{Status: true, Message: "success", Payload: payload})
}

func (a *API) get(w http.ResponseWriter, r *http.Request) {
    id := strings.TrimSpace(r.URL.Query().Get("gameSessionUuid"))
    if id == "" {
        writeJSON(w, http.StatusBadRequest, map[string]string{"error": "gameSessionUuid required"})
        return
    }
    room, err := a.store.Get(r.Context(), id)
    if errors.Is(err, ErrRoomNotFound) {
        writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
        return
    }
    if err != nil {
        obslog.Room(id).Error("room_get_error", zap.Error(err))
        writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to fetch room"})
        return
    }
    writeJSON(w, http.StatusOK, room)
}

func (a *API) joinLink(room *Room, identity string) string {
    q := url.Values{}
    q.Set("gameSessionUuid", room.SessionID)
    q.Set("gameStateId", room.StateID)
    q.Set("uuid", identity)
    return fmt.Sprintf("%s/?%s", a.linkBase, q.Encode())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(status)
    _ = json.NewEncoder(w).Encode(v)
}
