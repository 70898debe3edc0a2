package msgcat

import (
    "embed"
    "fmt"
    "os"
    "path/filepath"
    "sort"
    "strings"
    "text/template"

    yaml "gopkg.in/yaml.v3"
)

//go:embed messages.en.yaml
var defaultFiles embed.FS

// Key names one message the relay or a player renders.
type Key string

const (
    KeyAuthor    Key = "system.author"
    KeyJoined    Key = "system.joined"
    KeyDropped   Key = "system.dropped"
    KeyReset     Key = "system.reset"
    KeyStarted   Key = "system.started"
    KeyCheckmate Key = "system.game_over.checkmate"
    KeyStalemate Key = "system.game_over.stalemate"
)

// Error codes carried by newError frames. Each maps to "error.<code>".
const (
    CodeInvalidArgs    = "invalid_args"
    CodeRoomNotFound   = "room_not_found"
    CodeUnknownPlayer  = "unknown_player"
    CodeRoomFull       = "room_full"
    CodeRoomTerminated = "room_terminated"
    CodeNotJoined      = "not_joined"
    CodeNotReady       = "not_ready"
    CodeIllegalMove    = "illegal_move"
    CodeMalformed      = "malformed"
    CodeInternal       = "internal"
)

// ErrorKey returns the catalog key for an error code.
func ErrorKey(code string) Key { return Key("error." + code) }

var errorCodes = []string{
    CodeInvalidArgs, CodeRoomNotFound, CodeUnknownPlayer, CodeRoomFull, CodeRoomTerminated,
    CodeNotJoined, CodeNotReady, CodeIllegalMove, CodeMalformed, CodeInternal,
}

// fallbacks is used by a nil Catalog and when a template fails to render.
var fallbacks = map[Key]string{
    KeyAuthor:    "System",
    KeyJoined:    "A player has joined",
    KeyDropped:   "Your opponent has dropped",
    KeyReset:     "The board has been reset",
    KeyStarted:   "Both players are here",
    KeyCheckmate: "Checkmate!",
    KeyStalemate: "Stalemate!",

    ErrorKey(CodeInvalidArgs):    "Missing game session or player id",
    ErrorKey(CodeRoomNotFound):   "Room not found",
    ErrorKey(CodeUnknownPlayer):  "You are not a player in this room",
    ErrorKey(CodeRoomFull):       "The room already has two players",
    ErrorKey(CodeRoomTerminated): "The game has ended",
    ErrorKey(CodeNotJoined):      "Join the room before sending moves",
    ErrorKey(CodeNotReady):       "Waiting for the second player",
    ErrorKey(CodeIllegalMove):    "That move is not allowed",
    ErrorKey(CodeMalformed):      "Could not read the message",
    ErrorKey(CodeInternal):       "Something went wrong, please retry",
}

// Catalog holds compiled message templates: the embedded English set with an
// optional override directory layered on top. It is read-only after New.
type Catalog struct {
    tpls map[Key]*template.Template
}

// New loads the embedded messages, applies overrides from dir and checks that
// every key the relay and player render is present.
func New(overrideDir string) (*Catalog, error) {
    raw, err := defaultFiles.ReadFile("messages.en.yaml")
    if err != nil {
        return nil, fmt.Errorf("read embedded messages: %w", err)
    }
    texts, err := parseLayer(raw)
    if err != nil {
        return nil, fmt.Errorf("parse embedded messages: %w", err)
    }
    if dir := strings.TrimSpace(overrideDir); dir != "" {
        over, err := readOverrides(dir)
        if err != nil {
            return nil, err
        }
        for k, v := range over { texts[k] = v }
    }

    c := &Catalog{tpls: make(map[Key]*template.Template, len(texts))}
    for k, text := range texts {
        t, err := template.New(string(k)).Option("missingkey=error").Parse(text)
        if err != nil {
            return nil, fmt.Errorf("compile %s: %w", k, err)
        }
        c.tpls[k] = t
    }
    for k := range fallbacks {
        if _, ok := c.tpls[k]; !ok {
            return nil, fmt.Errorf("missing message %s", k)
        }
    }
    return c, nil
}

// readOverrides merges every *.yaml / *.yml file in dir. A key defined by two
// files is an error.
func readOverrides(dir string) (map[Key]string, error) {
    entries, err := os.ReadDir(dir)
    if err != nil {
        return nil, fmt.Errorf("read template dir: %w", err)
    }
    var files []string
    for _, e := range entries {
        ext := strings.ToLower(filepath.Ext(e.Name()))
        if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
            files = append(files, e.Name())
        }
    }
    sort.Strings(files)

    out := make(map[Key]string)
    owner := make(map[Key]string)
    for _, name := range files {
        b, err := os.ReadFile(filepath.Join(dir, name))
        if err != nil { return nil, fmt.Errorf("read %s: %w", name, err) }
        layer, err := parseLayer(b)
        if err != nil { return nil, fmt.Errorf("parse %s: %w", name, err) }
        for k, v := range layer {
            if prev, ok := owner[k]; ok {
                return nil, fmt.Errorf("duplicate override key %q in %s and %s", k, prev, name)
            }
            owner[k] = name
            out[k] = v
        }
    }
    return out, nil
}

// parseLayer flattens nested YAML maps into dot keys.
func parseLayer(b []byte) (map[Key]string, error) {
    var root yaml.Node
    if err := yaml.Unmarshal(b, &root); err != nil {
        return nil, err
    }
    out := make(map[Key]string)
    if len(root.Content) == 0 {
        return out, nil
    }
    if err := flatten(root.Content[0], "", out); err != nil {
        return nil, err
    }
    return out, nil
}

func flatten(n *yaml.Node, prefix string, out map[Key]string) error {
    switch n.Kind {
    case yaml.MappingNode:
        for i := 0; i+1 < len(n.Content); i += 2 {
            key := n.Content[i].Value
            if prefix != "" { key = prefix + "." + key }
            if err := flatten(n.Content[i+1], key, out); err != nil { return err }
        }
        return nil
    case yaml.ScalarNode:
        if prefix == "" {
            return fmt.Errorf("line %d: value without key", n.Line)
        }
        if n.Tag == "!!null" { return nil }
        out[Key(prefix)] = n.Value
        return nil
    case yaml.AliasNode:
        return flatten(n.Alias, prefix, out)
    }
    return fmt.Errorf("line %d: unsupported value at %s", n.Line, prefix)
}

// Render executes the template for key. Missing template fields are errors.
func (c *Catalog) Render(key Key, data any) (string, error) {
    if c == nil {
        return "", fmt.Errorf("template not found: %s", key)
    }
    t, ok := c.tpls[key]
    if !ok {
        return "", fmt.Errorf("template not found: %s", key)
    }
    var b strings.Builder
    if err := t.Execute(&b, data); err != nil {
        return "", err
    }
    return b.String(), nil
}

// Has reports whether key is present.
func (c *Catalog) Has(key Key) bool {
    if c == nil { return false }
    _, ok := c.tpls[key]
    return ok
}

func (c *Catalog) text(key Key, data any) string {
    if out, err := c.Render(key, data); err == nil && out != "" {
        return out
    }
    return fallbacks[key]
}

func (c *Catalog) Author() string { return c.text(KeyAuthor, nil) }

func (c *Catalog) Joined(name, room string) string {
    return c.text(KeyJoined, map[string]string{"Name": name, "Room": room})
}

func (c *Catalog) Dropped(name, room string) string {
    return c.text(KeyDropped, map[string]string{"Name": name, "Room": room})
}

func (c *Catalog) Reset() string { return c.text(KeyReset, nil) }

func (c *Catalog) Started() string { return c.text(KeyStarted, nil) }

func (c *Catalog) Checkmate(winner string) string {
    return c.text(KeyCheckmate, map[string]string{"Winner": winner})
}

func (c *Catalog) Stalemate() string { return c.text(KeyStalemate, nil) }

// Error renders the newError text for code. Unknown codes render as internal.
func (c *Catalog) Error(code, room string) string {
    key := ErrorKey(code)
    if _, known := fallbacks[key]; !known {
        key = ErrorKey(CodeInternal)
    }
    return c.text(key, map[string]string{"Room": room})
}

// Codes lists every error code the catalog renders.
func Codes() []string { return append([]string(nil), errorCodes...) }
