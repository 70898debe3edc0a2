package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	appcfg "github.com/park285/hopchess/internal/config"
	"github.com/park285/hopchess/internal/msgcat"
	"github.com/park285/hopchess/internal/player"
	"github.com/park285/hopchess/internal/provision"
	"github.com/park285/hopchess/internal/relay"
	"github.com/park285/hopchess/internal/rules"
)

func main() {
	cfg, err := appcfg.LoadClient()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	session := flag.String("session", cfg.SessionID, "game session uuid")
	identity := flag.String("identity", cfg.Identity, "player uuid")
	move := flag.String("move", "", "optional first move, e.g. c2-c3")
	window := flag.Duration("observe", 10*time.Second, "how long to watch the room")
	flag.Parse()

	cat, err := msgcat.New("")
	if err != nil {
		log.Fatalf("catalog error: %v", err)
	}
	var cache player.IdentityCache = player.NewMemoryCache()
	if cfg.CachePath != "" {
		cache = player.NewFileCache(cfg.CachePath)
	}

	ws := relay.NewClient(cfg.RelayWSURL, 5)
	records := provision.NewClient(cfg.RoomAPIURL)
	sess := player.NewSession(cache, records, ws, cat)
	sess.OnNotification(func(n player.Notification) {
		fmt.Printf("[%s] %s: %s\n", n.At.Format(time.TimeOnly), n.Author, n.Text)
	})
	inbound := ws.Inbound(64)

	var joined atomic.Bool
	ws.OnStateChange(func(state relay.State) {
		log.Printf("WS state: %s", state)
		if state == relay.StateConnected && joined.Load() {
			// the relay forgets bindings on reconnect
			sess.Post(func() {
				if err := sess.Join(context.Background(), *session, *identity); err != nil {
					log.Printf("rejoin error: %v", err)
				}
			})
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cctx, ccancel := context.WithTimeout(ctx, 10*time.Second)
	if err := ws.Connect(cctx); err != nil {
		ccancel()
		log.Fatalf("WS connect error: %v", err)
	}
	ccancel()

	jctx, jcancel := context.WithTimeout(ctx, 10*time.Second)
	err = sess.Join(jctx, *session, *identity)
	jcancel()
	if err != nil {
		log.Printf("join error: %v", err)
		_ = ws.Close(context.Background())
		return
	}
	joined.Store(true)

	runCtx, runCancel := context.WithTimeout(ctx, *window)
	defer runCancel()
	if *move != "" {
		go playWhenStarted(runCtx, sess, *move)
	}
	_ = sess.Run(runCtx, inbound)

	v := sess.View()
	fmt.Printf("session=%s color=%s opponent=%q started=%v status=%s turn=%s\n",
		v.SessionID, v.Color, v.Opponent.Name, v.Started, v.Game.Status, v.Game.Turn)
	if v.Over != nil {
		fmt.Printf("game over: %s winner=%s\n", v.Over.Type, v.Over.Winner)
	}
	_ = ws.Close(context.Background())
}

func playWhenStarted(ctx context.Context, sess *player.Session, notation string) {
	from, to, err := parseMove(notation)
	if err != nil {
		log.Printf("move %q: %v", notation, err)
		return
	}
	t := time.NewTicker(200 * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if !sess.View().Started {
				continue
			}
			done := make(chan struct{})
			sess.Post(func() {
				defer close(done)
				if m, err := sess.Play(ctx, from, to); err != nil {
					log.Printf("play %s: %v", notation, err)
				} else {
					log.Printf("played %s", m.Notation())
				}
			})
			select {
			case <-done:
			case <-ctx.Done():
			}
			return
		}
	}
}

// parseMove reads "c2-c3" style coordinates.
func parseMove(s string) (rules.Position, rules.Position, error) {
	parts := strings.FieldsFunc(strings.ToLower(strings.TrimSpace(s)), func(r rune) bool { return r == '-' || r == 'x' || r == ' ' })
	if len(parts) != 2 {
		return rules.Position{}, rules.Position{}, fmt.Errorf("want two squares")
	}
	from, err := rules.ParsePosition(parts[0])
	if err != nil {
		return rules.Position{}, rules.Position{}, err
	}
	to, err := rules.ParsePosition(parts[1])
	if err != nil {
		return rules.Position{}, rules.Position{}, err
	}
	return from, to, nil
}
