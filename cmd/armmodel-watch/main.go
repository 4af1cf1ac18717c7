// armmodel-watch: tails the pose stream of a running armmodel server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-armmodel/internal/httpc"
	"github.com/teslashibe/go-armmodel/internal/log"
	"github.com/teslashibe/go-armmodel/pkg/armmodel"
	"github.com/teslashibe/go-armmodel/pkg/protocol"
	"github.com/teslashibe/go-armmodel/pkg/tracker"
)

var (
	addr     = flag.String("addr", "localhost:8090", "armmodel server address")
	hand     = flag.String("hand", "", "Only show this hand (name or id)")
	count    = flag.Int("n", 0, "Exit after this many poses (0 = forever)")
	raw      = flag.Bool("json", false, "Print raw JSON messages")
	interval = flag.Duration("ping", 5*time.Second, "Latency probe interval (0 = off)")
	setHand  = flag.String("set-handedness", "", "Switch -hand to left or right before watching")
)

func main() {
	flag.Parse()
	log.Init("info")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Error("watch failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	api := httpc.NewAPI("http://" + *addr)

	if *setHand != "" {
		if *hand == "" {
			return errors.New("-set-handedness needs -hand")
		}
		h, err := armmodel.ParseHandedness(*setHand)
		if err != nil {
			return err
		}
		var cfg armmodel.Config
		path := "/api/hands/" + url.PathEscape(*hand) + "/config"
		if err := api.Put(ctx, path, armmodel.TuningParams{Handedness: &h}, &cfg); err != nil {
			return err
		}
		log.Info("configuration updated", "hand", *hand, "handedness", cfg.Handedness)
	}

	var hands []tracker.Info
	if err := api.Get(ctx, "/api/hands", &hands); err != nil {
		return err
	}
	for _, h := range hands {
		log.Info("hand", "name", h.Name, "id", h.ID, "source", h.Source, "tick", h.Tick)
	}

	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws/pose"}
	if *hand != "" {
		u.Path += "/" + url.PathEscape(*hand)
	}
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", u.String(), err)
	}
	defer ws.Close()

	go func() {
		<-ctx.Done()
		ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		ws.Close()
	}()
	if *interval > 0 {
		go probe(ctx, ws)
	}

	seen := 0
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		msg, err := protocol.ParseMessage(data)
		if err != nil {
			log.Warn("bad message", "error", err)
			continue
		}

		switch msg.Type {
		case protocol.TypePose:
			if *raw {
				fmt.Println(string(data))
			} else if pd, err := msg.GetPoseData(); err == nil {
				w := pd.WristPosition
				fmt.Printf("%-6s %8d  wrist (%+.3f %+.3f %+.3f)  alpha %.2f  tooltip %.2f\n",
					pd.Hand, pd.Tick, w.X, w.Y, w.Z, pd.ControllerAlpha, pd.TooltipAlpha)
			}
			seen++
			if *count > 0 && seen >= *count {
				return nil
			}

		case protocol.TypePong:
			var pong protocol.PongData
			if err := msg.ParseData(&pong); err == nil {
				log.Info("latency", "ms", time.Now().UnixMilli()-pong.PingTS)
			}
		}
	}
}

// probe sends protocol pings so the round trip can be reported. gorilla
// allows one concurrent writer, which is this goroutine.
func probe(ctx context.Context, ws *websocket.Conn) {
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			msg, err := protocol.NewPingMessage(uuid.NewString(), time.Now().UnixMilli())
			if err != nil {
				continue
			}
			b, _ := msg.Bytes()
			if err := ws.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		}
	}
}
