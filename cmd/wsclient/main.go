// Wsclient is a minimal interactive command-line demonstration of this
// module's WebSocket client: it connects to a server, optionally sends one
// text message, prints every message it receives, and disconnects on
// Ctrl-C.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli/v3"

	"github.com/CycloneRing/librws/internal/logger"
	"github.com/CycloneRing/librws/pkg/websocket"
	"github.com/tzrikka/xdg"
)

const (
	configDirName  = "wsclient"
	configFileName = "config.toml"
)

func main() {
	bi, _ := debug.ReadBuildInfo()

	cmd := &cli.Command{
		Name:    "wsclient",
		Usage:   "connect to a WebSocket server and print what it sends back",
		Version: bi.Main.Version,
		Flags:   flags(configFile()),
		Action:  run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	initLog(cmd.Bool("pretty-log"))
	ctx = logger.WithContext(ctx, slog.Default())

	host := cmd.String("host")
	if host == "" {
		return cli.Exit("missing required --host flag", 1)
	}

	done := make(chan struct{})
	h := websocket.NewHandle(ctx)
	h.SetHost(host)
	h.SetPort(int(cmd.Int("port")))
	h.SetPath(cmd.String("path"))
	h.SetCallbacks(
		func(h *websocket.Handle) {
			slog.Info("connected")
			if msg := cmd.String("send"); msg != "" {
				h.SendText([]byte(msg))
			}
		},
		func(h *websocket.Handle) {
			if err := h.LastError(); err != nil {
				slog.Error("disconnected", slog.Any("error", err))
			} else {
				slog.Info("disconnected")
			}
			close(done)
		},
		func(h *websocket.Handle, data []byte) {
			slog.Info("received text message", slog.String("data", string(data)))
		},
		func(h *websocket.Handle, data []byte, isFinal bool) {
			slog.Info("received binary message", slog.Int("bytes", len(data)))
		},
	)

	if err := h.Connect(); err != nil {
		return err
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sig:
		h.DisconnectAndRelease()
		<-done
	case <-done:
	}

	return nil
}

// configFile returns the path to wsclient's configuration file, creating an
// empty one if it doesn't already exist.
func configFile() altsrc.StringSourcer {
	path, err := xdg.CreateFile(xdg.ConfigHome, configDirName, configFileName)
	if err != nil {
		logger.FatalError("failed to create config file", err)
	}
	return altsrc.StringSourcer(path)
}

// initLog initializes the default slog logger, either as human-readable
// console text or as JSON, depending on prettyLog.
func initLog(prettyLog bool) {
	var handler slog.Handler
	if prettyLog {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level:     slog.LevelInfo,
			AddSource: false,
		})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level:     slog.LevelInfo,
			AddSource: false,
		})
	}

	slog.SetDefault(slog.New(handler))
}
