// Command rudp-client is a minimal demo peer: it connects to a rudp-server,
// reconnects automatically if the server is lost, prints every payload it
// receives, and sends each line typed at stdin reliably — translated from
// the original implementation's test/test-client.c (whose server_lost
// handler reconnects the same way).
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"

	"go-rudp/internal/bufpool"
	"go-rudp/internal/clock"
	"go-rudp/internal/config"
	"go-rudp/internal/logging"
	"go-rudp/internal/randseq"
	"go-rudp/internal/scheduler"
	"go-rudp/internal/transport"
	"go-rudp/pkg/rudp"
)

const version = "1.0.0"

func main() {
	logging.Banner(os.Stdout, "rudp-client", version)

	fs := flag.CommandLine
	cfg, err := config.Load(".env", fs, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "rudp-client: config:", err)
		os.Exit(1)
	}
	host := cfg.Host
	if host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	if fs.NArg() > 0 {
		host = fs.Arg(0)
	}

	log := logging.New(logging.LevelFromString(cfg.LogLevel))
	logging.Section(os.Stdout, "Connecting")

	engineCfg := rudp.NewConfig()
	engineCfg.Clock = clock.NewSystem()
	engineCfg.PRNG = randseq.System{}
	engineCfg.Allocator = bufpool.NewDefault()
	engineCfg.Logger = log
	engineCfg.ActionTimeout = time.Duration(cfg.ActionTimeoutMs) * time.Millisecond
	engineCfg.DropTimeout = time.Duration(cfg.DropTimeoutMs) * time.Millisecond
	engineCfg.MaxRTO = time.Duration(cfg.MaxRTOMs) * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var client *rudp.Client
	var loop *scheduler.Loop
	handler := rudp.ClientHandlerFuncs{
		HandlerFuncs: rudp.HandlerFuncs{
			OnPacket: func(p *rudp.Peer, userCommand uint8, payload []byte) {
				log.Info().Uint8("command", userCommand).Str("payload", string(payload)).Msg("received")
			},
			OnDropped: func(p *rudp.Peer) {
				log.Warn().Msg("server lost, reconnecting")
				// Connect mutates and re-sends on this same Peer, so it must
				// not run recursively inside this callback frame (Handler's
				// doc comment, pkg/rudp/interfaces.go). Post it to run after
				// the callback returns.
				loop.Post(func() {
					if err := client.Connect(ctx, host, cfg.Port); err != nil {
						log.Error().Err(err).Msg("reconnect failed")
					}
				})
			},
		},
		OnConnected: func(p *rudp.Peer) {
			log.Info().Str("addr", p.RemoteAddr().String()).Msg("connected")
		},
	}

	client, loop, err = rudp.NewClient(engineCfg, transport.IPAny, handler)
	if err != nil {
		log.Fatal().Err(err).Msg("bind failed")
	}

	if err := client.Connect(ctx, host, cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("connect failed")
	}
	g := client.Serve(ctx)

	go sendStdin(client, loop, log)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	log.Warn().Str("signal", sig.String()).Msg("shutting down")

	client.Close()
	cancel()
	_ = client.Shutdown()
	_ = g.Wait()
	log.Info().Msg("stopped")
}

// sendStdin mirrors test-client.c's handle_stdin: each line typed at the
// console is sent reliably. Each send is posted onto loop so it runs on the
// engine's goroutine.
func sendStdin(client *rudp.Client, loop *scheduler.Loop, log zerolog.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := append([]byte(nil), scanner.Bytes()...)
		loop.Post(func() {
			if err := client.Send(0, line, true); err != nil {
				log.Debug().Err(err).Msg("send failed")
			}
		})
	}
}
