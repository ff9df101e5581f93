// Command rudp-server is a minimal demo listener: it prints every
// application payload it receives and, reading lines from stdin, broadcasts
// each one reliably to every connected peer — the same shape as the
// original implementation's test/test-server.c, translated from its
// ela-event-loop/stdin-source plumbing into goroutines and channels.
package main

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/rs/zerolog"

	"go-rudp/internal/bufpool"
	"go-rudp/internal/clock"
	"go-rudp/internal/config"
	"go-rudp/internal/logging"
	"go-rudp/internal/randseq"
	"go-rudp/pkg/rudp"
)

const version = "1.0.0"

func main() {
	logging.Banner(os.Stdout, "rudp-server", version)

	cfg, err := config.Load(".env", flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "rudp-server: config:", err)
		os.Exit(1)
	}

	log := logging.New(logging.LevelFromString(cfg.LogLevel))
	logging.Section(os.Stdout, "Starting")
	log.Info().Str("host", cfg.Host).Int("port", cfg.Port).Msg("binding")

	engineCfg := rudp.NewConfig()
	engineCfg.Clock = clock.NewSystem()
	engineCfg.PRNG = randseq.System{}
	engineCfg.Allocator = bufpool.NewDefault()
	engineCfg.Logger = log
	engineCfg.ActionTimeout = time.Duration(cfg.ActionTimeoutMs) * time.Millisecond
	engineCfg.DropTimeout = time.Duration(cfg.DropTimeoutMs) * time.Millisecond
	engineCfg.MaxRTO = time.Duration(cfg.MaxRTOMs) * time.Millisecond

	handler := rudp.ServerHandlerFuncs{
		HandlerFuncs: rudp.HandlerFuncs{
			OnPacket: func(p *rudp.Peer, userCommand uint8, payload []byte) {
				log.Info().Str("peer", p.ID()).Uint8("command", userCommand).Str("payload", string(payload)).Msg("received")
			},
			OnDropped: func(p *rudp.Peer) {
				log.Warn().Str("peer", p.ID()).Msg("peer dropped")
			},
		},
		OnPeerNew: func(p *rudp.Peer) {
			log.Info().Str("peer", p.ID()).Str("addr", p.RemoteAddr().String()).Msg("peer connected")
		},
	}

	addr := &net.UDPAddr{IP: net.ParseIP(cfg.Host), Port: cfg.Port}
	srv, err := rudp.NewServer(engineCfg, addr, handler)
	if err != nil {
		log.Fatal().Err(err).Msg("bind failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	g := srv.Serve(ctx)

	go broadcastStdin(srv, log)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	log.Warn().Str("signal", sig.String()).Msg("shutting down")

	cancel()
	_ = srv.Shutdown()
	_ = g.Wait()
	log.Info().Msg("stopped")
}

// broadcastStdin mirrors test-server.c's handle_stdin: each line typed at
// the console is sent reliably to every connected peer.
func broadcastStdin(srv *rudp.Server, log zerolog.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		for _, p := range srv.Peers() {
			if err := p.Send(0, []byte(line), true); err != nil {
				log.Debug().Err(err).Str("peer", p.ID()).Msg("broadcast send failed")
			}
		}
	}
}
