// Command molerctl dials a single TCP endpoint, sends one request line and
// waits for either a terminating "OK" or "ERROR" line, printing the result.
// It exists to exercise the observation runtime end to end rather than to
// be a general-purpose tool.
package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/moler-go/moler/core/bus"
	"github.com/moler-go/moler/core/command"
	"github.com/moler-go/moler/core/config"
	"github.com/moler-go/moler/core/logger"
	"github.com/moler-go/moler/core/observer"
	"github.com/moler-go/moler/core/runner"
	"github.com/moler-go/moler/core/transport"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg Config
	config.MustLoad(&cfg)

	logOpt := logger.WithDevelopment(cfg.AppName)
	if cfg.JSONLogs {
		log := logger.New(logOpt, logger.WithJSONFormatter())
		logger.SetAsDefault(log)
	} else {
		logger.SetAsDefault(logger.New(logOpt))
	}
	log := slog.Default()

	if _, err := config.NewDocumentLoader().LoadFile(cfg.DevicesFile); err != nil {
		log.Warn("devices document not loaded, continuing without it",
			logger.Component("config"), logger.Error(err))
	}

	tcp := transport.NewTCP(cfg.TargetAddr)
	b := bus.New("molerctl", tcp.Send, bus.WithLogger(log))
	tcp.SetInbound(b.OnBytes)

	dialCtx, cancelDial := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancelDial()
	if err := tcp.Open(dialCtx); err != nil {
		log.Error("dial failed", logger.Component("transport.tcp"), logger.Error(err))
		os.Exit(1)
	}
	defer tcp.Close()

	pool := runner.NewPoolRunner(runner.WithPoolLogger(log))
	defer pool.Shutdown()

	var cmd *command.Command
	cmd = command.New(b, cfg.RequestLine, okOrError(&cmd), cfg.CommandTimeout, false)

	handle, err := cmd.Start(pool)
	if err != nil {
		log.Error("submit failed", logger.Component("command"), logger.Error(err))
		os.Exit(1)
	}

	if err := handle.Join(cfg.CommandTimeout + cfg.DialTimeout); err != nil {
		log.Error("command did not finish", logger.Component("command"), logger.Error(err))
		os.Exit(1)
	}

	result, err := handle.Result()
	if err != nil {
		log.Error("command failed", logger.Component("command"),
			logger.Error(err), "output", string(cmd.Output()))
		os.Exit(1)
	}

	log.Info("command succeeded", logger.Component("command"), "result", result)
}

// okOrError recognizes the common terminal-line convention: a response
// ending "OK\r\n" succeeds with the accumulated output, one ending
// "ERROR\r\n" fails with a CommandFailure. cmd is a pointer to the
// variable the caller assigns immediately after command.New returns, the
// same two-phase construction as in command_test.go.
func okOrError(cmd **command.Command) observer.FeedFunc {
	return func(chunk []byte) observer.FeedResult {
		switch {
		case bytes.Contains(chunk, []byte("OK\r\n")):
			return observer.Succeeded((*cmd).Output())
		case bytes.Contains(chunk, []byte("ERROR\r\n")):
			return (*cmd).Fail("device reported ERROR")
		default:
			return observer.Stay()
		}
	}
}
