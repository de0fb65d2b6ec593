// Command chatserver runs the chat server core on a single TCP port.
//
// Usage:
//
//	chatserver [options] <port>
//
// port must be in (0, 10000]. On invalid arguments, usage is written to
// stderr and the process exits nonzero, before any session is accepted
// (spec.md §6, §7).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli"

	"github.com/briarhall/chatcore/admin"
	"github.com/briarhall/chatcore/server"
)

func main() {
	app := cli.NewApp()
	app.Name = "chatserver"
	app.Usage = "multi-user TCP chat server core"
	app.ArgsUsage = "<port>"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "eventlog",
			Value: "chat.log",
			Usage: "path to the append-only event log file",
		},
		cli.StringFlag{
			Name:  "admin",
			Value: "",
			Usage: "address for the optional admin HTTP surface (/healthz, /rooms, /metrics), e.g. \":8080\"; disabled if empty",
		},
		cli.IntFlag{
			Name:  "session-cap",
			Value: server.DefaultSessionCap,
			Usage: "maximum concurrent sessions",
		},
		cli.IntFlag{
			Name:  "room-cap",
			Value: server.DefaultRoomCap,
			Usage: "maximum concurrent rooms",
		},
		cli.DurationFlag{
			Name:  "transfer-delay",
			Value: server.DefaultTransferDelay,
			Usage: "simulated Transfer worker delay per file",
		},
		cli.Float64Flag{
			Name:  "command-rate",
			Value: 0,
			Usage: "max sustained commands per second per session, 0 disables throttling",
		},
		cli.IntFlag{
			Name:  "command-burst",
			Value: 10,
			Usage: "command-rate burst allowance",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.NewExitError("usage: chatserver [options] <port>", 2)
	}

	port, err := strconv.Atoi(c.Args().Get(0))
	if err != nil || port <= 0 || port > 10000 {
		return cli.NewExitError(fmt.Sprintf("invalid port %q: must be in (0, 10000]", c.Args().Get(0)), 2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	logFile, err := os.OpenFile(c.String("eventlog"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("open event log: %v", err), 1)
	}
	defer logFile.Close()

	opts := []server.Option{
		server.WithLogger(logger),
		server.WithEventLog(logFile),
		server.WithSessionCap(c.Int("session-cap")),
		server.WithRoomCap(c.Int("room-cap")),
		server.WithTransferDelay(c.Duration("transfer-delay")),
	}
	if rate := c.Float64("command-rate"); rate > 0 {
		opts = append(opts, server.WithCommandRateLimit(rate, c.Int("command-burst")))
	}

	var reg *prometheus.Registry
	adminAddr := c.String("admin")
	if adminAddr != "" {
		reg = prometheus.NewRegistry()
		opts = append(opts, server.WithMetricsCollector(server.NewPromMetrics(reg)))
	}

	srv, err := server.NewServer(fmt.Sprintf(":%d", port), opts...)
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("create server: %v", err), 1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if adminAddr != "" {
		adminSrv := admin.New(srv, reg)
		go adminSrv.Run(ctx, adminAddr)
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutdown signal received")
		shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && err != server.ErrServerClosed {
		return cli.NewExitError(fmt.Sprintf("serve: %v", err), 1)
	}
	return nil
}
