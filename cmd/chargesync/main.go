package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"chargesync/internal/app"
	"chargesync/internal/config"
	"chargesync/libs/logging"
)

const usage = `usage: chargesync <command> [args]

commands:
  load <source>    run one full sync of a source
  stream <source>  consume a source's realtime stream
  push-server      serve the inbound push receiver
  cleanup          purge realtime statuses past retention
  list-sources     print configured source IDs
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.NewLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync() // best-effort flush

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize application", zap.Error(err))
	}
	defer application.Close()

	if err := run(ctx, application, os.Args[1], os.Args[2:]); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("command failed", zap.String("command", os.Args[1]), zap.Error(err))
	}
}

func run(ctx context.Context, application *app.App, command string, args []string) error {
	switch command {
	case "load":
		if len(args) != 1 {
			return errors.New("load requires exactly one source ID")
		}
		return application.LoadSource(ctx, args[0])
	case "stream":
		if len(args) != 1 {
			return errors.New("stream requires exactly one source ID")
		}
		return application.StreamSource(ctx, args[0])
	case "push-server":
		return application.RunPushServer(ctx)
	case "cleanup":
		return application.Cleanup(ctx)
	case "list-sources":
		fmt.Println(application.SourceIDs())
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}
