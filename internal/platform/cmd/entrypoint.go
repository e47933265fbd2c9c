// Package cmd holds the startup plumbing shared by the lobby commands.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/louisbranch/lobby/internal/platform/config"
	"github.com/louisbranch/lobby/internal/platform/otel"
)

const otelShutdownTimeout = 5 * time.Second

// Command names, used as the telemetry service name.
const (
	ServiceLobby     = "lobby"
	ServiceLobbyBlob = "lobby-blob"
)

// Load fills cfg from the environment, lets bind register flags whose
// defaults are the environment values, then parses args. Flags win over the
// environment.
func Load[T any](cfg *T, fs *flag.FlagSet, args []string, bind func(*flag.FlagSet, *T)) error {
	if cfg == nil {
		return errors.New("config target is required")
	}
	if fs == nil {
		return errors.New("flag parser is required")
	}
	if err := config.ParseEnv(cfg); err != nil {
		return err
	}
	if bind != nil {
		bind(fs, cfg)
	}
	if args == nil {
		args = []string{}
	}
	return fs.Parse(args)
}

// Run sets up tracing for service and executes run. A run that ends because
// ctx was canceled, as on SIGTERM, counts as a clean exit.
func Run(ctx context.Context, service string, run func(context.Context) error) error {
	service = strings.TrimSpace(service)
	if service == "" {
		return fmt.Errorf("service name is required")
	}
	if run == nil {
		return fmt.Errorf("run function is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	shutdown, err := otel.Setup(ctx, service)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), otelShutdownTimeout)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.Printf("%s otel shutdown: %v", service, err)
		}
	}()

	err = run(ctx)
	if err != nil && ctx.Err() != nil && errors.Is(err, context.Canceled) {
		log.Printf("%s stopped: %v", service, ctx.Err())
		return nil
	}
	return err
}
