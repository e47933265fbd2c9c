// Package main dumps or converts the lobby session blob.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/louisbranch/lobby/internal/cmd/lobbyblob"
	entrypoint "github.com/louisbranch/lobby/internal/platform/cmd"
	"github.com/louisbranch/lobby/internal/platform/config"
)

func main() {
	cfg, err := lobbyblob.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	err = entrypoint.Run(context.Background(), entrypoint.ServiceLobbyBlob, func(ctx context.Context) error {
		return lobbyblob.Run(ctx, cfg, os.Stdout)
	})
	if err != nil {
		config.Exitf("lobby blob: %v", err)
	}
}
