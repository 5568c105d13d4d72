package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/infra/app"
	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/infra/config"
)

// envFiles are loaded in order. Variables already set win over both files.
var envFiles = []string{".env.local", ".env"}

func main() {
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Fatalf("load %s: %v", file, err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	auth, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("start auth service: %v", err)
	}

	if err := auth.Run(ctx); err != nil {
		log.Printf("auth service stopped: %v", err)
		os.Exit(1)
	}
}
