package main

import (
	"context"
	"errors"
	"flag"
	"log"
	oshttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"easychat/internal/api"
	"easychat/internal/auth"
	"easychat/internal/commands"
	"easychat/internal/config"
	"easychat/internal/filestore"
	"easychat/internal/http"
	"easychat/internal/storage"
	"easychat/internal/ws"

	"golang.org/x/sync/errgroup"
)

func run(ctx context.Context) error {
	addUser := flag.String("add-user", "", "Username to create (creates user with random password and prints details)")
	flag.Parse()

	cfg, err := config.Load(*addUser != "")
	if err != nil {
		return err
	}

	if *addUser != "" {
		return commands.AddUser(*addUser, cfg)
	}

	store, err := storage.NewBboltStorage(cfg.DBFile)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	verifier, err := auth.NewTokenVerifier(auth.TokenConfig{
		Secret:      cfg.JWTSecret,
		TokenExpiry: cfg.TokenExpiry,
	})
	if err != nil {
		return err
	}

	authService, err := auth.NewAuthService(verifier, store)
	if err != nil {
		return err
	}

	files, err := filestore.NewLocalFileStore(cfg.UploadsPath)
	if err != nil {
		return err
	}

	registry := ws.NewRegistry()
	router := ws.NewRouter(registry, store)
	wsServer := ws.NewServer(verifier, registry, router)

	apiHandlers := api.New(authService, store, files)
	apiServer := http.NewAPIServer(apiHandlers, wsServer, cfg.APIAddr)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := apiServer.Start()
		if err != nil && err != oshttp.ErrServerClosed {
			return err
		}
		return nil
	})

	// Wait for context cancellation (signal)
	g.Go(func() error {
		<-gCtx.Done()
		log.Println("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
		return nil
	})

	return g.Wait()
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Application error: %v", err)
	}
}
