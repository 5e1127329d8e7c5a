package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-ident-server/clients"
	"github.com/jrsteele09/go-ident-server/internal/config"
	"github.com/jrsteele09/go-ident-server/internal/telemetry"
	"github.com/jrsteele09/go-ident-server/server"
	"github.com/jrsteele09/go-ident-server/storage/sqlite"
	"github.com/jrsteele09/go-ident-server/token"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatalf("Error running server: %s\n", err)
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Printf("Server stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	ctx := context.Background()

	cfg, err := config.New()
	if err != nil {
		return err
	}
	displayAppname(cfg.GetAppName())

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg, cfg.GetAppName())
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			log.Printf("Telemetry shutdown: %v\n", err)
		}
	}()

	store, err := sqlite.Open(cfg.GetDatabasePath())
	if err != nil {
		return err
	}
	defer store.Close()

	if err := seedClients(ctx, cfg.GetClientsSeedPath(), store.Clients()); err != nil {
		return err
	}

	keys, err := token.LoadStaticKeys(cfg.GetKeysDocumentPath())
	if err != nil {
		return err
	}

	srv, err := server.New(cfg, server.Repos{
		Users:    store.Users(),
		Emails:   store.Emails(),
		Sessions: store.Sessions(),
		Clients:  store.Clients(),
		Grants:   store.Grants(),
		Mail:     store.MailQueue(),
		DB:       store.DB(),
	}, token.NewIssuer(store.Tokens(), cfg), keys)
	if err != nil {
		return err
	}

	httpServer := &http.Server{Addr: cfg.GetPort(), Handler: srv}
	go listenAndServe(httpServer)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

// seedClients upserts the clients listed in the seed file, when one is
// configured. Registrations made at runtime are left alone.
func seedClients(ctx context.Context, path string, repo clients.Repo) error {
	if path == "" {
		return nil
	}
	seeded, err := clients.LoadSeedFile(path, time.Now())
	if err != nil {
		return err
	}
	for _, client := range seeded {
		if err := repo.Upsert(ctx, client); err != nil {
			return fmt.Errorf("seeding client %q: %w", client.ID, err)
		}
	}
	log.Printf("Seeded %d clients from %s\n", len(seeded), path)
	return nil
}

func listenAndServe(server *http.Server) error {
	log.Printf("Server listening on %s\n", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
