package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-ident-server/internal/config"
	"github.com/jrsteele09/go-ident-server/internal/telemetry"
	"github.com/jrsteele09/go-ident-server/mailer"
	"github.com/jrsteele09/go-ident-server/storage/sqlite"
	"github.com/jrsteele09/go-ident-server/tasks"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatalf("Error running worker: %s\n", err)
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Printf("Worker stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.New()
	if err != nil {
		return err
	}
	displayAppname(cfg.GetAppName())

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg, cfg.GetAppName()+"-worker")
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

	sender, err := mailer.New(cfg, cfg.GetAppName())
	if err != nil {
		return err
	}
	// Delivery retries, so a dead SMTP host only delays mail.
	if err := sender.TestConnection(ctx); err != nil {
		log.Printf("SMTP connection test failed: %v\n", err)
	}

	monitor := tasks.Init(tasks.Repos{
		Grants:   store.Grants(),
		Sessions: store.Sessions(),
		Tokens:   store.Tokens(),
		Mail:     store.MailQueue(),
	}, sender, cfg)

	log.Printf("Worker running\n")
	monitor.Run(ctx)
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
