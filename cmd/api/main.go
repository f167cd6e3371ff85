package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"choreboard/internal/config"
	"choreboard/internal/db"
	"choreboard/internal/export"
	"choreboard/internal/server"
	"choreboard/internal/tasks"
	"choreboard/internal/views"
)

func main() {
	cfg := config.Load()

	connString, err := cfg.ConnString()
	if err != nil {
		log.Fatal("❌ Invalid DB config:", err)
	}

	database, err := db.Connect(cfg.DBDriver, connString)
	if err != nil {
		log.Fatal("❌ Failed to connect DB:", err)
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := db.Initialize(ctx, database); err != nil {
		log.Fatal("❌ Failed to initialize DB:", err)
	}
	log.Printf("✅ Connected to %s!", cfg.DBDriver)

	pages, err := views.Load(cfg.StaticDir)
	if err != nil {
		log.Fatal("❌ Failed to load templates:", err)
	}

	repo := tasks.NewRepository(database)
	srv := server.New(repo, export.NewExporter(repo), pages, cfg.StaticDir)

	log.Printf("🚀 Chores server is running on %s", cfg.Addr())
	if err := srv.ListenAndServe(ctx, cfg.Addr()); err != nil {
		log.Fatal(err)
	}
	log.Println("👋 Server stopped")
}
