package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskmanager/internal/server"
	db "taskmanager/repository/db"
	inmemory "taskmanager/repository/inmemory"
)

func main() {
	log.Println("starting task manager service...")

	cfg := server.ReadConfig()

	if cfg.JWTSecret == "" {
		log.Fatal("[ERROR] JWT_SECRET environment variable is required")
	}

	if err := db.Migration(cfg.DBStr, cfg.MigratePath); err != nil {
		log.Println("[WARN] failed to apply migrations:", err)
	} else {
		log.Println("[SUCCESS] migrations applied")
	}

	var userRepo server.UserRepository
	var taskRepo server.TaskRepository

	dbStorage, err := db.NewStorage(cfg.DBStr)
	if err != nil {
		log.Println("[WARN] database unreachable, falling back to in-memory storage:", err)
		inmem := inmemory.NewStorage()
		userRepo = inmem
		taskRepo = inmem
	} else {
		userRepo = dbStorage
		taskRepo = dbStorage
	}

	api := server.NewTaskAPI(userRepo, taskRepo, cfg)
	if api == nil {
		log.Fatal("[ERROR] failed to initialize API")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("service listening on %s:%d", cfg.Addr, cfg.Port)
		if err := api.Start(); err != nil {
			serverErr <- err
		}
	}()

	select {
	case sig := <-sigChan:
		log.Printf("[INFO] received signal %v, starting graceful shutdown...", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := api.Shutdown(shutdownCtx); err != nil {
			log.Printf("[ERROR] graceful shutdown failed: %v", err)
		} else {
			log.Println("[SUCCESS] graceful shutdown complete")
		}

		if dbStorage != nil {
			if err := dbStorage.Close(shutdownCtx); err != nil {
				log.Printf("[ERROR] failed to close database connection: %v", err)
			}
		}

	case err := <-serverErr:
		log.Printf("[ERROR] server error: %v", err)
	}

	log.Println("service stopped")
}
