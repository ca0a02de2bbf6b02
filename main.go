package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lunch-voting-backend/cache"
	"lunch-voting-backend/database"
	"lunch-voting-backend/handlers"
	"lunch-voting-backend/mq"
	"lunch-voting-backend/routes"

	"github.com/joho/godotenv"
)

func main() {
	// Local development convenience; production sets real env vars.
	if err := godotenv.Load(); err == nil {
		log.Println("loaded configuration from .env")
	}

	if err := database.InitDB(); err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	if err := cache.InitRedis(); err != nil {
		log.Printf("warning: redis initialization failed: %v", err)
	}
	cache.InitDistLock()

	bus := mq.NewEventBus()
	handlers.InitHandler(bus)
	if err := bus.RegisterHandler(handlers.HandleEvent); err != nil {
		log.Printf("warning: failed to start event consumer: %v", err)
	}

	router := routes.SetupRouter()
	srv := routes.StartServer(router)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("server forced to shut down: %v", err)
	}

	bus.Close()
	database.CloseDB()
	cache.CloseRedis()

	log.Println("server exited gracefully")
}
