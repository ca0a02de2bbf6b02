package routes

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"lunch-voting-backend/cache"
	"lunch-voting-backend/handlers"
	"lunch-voting-backend/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Server wraps the HTTP server.
type Server struct {
	*http.Server
}

// SetupRouter builds the Gin router with all middleware and routes.
func SetupRouter() *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"}, // restrict to the frontend origin in production
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	handlers.InitRateLimiters()

	go startSessionSweeper()

	api := router.Group("/api")
	{
		api.Use(handlers.RateLimitMiddleware())

		api.GET("/health", handlers.HealthCheck)
		api.GET("/status", handlers.SystemStatus)

		authed := api.Group("")
		authed.Use(handlers.RequireUser())
		{
			restaurants := authed.Group("/restaurants")
			{
				restaurants.POST("", handlers.CreateRestaurant)
				restaurants.GET("", handlers.ListRestaurants)
				restaurants.GET("/:id", handlers.GetRestaurant)
				restaurants.PUT("/:id", handlers.UpdateRestaurant)
				restaurants.DELETE("/:id", handlers.DeactivateRestaurant)
				restaurants.POST("/:id/reactivate", handlers.ReactivateRestaurant)
			}

			sessions := authed.Group("/sessions")
			{
				sessions.POST("", handlers.CreateSession)
				sessions.GET("", handlers.ListSessions)
				sessions.GET("/:id", handlers.GetSession)
				sessions.PATCH("/:id", handlers.UpdateSession)
				sessions.POST("/:id/restaurants", handlers.AddSessionRestaurants)
				sessions.DELETE("/:id/restaurants", handlers.RemoveSessionRestaurants)
				sessions.POST("/:id/activate", handlers.ActivateSession)
				sessions.POST("/:id/close", handlers.CloseSession)

				sessions.POST("/:id/votes", handlers.CastVote)
				sessions.GET("/:id/votes", handlers.SessionVotes)
				sessions.GET("/:id/votes/me", handlers.MyVotes)

				sessions.GET("/:id/results", handlers.SessionResults)

				sessions.GET("/:id/ws", handlers.HandleWebSocket)
				sessions.GET("/:id/live", handlers.HandleSSE)
			}

			authed.GET("/results/history", handlers.ResultHistory)
		}
	}

	return router
}

// StartServer starts the HTTP server on SERVER_PORT (default 8090).
func StartServer(router *gin.Engine) *Server {
	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8090"
	}
	addr := ":" + port

	srv := &Server{
		&http.Server{
			Addr:    addr,
			Handler: router,
		},
	}

	go func() {
		log.Printf("server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed to start: %v", err)
		}
	}()

	return srv
}

// startSessionSweeper periodically closes sessions whose auto-close
// deadline passed. With Redis available the sweep runs under a distributed
// lock so only one replica does the work.
func startSessionSweeper() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		sweepOnce()
	}
}

func sweepOnce() {
	sweep := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		closed, err := service.CloseExpiredSessions(ctx)
		if err != nil {
			return err
		}
		for _, id := range closed {
			handlers.NotifySessionClosed(id)
		}
		if len(closed) > 0 {
			log.Printf("auto-closed %d expired session(s)", len(closed))
		}
		return nil
	}

	lockService := cache.GetLockService()
	if lockService == nil {
		if err := sweep(); err != nil {
			log.Printf("session sweep failed: %v", err)
		}
		return
	}

	err := lockService.WithLock("lunchvote:sweep", 30*time.Second, sweep)
	if err != nil && err != cache.ErrLockNotAcquired {
		log.Printf("session sweep failed: %v", err)
	}
}
