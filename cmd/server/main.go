package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/amitxd75/github-api-backend/internal/cache"
	"github.com/amitxd75/github-api-backend/internal/config"
	"github.com/amitxd75/github-api-backend/internal/handler"
	"github.com/amitxd75/github-api-backend/internal/service"
	"github.com/amitxd75/github-api-backend/internal/upstream"
)

func main() {
	cfg := config.Load()

	responseCache := cache.New(cache.Policy{
		EndpointTTL:   cfg.EndpointTTL,
		StatsTTL:      cfg.StatsTTL,
		MaxEntries:    cfg.MaxEntries,
		MaxTotalBytes: cfg.MaxTotalBytes,
	})

	fetcher := upstream.NewFetcher(nil, cfg.MaxRetries)
	client := upstream.NewClient(cfg.GitHubAPI, cfg.GitHubToken, fetcher)

	proxyService := service.NewProxyService(responseCache, client)
	statsService := service.NewStatsService(responseCache, client)

	router := gin.Default()
	router.Use(corsMiddleware())

	h := handler.New(proxyService, statsService, responseCache)
	h.Register(router)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
