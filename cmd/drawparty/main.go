package main

import (
	"context"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mossy-p/drawparty/config"
	"github.com/mossy-p/drawparty/internal/game"
	"github.com/mossy-p/drawparty/internal/handlers"
	"github.com/mossy-p/drawparty/internal/middleware"
	"github.com/mossy-p/drawparty/internal/store"
)

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("loading configuration")
	}
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
		log.Logger = log.Level(zerolog.InfoLevel)
	}

	topics := game.DefaultTopics()
	if cfg.TopicsFile != "" {
		topics, err = game.LoadTopics(cfg.TopicsFile)
		if err != nil {
			log.Fatal().Err(err).Str("file", cfg.TopicsFile).Msg("loading topics")
		}
	}
	log.Info().Strs("themes", topics.Themes()).Msg("topics loaded")

	// Redis is the shared store; when it is unreachable the server still
	// comes up on the in-process fallback, local-only but playable.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	var sessionStore store.SessionStore
	redisStore, err := store.NewRedisStore(ctx, cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
	cancel()
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, falling back to in-memory session store")
		sessionStore = store.NewMemoryStore()
	} else {
		defer redisStore.Close()
		sessionStore = redisStore
		log.Info().Str("addr", cfg.Redis.Addr()).Msg("redis connection established")
	}

	api := &handlers.API{
		Store:  sessionStore,
		Engine: game.NewEngine(topics),
	}

	router := gin.Default()
	router.Use(handlers.OriginFilter(cfg.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	apiGroup := router.Group("/api")
	{
		apiGroup.POST("/auth/login", handlers.Login(cfg.JWTSecret))
		apiGroup.GET("/sessions", api.ListSessions)
		apiGroup.GET("/sessions/:sessionId", api.GetSession)
	}

	wsGroup := router.Group("/ws")
	{
		wsGroup.GET("/sessions/create", middleware.JWTAuth(cfg.JWTSecret), api.CreateSessionWS)
		wsGroup.GET("/sessions/:sessionId", api.JoinSessionWS)
	}

	log.Info().Str("port", cfg.Port).Msg("starting drawparty server")
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
