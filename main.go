package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/socialhub/socialhub/backend/go-services/handlers"
	"github.com/socialhub/socialhub/backend/go-services/internal/config"
	"github.com/socialhub/socialhub/backend/go-services/internal/database"
	msghandler "github.com/socialhub/socialhub/backend/go-services/internal/messages/handler"
	msgrepo "github.com/socialhub/socialhub/backend/go-services/internal/messages/repository"
	msgservice "github.com/socialhub/socialhub/backend/go-services/internal/messages/service"
	"github.com/socialhub/socialhub/backend/go-services/internal/realtime"
	"github.com/socialhub/socialhub/backend/go-services/internal/sessions"
	"github.com/socialhub/socialhub/backend/go-services/internal/tokens"
	"github.com/socialhub/socialhub/backend/go-services/internal/users"
	"github.com/socialhub/socialhub/backend/go-services/pkg/logger"
	"github.com/socialhub/socialhub/backend/go-services/pkg/metrics"
	"github.com/socialhub/socialhub/backend/go-services/pkg/middleware"
	"go.mongodb.org/mongo-driver/mongo"
)

var startTime = time.Now()

func main() {
	// initialize logging (can be controlled with LOG_LEVEL env: debug|info|warn|error|fatal)
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.Log.Level)
	logger.Infof("config loaded: env=%s mongo=%v redis=%v sessions=%s", cfg.Server.Environment, cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.Sessions.Store)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis is optional: sessions (SESSION_STORE=redis) and the shared rate limiter use it.
	rdb, err := database.ConnectRedis(ctx, cfg.Redis)
	if err != nil {
		logger.Warnf("redis unavailable, continuing without it: %v", err)
		rdb = nil
	}

	var mongoClient *mongo.Client
	var db *mongo.Database
	if cfg.MongoDB.URI != "" {
		mongoClient, err = database.ConnectMongoWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, 5, time.Second)
		if err != nil {
			logger.Warnf("continuing without MongoDB: %v", err)
		} else {
			db = mongoClient.Database(cfg.MongoDB.Database)
		}
	}

	codec, err := tokens.NewCodec(cfg.JWT)
	if err != nil {
		logger.Fatalf("token codec: %v", err)
	}

	store, err := sessions.OpenStore(ctx, cfg.Sessions, db, rdb)
	if err != nil {
		logger.Fatalf("session store: %v", err)
	}
	sessionsSvc := sessions.NewService(store, codec)

	var userRepo users.UserRepository = users.NewMemoryUserRepository()
	var messageRepo msgrepo.Repository = msgrepo.NewMemoryRepo()
	if db != nil {
		ur := users.NewMongoUserRepository(db.Collection("users"))
		if err := ur.EnsureIndexes(ctx); err != nil {
			logger.Warnf("%v", err)
		}
		mr := msgrepo.NewMongoRepo(db.Collection("messages"))
		if err := mr.EnsureIndexes(ctx); err != nil {
			logger.Warnf("%v", err)
		}
		userRepo, messageRepo = ur, mr
	} else {
		logger.Warnf("users and messages are kept in memory; data is lost on restart")
	}
	userSvc := users.NewService(userRepo)

	gateway := realtime.NewGateway(codec, realtime.Options{
		AllowOrigin:  middleware.OriginMatcher(cfg.Realtime.AllowedOrigins),
		AuthDisabled: cfg.Realtime.AuthDisabled,
		Debug:        cfg.Realtime.Debug,
	})
	messageSvc := msgservice.New(messageRepo, gateway, userSvc)

	if cfg.Server.Production() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:   cfg.Realtime.AllowedOrigins,
		AllowCredentials: true,
	}))

	r.GET(cfg.Realtime.Path, gateway.Handler())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	// readiness: 200 only when the configured backends answer
	r.GET("/ready", func(c *gin.Context) {
		pctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		ready := true
		deps := map[string]bool{"sessions": store != nil}
		if mongoClient != nil {
			deps["mongo"] = mongoClient.Ping(pctx, nil) == nil
			ready = ready && deps["mongo"]
		}
		if rdb != nil {
			deps["redis"] = rdb.Ping(pctx).Err() == nil
			ready = ready && deps["redis"]
		}
		ready = ready && deps["sessions"]
		status, code := "ready", http.StatusOK
		if !ready {
			status, code = "not_ready", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"status": status, "deps": deps, "uptime": time.Since(startTime).String()})
	})

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterSwagger(r)

	api := r.Group("/api")
	handlers.NewAuthHandler(cfg, userSvc, sessionsSvc, codec, rdb).Register(api)
	msghandler.RegisterMessageRoutes(api.Group("", middleware.RequireAuth(codec, cfg.Log.AuthDebug)), messageSvc)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Infof("listening on %s (realtime at %s)", addr, cfg.Realtime.Path)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down")

	gateway.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("http shutdown: %v", err)
	}
	if mongoClient != nil {
		_ = mongoClient.Disconnect(shutdownCtx)
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	logger.Infof("stopped")
}
