package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/projexia/projexia/docs"
	"github.com/projexia/projexia/internal/api"
	"github.com/projexia/projexia/internal/core/ports"
	"github.com/projexia/projexia/internal/core/service"
	"github.com/projexia/projexia/internal/infrastructure/cache"
	"github.com/projexia/projexia/internal/infrastructure/db/mongo"
	"github.com/projexia/projexia/internal/infrastructure/db/redis"
	"github.com/projexia/projexia/internal/infrastructure/http/handlers"
	"github.com/projexia/projexia/internal/infrastructure/oauth"
	"github.com/projexia/projexia/internal/infrastructure/queue"
	"github.com/projexia/projexia/internal/pkg/config"
	"github.com/projexia/projexia/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

//	@title			Projexia API
//	@version		1.0
//	@description	Projects, members, Kanban tasks and comments.
//	@BasePath		/

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
func main() {
	cfg := config.Load()

	log := logger.Init(logger.Options{
		Level:       cfg.LogLevel,
		Pretty:      cfg.IsDevelopment(),
		Service:     "projexia",
		Environment: cfg.Env,
	})

	ctx := context.Background()

	// --- Storage ---
	mongoClient, db, err := mongo.Connect(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to mongo")
	}

	users := mongo.NewUserRepository(db)
	projects := mongo.NewProjectRepository(db)
	members := mongo.NewMemberRepository(db)
	tasks := mongo.NewTaskRepository(db)
	comments := mongo.NewCommentRepository(db)
	activities := mongo.NewActivityRepository(db)

	if err := mongo.EnsureIndexes(ctx, users, projects, members, tasks, comments, activities); err != nil {
		log.Fatal().Err(err).Msg("failed to create indexes")
	}
	tx := mongo.NewTxRunner(mongoClient, cfg.Mongo.Transactions)

	rdb, err := redis.Connect(ctx, redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	blacklist := redis.NewTokenBlacklist(rdb)
	idempotency := redis.NewIdempotencyStore(rdb)

	// --- Services ---
	views := cache.NewProjectCache(cfg.Cache.Size, cfg.Cache.TTL)
	membership := service.NewMembershipService(projects, members)

	activitySvc := service.NewActivityService(activities, membership, log)
	dispatcher := queue.NewDispatcher(cfg.Activity.Workers, activitySvc, log)
	dispatcher.Start()

	authSvc := service.NewAuthService(users, blacklist, cfg.JWTSecret, cfg.TokenTTL, log)

	var oauthSvc ports.OAuthService
	if cfg.Google.Enabled() {
		provider := oauth.NewGoogleProvider(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RedirectURL)
		oauthSvc = service.NewOAuthService(provider, redis.NewStateStore(rdb), users, authSvc)
	} else {
		log.Warn().Msg("GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET not set, google sign-in disabled")
	}

	projectSvc := service.NewProjectService(service.ProjectDeps{
		Projects:    projects,
		Members:     members,
		Tasks:       tasks,
		Comments:    comments,
		Activities:  activities,
		Membership:  membership,
		Tx:          tx,
		Idempotency: idempotency,
		Cache:       views,
		Activity:    dispatcher,
	}, log)

	taskSvc := service.NewTaskService(service.TaskDeps{
		Tasks:       tasks,
		Comments:    comments,
		Members:     members,
		Membership:  membership,
		Tx:          tx,
		Idempotency: idempotency,
		Cache:       views,
		Activity:    dispatcher,
	}, log)

	// --- HTTP ---
	e := api.NewRouter(api.Deps{
		Config:     cfg,
		Log:        log,
		Auth:       authSvc,
		OAuth:      oauthSvc,
		Projects:   projectSvc,
		Tasks:      taskSvc,
		Activity:   activitySvc,
		Membership: membership,
		Blacklist:  blacklist,
		Checks: map[string]handlers.Check{
			"mongo": handlers.MongoCheck(db),
			"redis": handlers.RedisCheck(rdb),
		},
	})

	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server starting")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	// Handlers are done publishing; drain what is queued before closing storage.
	if err := dispatcher.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("activity dispatcher did not drain")
	}
	views.Purge()
	if err := rdb.Close(); err != nil {
		log.Error().Err(err).Msg("redis close")
	}
	if err := mongoClient.Disconnect(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("mongo disconnect")
	}
	log.Info().Msg("server stopped")
}
