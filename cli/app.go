package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"yukti-backend/analyze"
	"yukti-backend/assessment"
	"yukti-backend/config"
	"yukti-backend/conn"
	"yukti-backend/dailylog"
	"yukti-backend/export"
	"yukti-backend/gemini"
	"yukti-backend/history"
	"yukti-backend/meds"
	"yukti-backend/migrations"
	"yukti-backend/models"
	"yukti-backend/openai"
	"yukti-backend/quota"
	"yukti-backend/risk"
	"yukti-backend/stats"
	"yukti-backend/store"
)

// App holds every service of one process.
type App struct {
	Config     config.Config
	Logger     *zap.Logger
	KV         store.KV
	Invoker    *models.Invoker
	Assessment *assessment.Service
	History    *history.Service
	Meds       *meds.Service
	Logs       *dailylog.Service
	Pipeline   *analyze.Pipeline
	Quota      *quota.Validator
}

// Build wires the services over an opened store and model tiers.
func Build(cfg config.Config, logger *zap.Logger, kv store.KV, table risk.Table, tiers []models.Tier) (*App, error) {
	inv, err := models.NewInvoker(logger, tiers...)
	if err != nil {
		return nil, err
	}
	a := &App{
		Config:     cfg,
		Logger:     logger,
		KV:         kv,
		Invoker:    inv,
		Assessment: assessment.NewService(kv, table),
		History:    history.New(kv),
		Meds:       meds.NewService(kv),
		Logs:       dailylog.NewService(kv),
		Quota:      quota.NewValidator(kv, cfg.DailyAnalysisLimit, logger),
	}
	a.Pipeline = analyze.NewPipeline(inv, a.History, a.Meds, a.Assessment, logger)
	return a, nil
}

// Open connects the configured store and model provider and builds the App.
// The returned func releases the connections.
func Open(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, func(), error) {
	table := risk.Default()
	if cfg.ScoringFile != "" {
		t, err := risk.LoadTable(cfg.ScoringFile)
		if err != nil {
			return nil, nil, err
		}
		table = t
	}

	kv, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	tiers, err := openTiers(ctx, cfg)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	app, err := Build(cfg, logger, kv, table, tiers)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	logger.Info("app ready",
		zap.String("store", cfg.StoreDriver),
		zap.String("provider", cfg.Provider),
		zap.Strings("tiers", app.Invoker.Tiers()))
	return app, closeStore, nil
}

func openStore(ctx context.Context, cfg config.Config) (store.KV, func(), error) {
	switch cfg.StoreDriver {
	case "", "memory":
		return store.NewMemory(), func() {}, nil
	case "redis":
		client, err := conn.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return store.NewRedis(client, cfg.Redis.Namespace), func() { _ = client.Close() }, nil
	case "mysql":
		db, err := conn.NewMySQL(cfg.MySQL)
		if err != nil {
			return nil, nil, fmt.Errorf("mysql: %w", err)
		}
		if err := migrations.Migrate(db); err != nil {
			db.Close()
			return nil, nil, err
		}
		return store.NewMySQL(db), func() { _ = db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}

func openTiers(ctx context.Context, cfg config.Config) ([]models.Tier, error) {
	switch cfg.Provider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, errors.New("OPENAI_API_KEY is required for the openai provider")
		}
		return openai.Tiers(cfg.OpenAIAPIKey, cfg.PrimaryModel, cfg.SecondaryModel), nil
	default:
		client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey)
		if err != nil {
			return nil, err
		}
		return gemini.Tiers(client, cfg.PrimaryModel, cfg.SecondaryModel), nil
	}
}

// Router registers every HTTP surface of the app.
func (a *App) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.MaxMultipartMemory = a.Config.MaxUploadBytes

	analyze.NewHandler(a.Pipeline, a.Config.AnalyzeTimeout, a.Config.MaxUploadBytes, a.Logger).
		RegisterRoutes(r.Group("", a.Quota.Middleware()))
	assessment.NewHandler(a.Assessment).RegisterRoutes(r)
	history.NewHandler(a.History).RegisterRoutes(r)
	meds.NewHandler(a.Meds).RegisterRoutes(r)
	dailylog.NewHandler(a.Logs, a.Meds).RegisterRoutes(r)
	stats.NewHandler(a.Assessment, a.Meds, a.Logs, a.History).RegisterRoutes(r)
	export.NewHandler(a.Meds, a.Logs, a.Logger).RegisterRoutes(r)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "provider": a.Config.Provider, "tiers": a.Invoker.Tiers()})
	})
	r.GET("/quota", func(c *gin.Context) {
		left, err := a.Quota.Remaining(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"field": quota.Field, "limit": a.Config.DailyAnalysisLimit, "remaining": left})
	})
	r.POST("/reset", func(c *gin.Context) {
		if err := store.Reset(c.Request.Context(), a.KV); err != nil {
			a.Logger.Error("reset failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		a.Logger.Warn("all patient data cleared")
		c.JSON(http.StatusOK, gin.H{"status": "cleared"})
	})
	return r
}
