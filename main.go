package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"GoldPledge/internal/admin"
	"GoldPledge/internal/auth"
	"GoldPledge/internal/calc/batch"
	"GoldPledge/internal/calc/importer"
	"GoldPledge/internal/calc/loan"
	"GoldPledge/internal/calc/recommend"
	"GoldPledge/internal/calc/report"
	"GoldPledge/internal/config"
	"GoldPledge/internal/repo"
	"GoldPledge/internal/share"
)

var wg sync.WaitGroup

func CORS(mux *mux.Router) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		mux.ServeHTTP(w, r)
	})
}

func HandleList(mux *mux.Router, cfg *config.Config, store repo.Repository, logger *logrus.Logger) {
	authEnv := &auth.Authenv{JWTkey: []byte(cfg.TokenKey), Repo: store, Log: logger}
	limiter := auth.NewIPRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	adminOnly := func(h http.HandlerFunc) http.Handler {
		return authEnv.AuthMiddleware(auth.RequireAdmin(h))
	}

	svc := loan.NewService(store, logger)
	var mailer share.Sender
	if cfg.MailEnabled() {
		mailer = share.NewMailer(cfg, logger)
	}

	loanH := &loan.Handler{Svc: svc, Log: logger}
	batchH := &batch.Handler{Svc: svc, Log: logger}
	reportH := &report.Handler{Calc: svc, Log: logger}
	recommendH := &recommend.Handler{Schemes: store, Calc: svc, Log: logger}
	shareH := &share.Handler{Calc: svc, Mail: mailer, Log: logger}
	ratesH := &admin.RatesHandler{Repo: store, Log: logger}
	usersH := &admin.UsersHandler{Repo: store, Log: logger}
	importH := &importer.Handler{Repo: store, Log: logger}

	api := mux.PathPrefix("/api").Subrouter()
	api.Use(limiter.LimitMiddleware)

	api.HandleFunc("/login", authEnv.AuthHandler).Methods("POST")
	api.HandleFunc("/register", authEnv.RegisterHandler).Methods("POST")
	api.HandleFunc("/logout", authEnv.LogoutHandler).Methods("POST")
	api.Handle("/me", authEnv.AuthMiddleware(http.HandlerFunc(authEnv.MeHandler))).Methods("GET")

	api.HandleFunc("/calculate/by-amount", loanH.ByAmount).Methods("POST")
	api.HandleFunc("/calculate/by-weight", loanH.ByWeight).Methods("POST")
	api.HandleFunc("/calculate", loanH.Calc).Methods("POST")
	api.HandleFunc("/calculate/batch", batchH.Calc).Methods("POST")
	api.HandleFunc("/calculate/report", reportH.Generate).Methods("POST")
	api.HandleFunc("/calculate/compare", recommendH.Compare).Methods("POST")
	api.Handle("/calculate/share", authEnv.OptionalAuth(http.HandlerFunc(shareH.Share))).Methods("POST")

	api.HandleFunc("/gold-rates", ratesH.ListGoldRates).Methods("GET")
	api.Handle("/gold-rates", adminOnly(ratesH.UpsertGoldRate)).Methods("POST")
	api.Handle("/gold-rates/import", adminOnly(importH.Import)).Methods("POST")
	api.Handle("/gold-rates/export", adminOnly(importH.Export)).Methods("GET")
	api.Handle("/gold-rates/{id:[0-9]+}", adminOnly(ratesH.DeleteGoldRate)).Methods("DELETE")

	api.HandleFunc("/interest-schemes", ratesH.ListSchemes).Methods("GET")
	api.Handle("/interest-schemes", adminOnly(ratesH.CreateScheme)).Methods("POST")
	api.Handle("/interest-schemes/{id:[0-9]+}", adminOnly(ratesH.UpdateScheme)).Methods("PUT")
	api.Handle("/interest-schemes/{id:[0-9]+}", adminOnly(ratesH.DeleteScheme)).Methods("DELETE")

	usersApi := api.PathPrefix("/users").Subrouter()
	usersApi.Use(authEnv.AuthMiddleware, auth.RequireAdmin)
	usersApi.HandleFunc("", usersH.List).Methods("GET")
	usersApi.HandleFunc("", usersH.Create).Methods("POST")
	usersApi.HandleFunc("/{id:[0-9]+}", usersH.Update).Methods("PUT")
	usersApi.HandleFunc("/{id:[0-9]+}", usersH.Delete).Methods("DELETE")
}

// openStore picks the backing store and wraps it with the rate cache. The
// returned cleanup closes whatever was opened.
func openStore(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (repo.Repository, func(), error) {
	var (
		store repo.Repository
		db    *sql.DB
	)
	if cfg.Store == "memory" {
		mem := repo.NewMemoryRepository()
		if err := repo.SeedDefaults(ctx, mem); err != nil {
			return nil, nil, err
		}
		store = mem
		logger.Warn("Using in-memory store, data is lost on restart")
	} else {
		if cfg.DatabaseURL == "" {
			return nil, nil, errors.New("DATABASE_URL missing")
		}
		var err error
		if db, err = repo.OpenDB(ctx, cfg.DatabaseURL); err != nil {
			return nil, nil, err
		}
		pg := repo.NewPostgresRepository(db)
		if err := repo.SeedDefaults(ctx, pg); err != nil {
			db.Close()
			return nil, nil, err
		}
		store = pg
	}

	var cache repo.Cache = repo.NewMemoryCache()
	var redisCache *repo.RedisCache
	if cfg.RedisAddr != "" {
		redisCache = repo.NewRedisCache(cfg.RedisAddr)
		if err := redisCache.Ping(ctx); err != nil {
			logger.WithError(err).Warn("Redis unavailable, falling back to in-process cache")
			redisCache.Close()
			redisCache = nil
		} else {
			cache = redisCache
		}
	}

	cleanup := func() {
		if redisCache != nil {
			redisCache.Close()
		}
		if db != nil {
			db.Close()
		}
	}
	return repo.NewCachedRepository(store, cache, cfg.CacheTTL, logger), cleanup, nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(lvl)
	} else {
		logger.Warnf("Unknown LOG_LEVEL %q, using info", cfg.LogLevel)
	}

	store, cleanup, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to open store: %v", err)
	}
	defer cleanup()

	if err := auth.EnsureAdmin(ctx, store, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		logger.Fatalf("Failed to bootstrap admin: %v", err)
	}

	mux := mux.NewRouter()
	HandleList(mux, cfg, store, logger)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           CORS(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Infof("Starting server on :%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("Server error: %v", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server shutdown error: %v", err)
	}
	wg.Wait()
	logger.Info("Server stopped")
}
