package core

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"

	"github.com/photarium/photarium/src/photariumd/api"
	"github.com/photarium/photarium/src/photariumd/auth"
	"github.com/photarium/photarium/src/photariumd/db"
	"github.com/photarium/photarium/src/photariumd/db/migrations"
	"github.com/photarium/photarium/src/photariumd/gallery"
	"github.com/photarium/photarium/src/photariumd/security"
	"github.com/photarium/photarium/src/photariumd/storage"
)

// Server holds the HTTP server instance and configuration
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	database   *db.Database
	manager    *storage.Manager
	api        *api.API
}

// NewServer creates a new Server instance
func NewServer(database *db.Database, configRepo *db.ProviderConfigRepository) *Server {
	// Set Gin mode based on log level
	if viper.GetString("log.level") == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(ginLogger())

	// Initialize auth components
	authRepo := auth.NewRepository(database)
	userManager := auth.NewUserManager(authRepo)
	jwtService := auth.NewJWTService(auth.DefaultJWTConfig(), authRepo, database)

	// Credential lifecycle: renewal notices go to the log, throttled by
	// the lifecycle itself
	storage.SetLogger(log)
	gallery.SetLogger(log)
	lifecycle := storage.NewLifecycle(func(n storage.RenewalNotice) {
		log.Warn("Storage provider needs re-authorization",
			"provider", n.Provider,
			"message", n.Message,
			"issued_at", n.IssuedAt,
		)
	})
	manager := storage.NewManager(configRepo, lifecycle)

	// Create API instance with all dependencies
	api.SetLogger(log)
	api.SetVersionInfo(VersionInfo)
	apiInstance := api.New(api.Config{
		AlbumRepo:   db.NewAlbumRepository(database),
		PhotoRepo:   db.NewPhotoRepository(database),
		GroupRepo:   db.NewGroupRepository(database),
		ConfigRepo:  configRepo,
		Manager:     manager,
		UserManager: userManager,
		JWTService:  jwtService,
		RateLimit: api.RateLimitConfig{
			Enabled:            viper.GetBool("security.rate_limit.enabled"),
			AuthRequestsPerMin: viper.GetInt("security.rate_limit.auth_per_min"),
			APIRequestsPerMin:  viper.GetInt("security.rate_limit.api_per_min"),
			FileRequestsPerMin: viper.GetInt("security.rate_limit.file_per_min"),
			TrustProxy:         viper.GetBool("security.rate_limit.trust_proxy"),
		},
	})

	// Register all routes
	apiInstance.RegisterRoutes(router)

	return &Server{
		router:   router,
		database: database,
		manager:  manager,
		api:      apiInstance,
	}
}

// Run starts the HTTP server
func (s *Server) Run() error {
	bind := viper.GetString("server.bind")
	port := viper.GetInt("server.port")
	addr := fmt.Sprintf("%s:%d", bind, port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errChan := make(chan error, 1)

	go func() {
		log.Info("Starting photariumd server", "address", addr)

		if statuses, err := s.manager.Statuses(); err == nil {
			for _, st := range statuses {
				log.Info("Storage provider configured", "provider", st.Provider, "enabled", st.Enabled, "location", st.Location)
			}
		}

		tlsEnabled := viper.GetBool("server.tls.enabled")
		var err error
		if tlsEnabled {
			err = s.httpServer.ListenAndServeTLS(
				viper.GetString("server.tls.cert_path"),
				viper.GetString("server.tls.key_path"),
			)
		} else {
			err = s.httpServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	// Wait for interrupt signal or error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		log.Info("Received signal, shutting down", "signal", sig)
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.api.Stop()

	log.Info("Server stopped gracefully")
	return nil
}

// corsMiddleware returns a gin middleware for handling CORS
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Subject-Token")
			c.Header("Access-Control-Expose-Headers", "X-Subject-Token")
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// ginLogger returns a gin middleware for logging requests
func ginLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		method := c.Request.Method

		if query != "" {
			path = path + "?" + query
		}

		log.Debug("HTTP request",
			"status", status,
			"method", method,
			"path", path,
			"latency", latency,
			"client_ip", c.ClientIP(),
		)
	}
}

// seedLocalProvider writes an enabled local provider configuration from the
// CLI/config value when no configuration exists yet, so a fresh install can
// store photos without touching the provider API first.
func seedLocalProvider(configRepo *db.ProviderConfigRepository) {
	if _, err := configRepo.GetProviderConfig(storage.Local); err == nil {
		return
	}

	payload, err := json.Marshal(storage.LocalConfig{
		BasePath: viper.GetString("storage.local.path"),
	})
	if err != nil {
		return
	}

	rec := &storage.Record{
		ProviderID: storage.Local,
		Name:       "Local disk",
		Enabled:    true,
		Config:     payload,
		UpdatedAt:  time.Now(),
	}
	if err := configRepo.Upsert(rec); err != nil {
		log.Warn("Failed to seed local provider configuration", "error", err)
		return
	}
	log.Info("Seeded local provider configuration", "base_path", viper.GetString("storage.local.path"))
}

// runServer is called by the root command to start the server
func runServer() error {
	log.Info("photariumd starting",
		"version", VersionInfo.Version,
		"build_date", VersionInfo.BuildDate,
		"log_output", log.Output(),
	)

	// Initialize database
	dbPath := viper.GetString("database.path")
	log.Info("Initializing database", "persist_path", dbPath)

	migrations.SetLogger(log)

	database, err := db.New(db.Config{
		PersistPath: dbPath,
		LoadOnStart: true,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	// Master key encrypts provider secrets at rest
	secrets, err := security.NewSecretManager(viper.GetString("security.master_key_path"))
	if err != nil {
		return fmt.Errorf("failed to initialize secret manager: %w", err)
	}

	configRepo := db.NewProviderConfigRepository(database, secrets)
	seedLocalProvider(configRepo)

	server := NewServer(database, configRepo)

	// Run server (blocks until shutdown signal)
	err = server.Run()

	// Ensure database is persisted on shutdown
	log.Info("Persisting database to disk")
	if dbErr := database.Shutdown(); dbErr != nil {
		log.Error("Failed to persist database", "error", dbErr)
		if err == nil {
			err = dbErr
		}
	} else {
		log.Info("Database persisted successfully")
	}

	return err
}
