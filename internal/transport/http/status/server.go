package statushttp

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"hyperfeed/internal/ingest"
	"hyperfeed/internal/logger"
	"hyperfeed/internal/store/gormstore"

	"github.com/gin-gonic/gin"
)

// StatusProvider is the read-only view the HTTP layer has into the
// running ingestion service.
type StatusProvider interface {
	Status() ingest.Status
}

// Server exposes the operational read API: pipeline status, the symbol
// catalog, per-symbol candles, health rows and ingestion traces.
type Server struct {
	addr   string
	router *gin.Engine
}

type ServerConfig struct {
	Addr    string
	Service StatusProvider
	Store   *gormstore.Store
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Service == nil || cfg.Store == nil {
		return nil, errors.New("status http server requires service and store")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9980"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := &apiRouter{service: cfg.Service, store: cfg.Store}
	api.register(router.Group("/api"))

	return &Server{addr: cfg.Addr, router: router}, nil
}

type apiRouter struct {
	service StatusProvider
	store   *gormstore.Store
}

func (r *apiRouter) register(group *gin.RouterGroup) {
	group.GET("/status", r.handleStatus)
	group.GET("/symbols", r.handleSymbols)
	group.GET("/symbols/:symbol/candles", r.handleCandles)
	group.GET("/health", r.handleHealth)
	group.GET("/traces", r.handleTraces)
}

func (r *apiRouter) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, r.service.Status())
}

func (r *apiRouter) handleSymbols(c *gin.Context) {
	symbols, err := r.store.TrackedSymbols(c.Request.Context())
	if err != nil {
		logger.Errorf("[api] symbols failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbols": symbols, "count": len(symbols)})
}

func (r *apiRouter) handleCandles(c *gin.Context) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol required"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "500"))
	if limit <= 0 {
		limit = 500
	}
	if limit > 5000 {
		limit = 5000
	}
	candles, err := r.store.CandlesForSymbol(c.Request.Context(), symbol, limit)
	if err != nil {
		logger.Errorf("[api] candles failed ip=%s symbol=%s err=%v", c.ClientIP(), symbol, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "candles": candles, "count": len(candles)})
}

func (r *apiRouter) handleHealth(c *gin.Context) {
	rows, err := r.store.SymbolHealthRows(c.Request.Context())
	if err != nil {
		logger.Errorf("[api] health failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"health": rows, "count": len(rows)})
}

func (r *apiRouter) handleTraces(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit > 500 {
		limit = 500
	}
	traces, err := r.store.RecentTraces(c.Request.Context(), limit)
	if err != nil {
		logger.Errorf("[api] traces failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"traces": traces, "count": len(traces)})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path
		c.Next()
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s",
			method, path, c.Writer.Status(), c.ClientIP(), time.Since(start))
	}
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until ctx ends or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
