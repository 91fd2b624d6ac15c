package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/rigdash/internal/archive"
	"github.com/nerrad567/rigdash/internal/chart"
	"github.com/nerrad567/rigdash/internal/control"
	"github.com/nerrad567/rigdash/internal/device"
	"github.com/nerrad567/rigdash/internal/errorlog"
	"github.com/nerrad567/rigdash/internal/export"
	"github.com/nerrad567/rigdash/internal/infrastructure/config"
	"github.com/nerrad567/rigdash/internal/infrastructure/database"
	"github.com/nerrad567/rigdash/internal/infrastructure/logging"
	"github.com/nerrad567/rigdash/internal/infrastructure/mqtt"
	"github.com/nerrad567/rigdash/internal/infrastructure/tsdb"
	"github.com/nerrad567/rigdash/internal/pintest"
	"github.com/nerrad567/rigdash/internal/poller"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
//
// Logger, Registry, Poller, Monitor and Session are required. The rest are
// optional; their routes answer 503 when absent.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Logger   *logging.Logger
	Registry *device.Registry
	Rig      device.Identifier
	Poller   *poller.Poller
	Overview *poller.Overview
	Monitor  *control.Monitor
	Session  *control.Session
	Pins     *pintest.Tester
	ErrorLog *errorlog.Panel
	Archive  *archive.Store
	Exporter *export.Exporter
	Image    *chart.ImageRenderer
	MQTT     *mqtt.Client
	TSDB     *tsdb.Client
	DB       *database.DB

	// Panel serves the browser console under /panel/ when set.
	Panel http.Handler

	// ExternalHub is used instead of a server-owned hub when set, so the
	// poller and monitor can broadcast through it before Start.
	ExternalHub *Hub
	Version     string
}

// Server is the console's HTTP API and WebSocket server.
type Server struct {
	cfg      config.APIConfig
	wsCfg    config.WebSocketConfig
	logger   *logging.Logger
	registry *device.Registry
	rig      device.Identifier
	poller   *poller.Poller
	overview *poller.Overview
	monitor  *control.Monitor
	session  *control.Session
	pins     *pintest.Tester
	errorLog *errorlog.Panel
	archive  *archive.Store
	exporter *export.Exporter
	image    *chart.ImageRenderer
	mqtt     *mqtt.Client
	tsdb     *tsdb.Client
	db       *database.DB
	panel    http.Handler
	version  string

	server      *http.Server
	hub         *Hub
	externalHub bool
	metrics     *promMetrics
	startTime   time.Time

	// ctx outlives requests. Plot sessions and pin watchers started over
	// HTTP run under it and stop on Close.
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger is required")
	case deps.Registry == nil:
		return nil, fmt.Errorf("device registry is required")
	case deps.Poller == nil:
		return nil, fmt.Errorf("poller is required")
	case deps.Monitor == nil || deps.Session == nil:
		return nil, fmt.Errorf("control monitor and session are required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		registry:  deps.Registry,
		rig:       deps.Rig,
		poller:    deps.Poller,
		overview:  deps.Overview,
		monitor:   deps.Monitor,
		session:   deps.Session,
		pins:      deps.Pins,
		errorLog:  deps.ErrorLog,
		archive:   deps.Archive,
		exporter:  deps.Exporter,
		image:     deps.Image,
		mqtt:      deps.MQTT,
		tsdb:      deps.TSDB,
		db:        deps.DB,
		panel:     deps.Panel,
		version:   deps.Version,
		startTime: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}

	if deps.ExternalHub != nil {
		s.hub = deps.ExternalHub
		s.externalHub = true
	} else {
		s.hub = NewHub(s.wsCfg, s.logger)
	}
	s.metrics = newPromMetrics(s)
	return s, nil
}

// Hub returns the server's WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins listening for HTTP connections in a background goroutine.
// Cancelling ctx has the same effect on background work as Close.
func (s *Server) Start(ctx context.Context) error {
	s.cancel() // drop the placeholder context from New
	s.ctx, s.cancel = context.WithCancel(ctx)

	if !s.externalHub {
		go s.hub.Run(s.ctx)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close stops background work and shuts the listener down, waiting up to
// ten seconds for in-flight requests.
func (s *Server) Close() error {
	s.cancel()
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
