package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/rigdash/internal/api"
	"github.com/nerrad567/rigdash/internal/archive"
	"github.com/nerrad567/rigdash/internal/chart"
	"github.com/nerrad567/rigdash/internal/control"
	"github.com/nerrad567/rigdash/internal/device"
	"github.com/nerrad567/rigdash/internal/errorlog"
	"github.com/nerrad567/rigdash/internal/export"
	"github.com/nerrad567/rigdash/internal/infrastructure/config"
	"github.com/nerrad567/rigdash/internal/infrastructure/database"
	"github.com/nerrad567/rigdash/internal/infrastructure/influxdb"
	"github.com/nerrad567/rigdash/internal/infrastructure/logging"
	"github.com/nerrad567/rigdash/internal/infrastructure/mqtt"
	"github.com/nerrad567/rigdash/internal/infrastructure/tsdb"
	"github.com/nerrad567/rigdash/internal/panel"
	"github.com/nerrad567/rigdash/internal/pintest"
	"github.com/nerrad567/rigdash/internal/poller"
	"github.com/nerrad567/rigdash/internal/republish"
	"github.com/nerrad567/rigdash/internal/rig"
	"github.com/nerrad567/rigdash/migrations"
)

// pruneInterval is how often archived samples past retention are deleted.
const pruneInterval = time.Hour

// application owns every long-lived component of the console. Nothing is
// kept in package globals; serve builds one, runs it and tears it down.
type application struct {
	cfg *config.Config
	log *logging.Logger

	rig      *rig.Client
	registry *device.Registry
	hub      *api.Hub
	image    *chart.ImageRenderer
	poller   *poller.Poller
	overview *poller.Overview
	monitor  *control.Monitor
	session  *control.Session
	pins     *pintest.Tester
	errorLog *errorlog.Panel
	exporter *export.Exporter

	db      *database.DB
	archive *archive.Store
	mqtt    *mqtt.Client
	influx  *influxdb.Client
	tsdb    *tsdb.Client

	// Republish adapters; nil when the backend is disabled.
	mqttOut   *republish.MQTT
	seriesOut []*republish.TimeSeries

	server *api.Server

	// closers run in reverse order on shutdown.
	closers []func()
}

// serve runs the dashboard until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config) error {
	log := logging.New(cfg.Logging, version)
	log.Info("starting rigdash",
		"version", version,
		"commit", commit,
		"build_date", date,
		"rig", cfg.Rig.BaseURL,
	)

	app := &application{cfg: cfg, log: log}
	defer app.close()

	if err := app.connect(ctx); err != nil {
		return err
	}
	if err := app.build(ctx); err != nil {
		return err
	}

	var wg sync.WaitGroup
	app.runBackground(ctx, &wg)

	if err := app.server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	if err := app.server.Close(); err != nil {
		log.Error("error closing API server", "error", err)
	}
	app.poller.Stop()
	<-app.poller.Done()
	if app.pins != nil {
		app.pins.Close()
	}
	wg.Wait()

	log.Info("rigdash stopped")
	return nil
}

// connect opens the rig client and every optional backend. A backend that
// is enabled but unreachable is fatal; a rig that is unreachable is not,
// since the console exists to show that the rig is down.
func (a *application) connect(ctx context.Context) error {
	client, err := rig.New(a.cfg.Rig)
	if err != nil {
		return fmt.Errorf("creating rig client: %w", err)
	}
	client.SetLogger(a.log.With("component", "rig"))
	a.rig = client

	if a.cfg.Database.Enabled {
		if err := a.openArchive(ctx); err != nil {
			return err
		}
	} else {
		a.log.Info("archive disabled")
	}

	if a.cfg.MQTT.Enabled {
		if err := a.connectMQTT(); err != nil {
			return err
		}
	} else {
		a.log.Info("MQTT disabled")
	}

	if a.cfg.InfluxDB.Enabled {
		influx, err := influxdb.Connect(a.cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		influx.SetOnError(func(err error) {
			a.log.Error("InfluxDB write error", "error", err)
		})
		a.influx = influx
		a.seriesOut = append(a.seriesOut, republish.NewTimeSeries(influx))
		a.onClose("InfluxDB", influx.Close)
		a.log.Info("InfluxDB connected",
			"url", a.cfg.InfluxDB.URL,
			"org", a.cfg.InfluxDB.Org,
			"bucket", a.cfg.InfluxDB.Bucket,
		)
	}

	if a.cfg.TSDB.Enabled {
		vm, err := tsdb.Connect(ctx, a.cfg.TSDB)
		if err != nil {
			return fmt.Errorf("connecting to TSDB: %w", err)
		}
		vm.SetOnError(func(err error) {
			a.log.Error("TSDB write error", "error", err)
		})
		a.tsdb = vm
		a.seriesOut = append(a.seriesOut, republish.NewTimeSeries(vm))
		a.onClose("TSDB", vm.Close)
		a.log.Info("TSDB connected", "url", a.cfg.TSDB.URL)
	}

	return nil
}

func (a *application) openArchive(ctx context.Context) error {
	db, err := database.Open(a.cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	a.onClose("database", db.Close)
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	a.db = db
	a.archive = archive.NewStore(db.DB)
	a.log.Info("archive ready", "path", a.cfg.Database.Path)
	return nil
}

func (a *application) connectMQTT() error {
	client, err := mqtt.Connect(a.cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(a.log.With("component", "mqtt"))
	client.SetOnConnect(func() {
		a.log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		a.log.Warn("MQTT disconnected", "error", err)
	})
	a.mqtt = client
	a.mqttOut = republish.NewMQTT(client, client.Topics())
	a.onClose("MQTT", client.Close)
	a.log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", a.cfg.MQTT.Broker.Host, a.cfg.MQTT.Broker.Port),
		"client_id", a.cfg.MQTT.Broker.ClientID,
	)
	return nil
}

// build creates the domain components and wires their change callbacks to
// the WebSocket hub, the archive and the republish adapters.
func (a *application) build(ctx context.Context) error {
	a.registry = device.NewRegistry()
	a.registry.SetLogger(a.log.With("component", "registry"))
	if res, err := a.registry.Discover(ctx, a.rig); err != nil {
		a.log.Warn("device discovery failed; retry from the console", "error", err)
	} else {
		a.log.Info("devices discovered",
			"sensors", len(res.Sensors),
			"actuators", len(res.Actuators),
			"running_time", res.RunningTime,
		)
	}

	a.hub = api.NewHub(a.cfg.WebSocket, a.log)

	a.image = chart.NewImageRenderer(a.cfg.Chart)
	a.poller = poller.New(a.rig, a.registry,
		chart.Multi{a.image, chart.NewHubRenderer(a.hub, api.ChannelPlot)},
		a.cfg.Poller)
	a.poller.SetLogger(a.log.With("component", "poller"))
	a.wireSinks()
	a.poller.OnStatus(a.pollerStatusChanged)

	if a.cfg.Poller.Overview.Enabled {
		a.overview = poller.NewOverview(a.rig,
			chart.NewHubRenderer(a.hub, api.ChannelOverview),
			a.cfg.Poller.Overview)
		a.overview.SetLogger(a.log.With("component", "overview"))
	}

	a.monitor = control.NewMonitor(a.rig, a.cfg.Control)
	a.monitor.SetLogger(a.log.With("component", "control"))
	a.monitor.OnChange(func(v control.View) { a.controlChanged(ctx, v) })
	a.session = control.NewSession(a.rig)
	a.session.SetLogger(a.log.With("component", "session"))

	if a.cfg.ErrorLog.Enabled {
		a.errorLog = errorlog.New(a.rig, a.cfg.ErrorLog)
		a.errorLog.SetLogger(a.log.With("component", "errorlog"))
		a.errorLog.OnChange(a.errorLogChanged)
	}

	if a.cfg.PinTest.Enabled {
		a.pins = pintest.New(a.rig, a.cfg.PinTest)
		a.pins.SetLogger(a.log.With("component", "pintest"))
	}

	a.exporter = export.New(a.rig)

	if a.mqtt != nil {
		if err := a.subscribeCommands(ctx); err != nil {
			return err
		}
	}

	server, err := api.New(api.Deps{
		Config:      a.cfg.API,
		WS:          a.cfg.WebSocket,
		Logger:      a.log.With("component", "api"),
		Registry:    a.registry,
		Rig:         a.rig,
		Poller:      a.poller,
		Overview:    a.overview,
		Monitor:     a.monitor,
		Session:     a.session,
		Pins:        a.pins,
		ErrorLog:    a.errorLog,
		Archive:     a.archive,
		Exporter:    a.exporter,
		Image:       a.image,
		MQTT:        a.mqtt,
		TSDB:        a.tsdb,
		DB:          a.db,
		Panel:       panel.Handler(a.cfg.API.PanelDir),
		ExternalHub: a.hub,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	a.server = server
	return nil
}

func (a *application) wireSinks() {
	if a.archive != nil {
		a.poller.AddSink(a.archive)
	}
	if a.mqttOut != nil {
		a.poller.AddSink(a.mqttOut)
	}
	for _, ts := range a.seriesOut {
		a.poller.AddSink(ts)
	}
}

// subscribeCommands lets other systems on the broker stop the rig.
// The emergency stop needs no control key.
func (a *application) subscribeCommands(ctx context.Context) error {
	topic := a.mqtt.Topics().Command("emergency-stop")
	err := a.mqtt.Subscribe(topic, 1, func(_ string, _ []byte) error {
		a.log.Warn("emergency stop requested over MQTT")
		if _, err := a.session.EmergencyStop(ctx); err != nil {
			return fmt.Errorf("emergency stop: %w", err)
		}
		if _, err := a.monitor.Poll(ctx); err != nil {
			a.log.Debug("control refresh after emergency stop failed", "error", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	return nil
}

// runBackground starts the pollers that run for the life of the process.
func (a *application) runBackground(ctx context.Context, wg *sync.WaitGroup) {
	wg.Go(func() { a.hub.Run(ctx) })
	wg.Go(func() { a.monitor.Run(ctx) })
	if a.errorLog != nil {
		wg.Go(func() { a.errorLog.Run(ctx) })
	}
	if a.overview != nil {
		wg.Go(func() { a.overview.Run(ctx) })
	}
	if a.archive != nil && a.cfg.Database.Retention > 0 {
		wg.Go(func() { a.pruneLoop(ctx) })
	}
}

func (a *application) pruneLoop(ctx context.Context) {
	retention := time.Duration(a.cfg.Database.Retention) * time.Hour
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		n, err := a.archive.Prune(ctx, retention)
		switch {
		case err != nil && ctx.Err() == nil:
			a.log.Error("pruning archive", "error", err)
		case n > 0:
			a.log.Info("archive pruned", "samples", n, "retention", retention)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (a *application) pollerStatusChanged(st poller.Status) {
	a.hub.Broadcast(api.ChannelPoller, st)
	if a.mqttOut != nil {
		if err := a.mqttOut.PollerStatus(st); err != nil {
			a.log.Debug("publishing poller status", "error", err)
		}
	}
}

func (a *application) controlChanged(ctx context.Context, v control.View) {
	a.hub.Broadcast(api.ChannelControl, v)
	if a.archive != nil {
		if err := a.archive.RecordTransition(ctx, v); err != nil && ctx.Err() == nil {
			a.log.Error("archiving control transition", "error", err)
		}
	}
	if a.mqttOut != nil {
		if err := a.mqttOut.ControlChanged(v); err != nil {
			a.log.Warn("publishing control state", "error", err)
		}
	}
	for _, ts := range a.seriesOut {
		//nolint:errcheck // buffered writer reports through its error callback
		ts.ControlChanged(v)
	}
}

func (a *application) errorLogChanged(s errorlog.Snapshot) {
	a.hub.Broadcast(api.ChannelErrorLog, s)
	if a.mqttOut != nil {
		if err := a.mqttOut.ErrorLogChanged(s); err != nil {
			a.log.Warn("publishing error log", "error", err)
		}
	}
}

func (a *application) onClose(name string, fn func() error) {
	a.closers = append(a.closers, func() {
		a.log.Info("closing " + name)
		if err := fn(); err != nil {
			a.log.Error("error closing "+name, "error", err)
		}
	})
}

func (a *application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
