package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/davidkotlin/AImonitor/analyze"
	"github.com/davidkotlin/AImonitor/config"
	"github.com/davidkotlin/AImonitor/dispatch"
	"github.com/davidkotlin/AImonitor/notify"
	"github.com/davidkotlin/AImonitor/serve"
	"github.com/davidkotlin/AImonitor/util"
	"github.com/davidkotlin/AImonitor/video"
	"github.com/davidkotlin/AImonitor/video/sink"
	"github.com/davidkotlin/AImonitor/video/source"
)

var (
	configPath = flag.String("config", "", "Path to the JSON configuration file. Built-in defaults apply when empty.")
	envFile    = flag.String("env", ".env", "Dotenv file holding API keys and channel tokens.")
	port       = flag.Int("port", 5000, "Port for the callback endpoint, MJPEG streams, feed and metrics.")
	window     = flag.Bool("window", false, "Show a preview window. Press q in it to quit.")
)

func main() {
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := config.Load(ctx, *configPath); err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg := config.Get()
	if err := util.SetupLogging(util.LogOptions{Level: cfg.LogLevel, File: cfg.LogFile}); err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}

	secrets, err := config.LoadSecrets(*envFile)
	if err != nil {
		log.Fatalf("Failed to load secrets: %v", err)
	}
	reference, err := analyze.LoadReference(cfg.Analyzer.ReferenceImage)
	if err != nil {
		log.Fatalf("%v", err)
	}

	slot := util.NewSlot[*video.Event]("analysis")
	slot.OnDrop = func(e *video.Event) { e.Release() }

	feed := serve.NewFeed()
	notifier := &notify.Notifier{
		Listeners: []notify.NotifyListener{notify.Log{}, feed},
	}
	if secrets.LineChannelToken != "" || secrets.LineTargetID != "" {
		line, err := notify.NewLine(secrets.LineChannelToken, secrets.LineTargetID)
		if err != nil {
			log.Fatalf("Failed to set up LINE notifications: %v", err)
		}
		notifier.Listeners = append(notifier.Listeners, line)
	}
	var wp *notify.WebPush
	if secrets.DatabaseDSN != "" {
		db, err := gorm.Open(mysql.Open(secrets.DatabaseDSN), &gorm.Config{})
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		if wp, err = notify.NewWebPush(db, cfg.WebPushSubscriber); err != nil {
			log.Fatalf("Failed to set up web push: %v", err)
		}
		notifier.Listeners = append(notifier.Listeners, wp)
	}

	analyzerOpts := analyze.Options{
		Provider:  cfg.Analyzer.Provider,
		APIKey:    secrets.APIKey(cfg.Analyzer.Provider),
		Model:     cfg.Analyzer.Model,
		BaseURL:   cfg.Analyzer.BaseURL,
		Reference: reference,
		Prompt:    cfg.Analyzer.Prompt,
	}
	disp := dispatch.New(slot, func(ctx context.Context) (analyze.Analyzer, error) {
		return analyze.New(ctx, analyzerOpts)
	}, notifier)
	if t := cfg.AnalysisTimeout(); t > 0 {
		disp.Timeout = t
	}
	if t := cfg.NotifyTimeout(); t > 0 {
		disp.NotifyTimeout = t
	}

	mjpegServer := sink.NewMJPEGServer()
	live := mjpegServer.NewStream("live")
	debug := mjpegServer.NewStreamPool()
	defer debug.Close()

	quit := make(chan struct{})
	var quitOnce sync.Once

	det := video.NewDetector(cfg.Name, source.NewVideoCapture(cfg.URI, cfg.Warmup()), slot, cfg.Motion)
	det.Sinks = []sink.Sink{live}
	det.Debug = debug
	if *window {
		w := sink.NewWindow(cfg.Name)
		w.OnQuit = func() { quitOnce.Do(func() { close(quit) }) }
		det.Sinks = append(det.Sinks, w)
	}
	config.OnChange(func(c *config.Config) {
		det.SetParams(c.Motion)
	})

	errc := make(chan error, 2)
	go func() {
		if err := disp.Run(ctx); err != nil {
			errc <- fmt.Errorf("dispatcher: %w", err)
		}
	}()
	detCtx, stopDetector := context.WithCancel(ctx)
	defer stopDetector()
	go func() {
		// The preview window must be driven from a single OS thread.
		runtime.LockOSThread()
		if err := det.Run(detCtx); err != nil {
			errc <- fmt.Errorf("detector: %w", err)
		}
	}()

	routes := serve.Routes{
		MJPEG:   mjpegServer,
		Feed:    feed,
		WebPush: wp,
		Status: &serve.StatusServer{
			Name:           cfg.Name,
			Started:        time.Now(),
			Streams:        mjpegServer.Names,
			Drops:          slot.Drops,
			DetectorDone:   det.Done(),
			DispatcherDone: disp.Done(),
		},
	}
	if secrets.LineChannelSecret != "" {
		routes.Callback = &serve.Callback{ChannelSecret: secrets.LineChannelSecret}
	}
	accessLog := log.StandardLogger().WriterLevel(log.DebugLevel)
	defer accessLog.Close()
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", *port),
		Handler:           serve.NewRouter(routes, accessLog),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infof("Serving on port %d", *port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("http: %w", err)
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	exit := 0
	select {
	case sig := <-sigs:
		log.Infof("Caught signal %v", sig)
	case <-quit:
		log.Infof("Quit requested from preview window")
	case <-det.Done().Done():
		log.Infof("Detector finished")
	case err := <-errc:
		log.Errorf("Fatal: %v", err)
		exit = 1
	}

	shutdown(cfg, slot, disp, det, stopDetector)

	sctx, scancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer scancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warnf("HTTP server shutdown: %v", err)
	}
	if exit != 0 {
		os.Exit(exit)
	}
}

// shutdown stops the dispatcher through the slot, waiting for the event in
// progress and the one pending in the slot, then stops the detector. The
// detector may be blocked in a device read, so it is abandoned if it does not
// return in time.
func shutdown(cfg *config.Config, slot *util.Slot[*video.Event], disp *dispatch.Dispatcher, det *video.Detector, stopDetector context.CancelFunc) {
	grace := cfg.ShutdownTimeout()

	slot.Shutdown()
	wait := 2*(disp.Timeout+disp.NotifyTimeout) + grace
	if !disp.Done().WaitTimeout(wait) {
		log.Warnf("Dispatcher did not stop within %v", wait)
	}

	stopDetector()
	if !det.Done().WaitTimeout(grace) {
		log.Warnf("Detector did not stop within %v, abandoning it", grace)
	}
	log.Infof("Shutdown complete")
}
