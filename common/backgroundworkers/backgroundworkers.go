package backgroundworkers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/safetyjim/safetyjim/common"
	"github.com/safetyjim/safetyjim/common/config"
	"goji.io"
	"goji.io/pat"
)

var ConfHTTPAddr = config.RegisterOption("jim.metrics_addr", "Address of the background worker http server serving /metrics and /health", ":6001")

var RESTServerMuxer *goji.Mux

var restServer *http.Server

var logger = common.GetFixedPrefixLogger("bgworkers")

// BackgroundWorkerPlugin runs until StopBackgroundWorker is called, which has to call wg.Done once it's stopped
type BackgroundWorkerPlugin interface {
	common.Plugin

	RunBackgroundWorker()
	StopBackgroundWorker(wg *sync.WaitGroup)
}

func init() {
	RESTServerMuxer = NewMux()
}

// NewMux returns the mux the worker http server uses, split out so it can be tested without listening
func NewMux() *goji.Mux {
	mux := goji.NewMux()
	mux.Handle(pat.Get("/metrics"), promhttp.Handler())
	mux.HandleFunc(pat.Get("/health"), func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return mux
}

func RunWorkers() {
	for _, p := range common.PluginsWith[BackgroundWorkerPlugin]() {
		logger.Info("Running background worker: ", p.PluginInfo().Name)
		go p.RunBackgroundWorker()
	}

	go runWebserver()
}

func StopWorkers(wg *sync.WaitGroup) {
	logger.Info("Shutting down http server...")
	if restServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		restServer.Shutdown(ctx)
		cancel()
	}

	for _, p := range common.PluginsWith[BackgroundWorkerPlugin]() {
		logger.Info("Stopping background worker: ", p.PluginInfo().Name)
		wg.Add(1)
		go p.StopBackgroundWorker(wg)
	}
}

func runWebserver() {
	addr := ConfHTTPAddr.GetString()
	if addr == "" {
		logger.Info("No metrics address configured, not starting the bgworker http server")
		return
	}

	logger.Info("Starting bgworker http server on ", addr)

	restServer = &http.Server{
		Handler: RESTServerMuxer,
		Addr:    addr,
	}

	err := restServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		logger.WithError(err).Error("Failed starting http server")
	}
}
