package main

import (
	"flag"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"paperwatch/internal/simbackend"
	"paperwatch/pkg/logging"
	"paperwatch/pkg/shutdown"
)

func main() {
	port := flag.String("port", "8000", "Listen port")
	stageDuration := flag.Duration("stage-duration", 2*time.Second, "Simulated duration of each agent stage")
	failAt := flag.String("fail-at", "", "Agent name to fail the pipeline at (for testing error handling)")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	jsonLog := flag.Bool("log-json", false, "Log in JSON format")
	logToFile := flag.Bool("log-file", false, "Also log to /var/log/paperwatch (falls back to ./logs)")
	flag.Parse()

	var logger *logging.Logger
	var err error
	if *logToFile {
		logger, err = logging.NewFileLogger("simbackend", logging.ParseLevel(*logLevel), *jsonLog)
		if err != nil {
			fmt.Printf("Failed to create file logger: %v\n", err)
			return
		}
	} else {
		logger = logging.NewLogger(logging.ParseLevel(*logLevel), *jsonLog)
	}

	store := simbackend.NewStore()
	pipeline := simbackend.NewPipeline(store, *stageDuration, logger.WithField("component", "pipeline"))
	if *failAt != "" {
		valid := false
		for _, name := range simbackend.AgentNames() {
			if name == *failAt {
				valid = true
				break
			}
		}
		if !valid {
			logger.Fatal("unknown --fail-at agent", map[string]interface{}{
				"agent": *failAt,
				"known": simbackend.AgentNames(),
			})
		}
		pipeline.FailAt = *failAt
	}

	exporter := simbackend.NewExporter(store)
	server := simbackend.NewServer(store, pipeline, logger.WithField("component", "api"), exporter)

	router := mux.NewRouter()
	server.RegisterRoutes(router)

	httpServer := &http.Server{
		Addr:    ":" + *port,
		Handler: exporter.Middleware(router),
	}

	mgr := shutdown.New(10 * time.Second)
	mgr.Register(shutdown.StopHTTPServer(httpServer, "simbackend"))
	mgr.Register(shutdown.CloseResource(logger, "logger"))

	go func() {
		logger.Info("simulated backend listening", map[string]interface{}{
			"port":           *port,
			"stage_duration": stageDuration.String(),
		})
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", map[string]interface{}{"error": err.Error()})
		}
	}()

	mgr.Wait()
	mgr.Shutdown()
}
