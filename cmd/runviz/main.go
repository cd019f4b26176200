package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"

	"github.com/runviz/runviz/config"
	"github.com/runviz/runviz/service"
)

var (
	port       = flag.Int("port", 7410, "Port to serve runviz clients on")
	configPath = flag.String("config", "", "Path to a runviz YAML config file")
	backendURL = flag.String("backend_url", "", "Experiment store base URL, overriding the config")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %s", err)
	}
	if *backendURL != "" {
		cfg.BackendURL = *backendURL
	}

	service, err := service.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create runviz service: %s", err)
	}

	mux := http.DefaultServeMux
	service.RegisterHandlers(mux)

	log.Printf("Serving runviz on :%d against %s", *port, cfg.BackendURL)
	if err := http.ListenAndServe(fmt.Sprintf(":%d", *port), mux); err != nil {
		log.Fatalf("Failed to serve: %s", err)
	}
}
