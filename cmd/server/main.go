package main

import (
	"flag"
	"log"
	"net/http"

	"cybertodo/internal/app"
	"cybertodo/internal/config"
	"cybertodo/internal/serverapp"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "config file (optional)")
	flag.Parse()

	cfg, err := config.LoadOptional(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	cfg.ApplyEnv()

	a, err := app.Open(cfg, app.Options{})
	if err != nil {
		log.Fatalf("open store: %v", err)
	}

	handler, err := serverapp.NewHandler(serverapp.Options{App: a})
	if err != nil {
		log.Fatalf("build server: %v", err)
	}

	a.Logger.Info("listening", map[string]any{
		"addr":    cfg.Server.Addr,
		"backend": cfg.Storage.Backend,
		"tasks":   a.Store.Len(),
	})
	log.Fatal(http.ListenAndServe(cfg.Server.Addr, handler))
}
