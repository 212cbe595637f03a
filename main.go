package main

import (
	"embed"
	"log"

	"github.com/jbousquie/leontine/internal/bootstrap"
	"github.com/jbousquie/leontine/internal/logging"
)

//go:embed frontend/index.html
var appAssets embed.FS

func main() {
	logging.Init(logging.Config{Level: "info", Format: "text"})

	app, err := bootstrap.NewWithAssets(appAssets)
	if err != nil {
		log.Fatalf("bootstrap app: %v", err)
	}

	if err := app.Run(); err != nil {
		log.Fatalf("run app: %v", err)
	}
}
