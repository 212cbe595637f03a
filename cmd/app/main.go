package main

import (
	"log"

	"github.com/jbousquie/leontine/internal/bootstrap"
	"github.com/jbousquie/leontine/internal/logging"
)

func main() {
	logging.Init(logging.Config{Level: "info", Format: "text"})

	app, err := bootstrap.New()
	if err != nil {
		log.Fatalf("bootstrap app: %v", err)
	}

	if err := app.Run(); err != nil {
		log.Fatalf("run app: %v", err)
	}
}
