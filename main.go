package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/linesmerrill/counsel-relay-api/api/handlers"

	"go.uber.org/zap"

	"github.com/linesmerrill/counsel-relay-api/config"
)

func main() {
	a := handlers.App{}
	a.Config = *config.New()

	// initialize stores, core and router
	if err := a.Initialize(); err != nil {
		log.Fatal(err)
	}
	defer a.Close(context.Background())

	if err := a.Scheduler.Start(); err != nil {
		zap.S().With(err).Error("failed to start export scheduler")
	}

	zap.S().Infow("counsel-relay-api is up and running",
		"port", a.Config.Port,
		"url", a.Config.BaseURL,
		"store", a.Config.Store,
	)
	log.Fatal(http.ListenAndServe(fmt.Sprintf(":%v", a.Config.Port), a.Router))
}
