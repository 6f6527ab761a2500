package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/cleanstreak/litter-map-api/api/handlers"
	"github.com/cleanstreak/litter-map-api/config"
)

func main() {
	// local runs keep their settings in a .env file, deployed pods get real env vars
	_ = godotenv.Load()

	a := handlers.App{}
	a.Config = *config.New()

	if err := a.Initialize(); err != nil { //initialize database, scheduler and router
		log.Fatalf("failed to initialize: %v", err)
	}

	zap.S().Infow("litter-map-api is up and running",
		"port", a.Config.Port,
		"url", a.Config.BaseURL,
	)
	log.Fatal(http.ListenAndServe(fmt.Sprintf(":%v", a.Config.Port), a.Router))
}
