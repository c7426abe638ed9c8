package main

import (
	"log"

	"github.com/kataras/iris/v12"

	"github.com/example/gochatroom/internal/config"
	"github.com/example/gochatroom/internal/logger"
	"github.com/example/gochatroom/internal/server"
)

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.Server.Debug)

	app := iris.New()
	server.RegisterRoutes(app, cfg)

	addr := cfg.Server.Addr()
	log.Printf("chat server listening on %s", addr)
	if err := app.Run(iris.Addr(addr)); err != nil {
		log.Fatalf("failed to run chat server: %v", err)
	}
}
