package main

import (
	"flag"

	"github.com/OFFIS-RIT/matchgraph/internal/config"
	"github.com/OFFIS-RIT/matchgraph/internal/server"
	"github.com/OFFIS-RIT/matchgraph/internal/util"
	"github.com/OFFIS-RIT/matchgraph/pkg/logger"
	"github.com/OFFIS-RIT/matchgraph/pkg/logger/console"
)

func main() {
	configPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("Failed to load config", "err", err)
	}
	if cfg.Debug && !debug {
		logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{Debug: true}))
	}

	server.Init(cfg)
}
