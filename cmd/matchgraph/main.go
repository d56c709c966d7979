package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/OFFIS-RIT/matchgraph/internal/config"
	"github.com/OFFIS-RIT/matchgraph/internal/pipeline"
	"github.com/OFFIS-RIT/matchgraph/internal/util"
	"github.com/OFFIS-RIT/matchgraph/pkg/logger"
	"github.com/OFFIS-RIT/matchgraph/pkg/logger/console"
)

func main() {
	var (
		configPath = flag.String("config", "", "optional YAML config file")
		input      = flag.String("input", "", "results workbook, local path or s3://bucket/key")
		sheet      = flag.String("sheet", "", "worksheet entry inside the workbook")
		edges      = flag.String("edges", "", "edge list output path")
		out        = flag.String("out", "", "HTML artifact output path")
		fromEdges  = flag.String("from-edges", "", "render from an existing edge list instead of the workbook")
	)
	flag.Parse()

	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
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

	overrides := map[*string]string{
		&cfg.Input: *input,
		&cfg.Sheet: *sheet,
		&cfg.Edges: *edges,
		&cfg.HTML:  *out,
	}
	for field, value := range overrides {
		if value != "" {
			*field = value
		}
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid flags", "err", err)
	}

	p, err := pipeline.New(ctx, cfg, *fromEdges)
	if err != nil {
		logger.Fatal("Failed to create pipeline", "err", err)
	}

	var res *pipeline.Result
	if *fromEdges != "" {
		res, err = p.FromEdges(ctx, *fromEdges)
	} else {
		res, err = p.Run(ctx)
	}
	if err != nil {
		logger.Fatal("Failed to build network", "err", err)
	}

	logger.Debug("Finished", "nodes", res.Nodes, "edges", res.Edges, "stages", res.Stages, "total", res.Total)
	fmt.Printf("wrote %d edges\n", res.Accepted)
}
