package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-hclog"

	"github.com/gridllm/gridllm/command/agent"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var configPath string
	flagConf := &agent.Config{}

	flags := flag.NewFlagSet("gridllm", flag.ContinueOnError)
	flags.StringVar(&configPath, "config", "", "Path to a TOML config file")
	flags.StringVar(&flagConf.BindAddr, "bind", "", "Address to bind the HTTP server to")
	flags.IntVar(&flagConf.Port, "port", 0, "Port for the HTTP server")
	flags.StringVar(&flagConf.LogLevel, "log-level", "", "Log level (TRACE, DEBUG, INFO, WARN, ERROR)")
	flags.StringVar(&flagConf.Redis.Addr, "redis-addr", "", "Address of the redis backend")
	flags.BoolVar(&flagConf.DevMode, "dev", false, "Run with an in-memory store")
	flags.BoolVar(&flagConf.EnableDebug, "debug", false, "Enable the pprof endpoints")
	if err := flags.Parse(args); err != nil {
		return 1
	}

	config := agent.DefaultConfig()
	if configPath != "" {
		fileConf, err := agent.LoadConfigFile(configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		config = config.Merge(fileConf)
	}
	config = config.Merge(flagConf)

	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "gridllm",
		Level: hclog.LevelFromString(config.LogLevel),
	})

	a, err := agent.NewAgent(config, logger)
	if err != nil {
		logger.Error("failed to start agent", "error", err)
		return 1
	}

	srv, err := agent.NewHTTPServer(a, config)
	if err != nil {
		logger.Error("failed to start http server", "error", err)
		a.Shutdown()
		return 1
	}
	logger.Info("gridllm coordinator started", "addr", srv.Addr, "dev_mode", config.DevMode)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("caught signal", "signal", sig)

	srv.Shutdown()
	if err := a.Shutdown(); err != nil {
		logger.Error("error during shutdown", "error", err)
		return 1
	}
	return 0
}
