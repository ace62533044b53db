// Command tonwalk runs the client-side subscription/block-walking
// engine: submitting external messages to a TON-family node and waiting
// for the transactions that execute them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/urfave/cli.v1"

	"github.com/broxus/ton-subwalk/internal/appconfig"
	"github.com/broxus/ton-subwalk/internal/logging"
)

var (
	configFlag = cli.StringFlag{
		Name:  "config",
		Usage: "path to tonwalk.toml",
		Value: "./tonwalk.toml",
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "tonwalk"
	app.Usage = "subscribe to TON message execution over ADNL/RLDP"
	app.Flags = []cli.Flag{configFlag}
	app.Commands = []cli.Command{
		runCommand,
		sendCommand,
		statsCommand,
		keygenCommand,
		consoleCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "tonwalk:", err)
		os.Exit(1)
	}
}

func loadAppConfig(c *cli.Context) (appconfig.Config, error) {
	cfg, err := appconfig.Load(c.GlobalString(configFlag.Name))
	if err != nil {
		return appconfig.Config{}, err
	}
	logging.SetLevel(logging.ParseLevel(cfg.LogLevel))
	return cfg, nil
}

// signalContext returns a context canceled on SIGINT/SIGTERM.
func signalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx
}
