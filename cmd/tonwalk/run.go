package main

import (
	"gopkg.in/urfave/cli.v1"

	"github.com/broxus/ton-subwalk/internal/logging"
	"github.com/broxus/ton-subwalk/internal/statussvc"
)

var runCommand = cli.Command{
	Name:  "run",
	Usage: "resolve the configured peer and run the subscription engine until interrupted",
	Action: func(c *cli.Context) error {
		cfg, err := loadAppConfig(c)
		if err != nil {
			return err
		}

		ctx := signalContext()

		eng, err := buildEngine(ctx, cfg)
		if err != nil {
			return err
		}
		defer eng.Close()

		status := statussvc.New()
		go func() {
			if err := status.Serve(cfg.StatusListenAddr); err != nil {
				logging.Warn("status service stopped", "err", err)
			}
		}()
		status.SetServing(true)

		logging.Info("tonwalk running", "peer_id", cfg.PeerID, "status_addr", cfg.StatusListenAddr)
		<-ctx.Done()

		logging.Info("shutting down")
		status.SetServing(false)
		status.Stop()
		return nil
	},
}
