package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/urfave/cli.v1"

	"github.com/broxus/ton-subwalk/internal/logging"
)

var sendCommand = cli.Command{
	Name:      "send",
	Usage:     "submit an external message and wait for the transaction that executes it",
	ArgsUsage: "<dst> <payload-file> <expire-in-seconds>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 3 {
			return fmt.Errorf("send: want <dst> <payload-file> <expire-in-seconds>, got %d args", c.NArg())
		}
		dstArg, payloadPath, expireArg := c.Args().Get(0), c.Args().Get(1), c.Args().Get(2)

		cfg, err := loadAppConfig(c)
		if err != nil {
			return err
		}

		dst, err := parseAddress(dstArg)
		if err != nil {
			return err
		}
		payload, err := os.ReadFile(payloadPath)
		if err != nil {
			return fmt.Errorf("send: read payload file: %w", err)
		}
		msg := newExternalMessage(dst, payload)

		expireIn, err := strconv.ParseUint(expireArg, 10, 32)
		if err != nil {
			return fmt.Errorf("send: expire-in-seconds: %w", err)
		}
		expireAt := uint32(time.Now().Unix()) + uint32(expireIn)

		ctx := signalContext()

		eng, err := buildEngine(ctx, cfg)
		if err != nil {
			return err
		}
		defer eng.Close()

		logging.Info("message submitted, awaiting execution", "to", dstArg)
		result, err := eng.subscription.SendMessage(ctx, msg, expireAt)
		if err != nil {
			return fmt.Errorf("send: %w", err)
		}
		if result == nil {
			return fmt.Errorf("send: message was not observed before expiry (or the subscription was closed)")
		}

		fmt.Printf("transaction %s (account %s, lt %d)\n", result.Hash, result.Data.Account, result.Data.LT)
		return nil
	},
}
