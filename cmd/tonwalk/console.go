package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"gopkg.in/urfave/cli.v1"

	"github.com/broxus/ton-subwalk/internal/logging"
)

var consoleCommand = cli.Command{
	Name:  "console",
	Usage: "interactive REPL over a running subscription: send, stats, pending",
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

		line := liner.NewLiner()
		defer line.Close()
		line.SetCtrlCAborts(true)

		historyPath := filepath.Join(cfg.DataDir, "console_history")
		if f, err := os.Open(historyPath); err == nil {
			line.ReadHistory(f)
			f.Close()
		}

		fmt.Println("tonwalk console — commands: send <to> <body_hex> <expire>, stats, pending, quit")
		for {
			input, err := line.Prompt("tonwalk> ")
			if err == liner.ErrPromptAborted || err == io.EOF {
				break
			}
			if err != nil {
				return err
			}

			input = strings.TrimSpace(input)
			if input == "" {
				continue
			}
			line.AppendHistory(input)

			if input == "quit" || input == "exit" {
				break
			}
			if err := runConsoleCommand(ctx, eng, input); err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
			}
		}

		if f, err := os.Create(historyPath); err == nil {
			line.WriteHistory(f)
			f.Close()
		} else {
			logging.Warn("could not persist console history", "err", err)
		}
		return nil
	},
}

func runConsoleCommand(ctx context.Context, eng *engine, input string) error {
	fields := strings.Fields(input)
	switch fields[0] {
	case "pending":
		fmt.Printf("pending messages: %d\n", eng.subscription.PendingCount())
		return nil
	case "stats":
		stats, err := eng.control.GetStats(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("status: %s\n", stats.Status)
		return nil
	case "send":
		if len(fields) != 4 {
			return fmt.Errorf("usage: send <to> <body_hex> <expire>")
		}
		dst, err := parseAddress(fields[1])
		if err != nil {
			return err
		}
		msg, err := newExternalMessageHex(dst, fields[2])
		if err != nil {
			return err
		}
		expireAt, err := strconv.ParseUint(fields[3], 10, 32)
		if err != nil {
			return fmt.Errorf("expire: %w", err)
		}

		result, err := eng.subscription.SendMessage(ctx, msg, uint32(expireAt))
		if err != nil {
			return err
		}
		if result == nil {
			fmt.Println("not observed before expiry")
			return nil
		}
		fmt.Printf("transaction %s (account %s, lt %d)\n", result.Hash, result.Data.Account, result.Data.LT)
		return nil
	default:
		return fmt.Errorf("unknown command %q", fields[0])
	}
}
