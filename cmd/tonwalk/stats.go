package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/urfave/cli.v1"

	"github.com/broxus/ton-subwalk/internal/control"
)

var statsCommand = cli.Command{
	Name:  "stats",
	Usage: "query the node's control channel for its running status and masterchain tip",
	Action: func(c *cli.Context) error {
		cfg, err := loadAppConfig(c)
		if err != nil {
			return err
		}

		ctx := signalContext()
		ctl, err := control.Dial(ctx, cfg.ControlDialAddr)
		if err != nil {
			return err
		}
		defer ctl.Close()

		stats, err := ctl.GetStats(ctx)
		if err != nil {
			return err
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"field", "value"})
		table.Append([]string{"status", string(stats.Status)})
		if stats.Status == control.StatusRunning {
			id := stats.LastMcBlock
			table.Append([]string{"last_mc_block.shard", id.ShardIdent.String()})
			table.Append([]string{"last_mc_block.seq_no", fmt.Sprint(id.SeqNo)})
			table.Append([]string{"last_mc_block.root_hash", hex.EncodeToString(id.RootHash[:])})
			table.Append([]string{"last_mc_block.file_hash", hex.EncodeToString(id.FileHash[:])})
		}
		table.Render()
		return nil
	},
}
