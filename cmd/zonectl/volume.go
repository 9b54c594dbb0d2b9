package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mikey-austin/zonectl/internal/core"
	"github.com/mikey-austin/zonectl/pkg/zones"
)

func volumeCommand() *cobra.Command {
	var member string

	cmd := &cobra.Command{
		Use:   "vol",
		Short: "Change volume for a zone or one member",
	}

	up := &cobra.Command{
		Use:   "up [player]",
		Short: "Raise volume",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			return app.send(zones.CmdVolumeUp, zones.MemberBody{PlayerID: app.selector(args), Member: member})
		},
	}
	down := &cobra.Command{
		Use:   "down [player]",
		Short: "Lower volume",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			return app.send(zones.CmdVolumeDown, zones.MemberBody{PlayerID: app.selector(args), Member: member})
		},
	}
	set := &cobra.Command{
		Use:   "set <0..100>",
		Short: "Set absolute volume",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			level, err := parseVolume(args[0])
			if err != nil {
				return core.WrapError(core.ExitUsage, "volume", err)
			}
			return app.send(zones.CmdSetVolume, zones.SetVolumeBody{PlayerID: app.selector(nil), Volume: level, Member: member})
		},
	}

	cmd.PersistentFlags().StringVarP(&member, "member", "m", "", "apply to one group member only")
	cmd.AddCommand(up, down, set)

	return cmd
}

func muteCommand() *cobra.Command {
	var member string

	cmd := &cobra.Command{
		Use:   "mute [player]",
		Short: "Toggle mute for a zone or one member",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			return app.send(zones.CmdToggleMute, zones.MemberBody{PlayerID: app.selector(args), Member: member})
		},
	}

	cmd.Flags().StringVarP(&member, "member", "m", "", "apply to one group member only")

	return cmd
}

// parseVolume converts a 0..100 percentage to a 0..1 level.
func parseVolume(value string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(value), "%"), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid volume %q", value)
	}
	if v < 0 || v > 100 {
		return 0, fmt.Errorf("volume must be 0..100")
	}
	return v / 100, nil
}
