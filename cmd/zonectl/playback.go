package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mikey-austin/zonectl/internal/core"
	"github.com/mikey-austin/zonectl/pkg/zones"
)

// playerCommand builds a command that takes only an optional player.
func playerCommand(use, short, cmdType string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [player]",
		Short: short,
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			return app.send(cmdType, zones.PlayerBody{PlayerID: app.selector(args)})
		},
	}
}

func playCommand() *cobra.Command {
	return playerCommand("play", "Start playback", zones.CmdPlay)
}

func pauseCommand() *cobra.Command {
	return playerCommand("pause", "Pause playback", zones.CmdPause)
}

func toggleCommand() *cobra.Command {
	return playerCommand("toggle", "Toggle play/pause", zones.CmdPlayPause)
}

func playStopCommand() *cobra.Command {
	return playerCommand("playstop", "Stop when playing, otherwise play", zones.CmdPlayStop)
}

func stopCommand() *cobra.Command {
	return playerCommand("stop", "Stop playback", zones.CmdStop)
}

func nextCommand() *cobra.Command {
	return playerCommand("next", "Next track", zones.CmdNext)
}

func prevCommand() *cobra.Command {
	return playerCommand("prev", "Previous track", zones.CmdPrev)
}

func seekCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seek <position>",
		Short: "Seek to an absolute position (seconds, mm:ss or hh:mm:ss)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			position, err := parsePosition(args[0])
			if err != nil {
				return core.WrapError(core.ExitUsage, "seek", err)
			}
			return app.send(zones.CmdSeek, zones.SeekBody{PlayerID: app.selector(nil), Position: position})
		},
	}
}

func jumpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "jump [seconds]",
		Short: "Jump relative to the current position (use -- before negative values)",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			amount := 0.0
			if len(args) == 1 {
				v, err := strconv.ParseFloat(strings.TrimPrefix(args[0], "+"), 64)
				if err != nil {
					return core.WrapError(core.ExitUsage, "jump", err)
				}
				if v == 0 {
					return &core.CLIError{Code: core.ExitUsage, Msg: "jump amount must be non-zero"}
				}
				amount = v
			}
			return app.send(zones.CmdJump, zones.JumpBody{PlayerID: app.selector(nil), Amount: amount})
		},
	}
}

// parsePosition accepts plain seconds or colon separated clock values.
func parsePosition(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("position required")
	}
	parts := strings.Split(value, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid position %q", value)
	}
	total := 0.0
	for i, part := range parts {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("invalid position %q", value)
		}
		if i > 0 && v >= 60 {
			return 0, fmt.Errorf("invalid position %q", value)
		}
		total = total*60 + v
	}
	return total, nil
}
