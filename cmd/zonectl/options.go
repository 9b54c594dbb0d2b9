package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/mikey-austin/zonectl/pkg/zones"
)

func shuffleCommand() *cobra.Command {
	return playerCommand("shuffle", "Toggle shuffle", zones.CmdToggleShuffle)
}

func repeatCommand() *cobra.Command {
	return playerCommand("repeat", "Cycle repeat (off, all, one)", zones.CmdToggleRepeat)
}

func sourceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "source <name>",
		Short: "Select an input source",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			return app.send(zones.CmdSelectSource, zones.SourceBody{
				PlayerID: app.selector(nil),
				Source:   strings.Join(args, " "),
			})
		},
	}
}

func soundModeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "soundmode <mode>",
		Short: "Select a sound mode",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			return app.send(zones.CmdSelectSoundMode, zones.SoundModeBody{
				PlayerID:  app.selector(nil),
				SoundMode: strings.Join(args, " "),
			})
		},
	}
}

func playMediaCommand() *cobra.Command {
	var contentType string

	cmd := &cobra.Command{
		Use:   "playmedia <content-id>",
		Short: "Play a media item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			return app.send(zones.CmdPlayMedia, zones.PlayMediaBody{
				PlayerID:    app.selector(nil),
				ContentID:   args[0],
				ContentType: contentType,
			})
		},
	}

	cmd.Flags().StringVar(&contentType, "type", "music", "media content type")

	return cmd
}
