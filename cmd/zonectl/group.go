package main

import (
	"github.com/spf13/cobra"

	"github.com/mikey-austin/zonectl/pkg/zones"
)

func joinCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "join <member>...",
		Short: "Add players to the zone of the target player",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			return app.send(zones.CmdJoin, zones.GroupBody{PlayerID: app.selector(nil), Members: args})
		},
	}
}

func unjoinCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unjoin [member]...",
		Short: "Remove players from their zone (the target player when none given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			return app.send(zones.CmdUnjoin, zones.GroupBody{PlayerID: app.selector(nil), Members: args})
		},
	}
}
