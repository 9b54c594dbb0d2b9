package main

import (
	"github.com/spf13/cobra"

	"github.com/mikey-austin/zonectl/internal/adapters/output"
	"github.com/mikey-austin/zonectl/internal/core"
)

func lsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List configured players",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			if err := app.localOnly("ls"); err != nil {
				return err
			}
			ctx, cancel := app.context()
			defer cancel()

			result, err := app.service.Devices(ctx)
			if err != nil {
				return err
			}
			return app.printer.Print(result)
		},
	}
}

func zonesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "zones",
		Short: "List zones and their members",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := app.context()
			defer cancel()

			if app.remote != nil {
				snapshots, err := app.remote.ListZones(ctx)
				if err != nil {
					return core.WrapError(core.ExitUnavailable, "list zones", err)
				}
				return app.printer.Print(core.ZonesResult{Zones: snapshots})
			}
			result, err := app.service.Zones(ctx)
			if err != nil {
				return err
			}
			return app.printer.Print(result)
		},
	}
}

func selectCommand() *cobra.Command {
	var clear bool

	cmd := &cobra.Command{
		Use:   "select [player]",
		Short: "Remember the default player",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			selector := ""
			if len(args) == 1 {
				selector = args[0]
			}
			if selector == "" && !clear {
				return &core.CLIError{Code: core.ExitUsage, Msg: "player required (or --clear)"}
			}
			if clear {
				selector = ""
			}

			// zoned resolves the stored value itself in remote mode.
			if app.remote != nil {
				var err error
				if selector == "" {
					err = app.selection.Clear()
				} else {
					err = app.selection.Select(selector)
				}
				if err != nil {
					return core.WrapError(core.ExitRuntime, "store selection", err)
				}
				return app.printer.Print(output.SelectedOutput{PlayerID: selector})
			}

			ctx, cancel := app.context()
			defer cancel()
			id, err := app.service.Select(ctx, selector)
			if err != nil {
				return err
			}
			return app.printer.Print(output.SelectedOutput{PlayerID: id})
		},
	}

	cmd.Flags().BoolVar(&clear, "clear", false, "forget the selected player")

	return cmd
}
