package main

import (
	"github.com/spf13/cobra"
)

func statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status [player]",
		Short: "Show player status",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			if err := app.localOnly("status"); err != nil {
				return err
			}
			ctx, cancel := app.context()
			defer cancel()

			result, err := app.service.Status(ctx, app.selector(args))
			if err != nil {
				return err
			}
			return app.printer.Print(result)
		},
	}
}
