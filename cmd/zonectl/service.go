package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mikey-austin/zonectl/internal/core"
	"github.com/mikey-austin/zonectl/pkg/zones"
)

func serviceCommand() *cobra.Command {
	var raw string

	cmd := &cobra.Command{
		Use:   "service <domain.service> [key=value]...",
		Short: "Call a Home Assistant service targeting the player",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			data, err := serviceData(raw, args[1:])
			if err != nil {
				return core.WrapError(core.ExitUsage, "service data", err)
			}
			return app.send(zones.CmdCallService, zones.ServiceBody{
				PlayerID: app.selector(nil),
				Service:  args[0],
				Data:     data,
			})
		},
	}

	cmd.Flags().StringVar(&raw, "data", "", "service data as a JSON object")

	return cmd
}

// serviceData merges a JSON object with key=value pairs. Values that parse
// as JSON keep their type, everything else is a string.
func serviceData(raw string, pairs []string) (map[string]any, error) {
	data := map[string]any{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			return nil, err
		}
	}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", pair)
		}
		var parsed any
		if err := json.Unmarshal([]byte(value), &parsed); err == nil {
			data[key] = parsed
		} else {
			data[key] = value
		}
	}
	if len(data) == 0 {
		return nil, nil
	}
	return data, nil
}
