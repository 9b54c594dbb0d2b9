package output

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/pterm/pterm"

	"github.com/mikey-austin/zonectl/internal/core"
	"github.com/mikey-austin/zonectl/pkg/zones"
)

// HumanPrinter prints human-readable output.
type HumanPrinter struct {
	Out io.Writer
}

// SelectedOutput reports the outcome of a select command.
type SelectedOutput struct {
	PlayerID string `json:"playerId"`
}

// Print renders human output.
func (p HumanPrinter) Print(v any) error {
	w := writerOr(p.Out)
	switch data := v.(type) {
	case core.ZonesResult:
		return printZones(w, data)
	case core.DevicesResult:
		return printDevices(w, data)
	case core.StatusResult:
		return printStatus(w, data)
	case core.CommandResult:
		return printCommand(w, data)
	case SelectedOutput:
		return printSelected(w, data)
	default:
		_, err := fmt.Fprintln(w, "ok")
		return err
	}
}

func printZones(w io.Writer, result core.ZonesResult) error {
	if len(result.Zones) == 0 {
		_, err := fmt.Fprintln(w, "no zones")
		return err
	}
	rows := [][]string{{"ZONE", "STATUS", "LEADER", "MEMBERS"}}
	for _, zone := range result.Zones {
		names := make([]string, 0, len(zone.Members))
		for _, m := range zone.Members {
			names = append(names, memberName(m))
		}
		rows = append(rows, []string{
			orDash(zone.RoomName),
			orDash(zone.Status),
			zone.LeaderID,
			strings.Join(names, ", "),
		})
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithData(rows).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, table)
	return err
}

func memberName(m zones.MemberSnapshot) string {
	if m.Name == "" {
		return m.ID
	}
	return m.Name
}

func printDevices(w io.Writer, result core.DevicesResult) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "\tNAME\tSTATUS\tZONE\tENTITY_ID"); err != nil {
		return err
	}
	for _, d := range result.Devices {
		mark := ""
		if d.ID == result.Selected {
			mark = "*"
		}
		status := d.Status
		if !d.Present {
			status = "missing"
		}
		_, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", mark, orDash(d.Name), status, orDash(d.LeaderID), d.ID)
		if err != nil {
			return err
		}
	}
	return tw.Flush()
}

func printStatus(w io.Writer, result core.StatusResult) error {
	pl := result.Player
	status := pl.Status
	if pl.Idle {
		status += ", idle"
	}
	if _, err := fmt.Fprintf(w, "%s  [%s]\n", pl.Name, status); err != nil {
		return err
	}

	if line := formatMedia(pl.MediaInfo); line != "" {
		if _, err := fmt.Fprintln(w, "  "+line); err != nil {
			return err
		}
	}
	if pl.Duration > 0 {
		if _, err := fmt.Fprintf(w, "  %s / %s\n", core.FormatDuration(pl.Progress), core.FormatDuration(pl.Duration)); err != nil {
			return err
		}
	}

	details := make([]string, 0, 4)
	if pl.Volume != nil {
		vol := fmt.Sprintf("vol %d%%", int(*pl.Volume*100+0.5))
		if pl.Muted != nil && *pl.Muted {
			vol += " (muted)"
		}
		details = append(details, vol)
	}
	if pl.Shuffle != nil && *pl.Shuffle {
		details = append(details, "shuffle")
	}
	if pl.Repeat != "" && pl.Repeat != "off" {
		details = append(details, "repeat "+pl.Repeat)
	}
	if pl.Source != "" {
		details = append(details, "source "+pl.Source)
	}
	if len(details) > 0 {
		if _, err := fmt.Fprintln(w, "  "+strings.Join(details, "  ")); err != nil {
			return err
		}
	}

	if len(result.Zone.Members) > 0 {
		names := []string{orDash(result.Zone.RoomName)}
		for _, m := range result.Zone.Members {
			names = append(names, memberName(m))
		}
		if _, err := fmt.Fprintf(w, "  zone: %s\n", strings.Join(names, " + ")); err != nil {
			return err
		}
	}
	return nil
}

func formatMedia(items []zones.MediaInfoItem) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, item.Prefix+item.Text)
	}
	return strings.Join(parts, " - ")
}

func printCommand(w io.Writer, result core.CommandResult) error {
	for _, call := range result.Calls {
		if _, err := fmt.Fprintln(w, call); err != nil {
			return err
		}
	}
	return nil
}

func printSelected(w io.Writer, out SelectedOutput) error {
	if out.PlayerID == "" {
		_, err := fmt.Fprintln(w, "selection cleared")
		return err
	}
	_, err := fmt.Fprintf(w, "selected %s\n", out.PlayerID)
	return err
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
