// package formatter renders partitions, organize reports and run history as text or CSV
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/desertthunder/tempox/internal/models"
	"github.com/desertthunder/tempox/internal/repositories"
	"github.com/desertthunder/tempox/internal/tasks"
	"github.com/desertthunder/tempox/internal/tempo"
)

const timeLayout = "2006-01-02 15:04:05"

// FormatPartition lists every range of p with its playlist name and member count.
func FormatPartition(p *tempo.Partition, pal *Palette) string {
	var buf bytes.Buffer
	buf.WriteString(pal.Title(fmt.Sprintf("%d tempo ranges below %d BPM", len(p.Ranges()), p.Max())))
	buf.WriteString("\n\n")

	tw := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANGE\tPLAYLIST\tTRACKS")
	for _, r := range p.Ranges() {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", r, r.Name, len(r.Members))
	}
	tw.Flush()

	return buf.String()
}

// FormatReport summarizes an organize run.
func FormatReport(r *tasks.Report, pal *Palette) string {
	var buf bytes.Buffer

	heading := "Organized playlists by tempo"
	if r.DryRun {
		heading = "Planned changes (dry run)"
	}
	buf.WriteString(pal.Title(heading))
	buf.WriteString("\n\n")

	if c := r.Collection; c != nil {
		fmt.Fprintf(&buf, "Source playlists: %d\n", len(c.SourcePlaylists))
		fmt.Fprintf(&buf, "Tracks:           %d (%d classified)\n", c.Tracks, c.Classified)
		if n := len(c.Skipped); n > 0 {
			buf.WriteString(pal.Warn(fmt.Sprintf("Skipped:          %d (tempo at or above %d)", n, c.Partition.Max())))
			buf.WriteString("\n")
		}
		if n := len(c.Unassigned); n > 0 {
			buf.WriteString(pal.Warn(fmt.Sprintf("Unassigned:       %d (tempo between ranges)", n)))
			buf.WriteString("\n")
		}
		if n := len(c.MissingFeatures); n > 0 {
			buf.WriteString(pal.Warn(fmt.Sprintf("No features:      %d", n)))
			buf.WriteString("\n")
		}
		buf.WriteString("\n")
	}

	tw := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PLAYLIST\tSTATUS\tMEMBERS\tADDED")
	for _, p := range r.Playlists {
		status := "exists"
		if p.Created {
			status = "created"
			if r.DryRun {
				status = "create"
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", p.Name, status, p.Members, len(p.Added))
	}
	tw.Flush()

	buf.WriteString("\n")
	verb := "Added"
	if r.DryRun {
		verb = "Would add"
	}
	buf.WriteString(pal.OK(fmt.Sprintf("%s %d tracks across %d playlists", verb, r.TracksAdded(), len(r.Playlists))))
	buf.WriteString("\n")

	if len(r.Pruned) > 0 {
		verb = "Unfollowed"
		if r.DryRun {
			verb = "Would unfollow"
		}
		fmt.Fprintf(&buf, "%s %d empty playlists:\n", verb, len(r.Pruned))
		for _, p := range r.Pruned {
			fmt.Fprintf(&buf, "  - %s\n", p.Name)
		}
	}

	return buf.String()
}

// ReportToCSV writes one row per playlist record.
func ReportToCSV(r *tasks.Report) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Name", "Low", "High", "PlaylistID", "Created", "Members", "Added"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, p := range r.Playlists {
		record := []string{
			p.Name,
			strconv.Itoa(p.Low),
			strconv.Itoa(p.High),
			p.PlaylistID,
			strconv.FormatBool(p.Created),
			strconv.Itoa(p.Members),
			strconv.Itoa(len(p.Added)),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// FormatRuns renders run history as a table, newest first as given.
func FormatRuns(runs []*models.Run, pal *Palette) string {
	if len(runs) == 0 {
		return pal.Help("No runs recorded") + "\n"
	}

	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	// status is last: styled text would break column widths
	fmt.Fprintln(tw, "ID\tSTARTED\tDURATION\tCREATED\tADDED\tPRUNED\tSTATUS")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			shortID(r.ID),
			r.StartedAt.Local().Format(timeLayout),
			runDuration(r),
			r.PlaylistsCreated,
			r.TracksAdded,
			r.PlaylistsPruned,
			runStatus(r, pal),
		)
	}
	tw.Flush()

	return buf.String()
}

// FormatFeatureStats describes the feature cache.
func FormatFeatureStats(s *repositories.FeatureStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Cached tracks: %d\n", s.Count)
	if s.LastFetched != nil {
		fmt.Fprintf(&b, "Last fetched:  %s\n", s.LastFetched.Local().Format(timeLayout))
	}
	return b.String()
}

func runStatus(r *models.Run, pal *Palette) string {
	status := string(r.Status)
	if r.DryRun {
		status += " (dry run)"
	}
	switch r.Status {
	case models.RunStatusSucceeded:
		return pal.OK(status)
	case models.RunStatusFailed:
		return pal.Err(status)
	default:
		return pal.Warn(status)
	}
}

func runDuration(r *models.Run) string {
	if r.FinishedAt == nil {
		return "-"
	}
	return r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
