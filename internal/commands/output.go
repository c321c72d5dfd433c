package commands

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/vladislavdragonenkov/serviceflow/internal/domain"
	"github.com/vladislavdragonenkov/serviceflow/internal/viewstate"
)

const dateLayout = "2006-01-02"

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(dateLayout)
}

func printOrders(w io.Writer, orders []domain.ServiceOrder) error {
	if len(orders) == 0 {
		_, err := fmt.Fprintln(w, "No service orders found")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tSTATUS\tPRIORITY\tCLIENT\tTITLE\tDUE")
	for _, o := range orders {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			o.ID, o.Status, o.Priority, o.Client, o.Title, formatDate(o.DueDate))
	}
	return tw.Flush()
}

func printOrder(w io.Writer, o domain.ServiceOrder) error {
	hours := "-"
	if o.EstimatedHours != nil {
		hours = strconv.Itoa(*o.EstimatedHours)
	}
	rows := [][2]string{
		{"ID", o.ID},
		{"Title", o.Title},
		{"Description", o.Description},
		{"Client", o.Client},
		{"Status", string(o.Status)},
		{"Priority", string(o.Priority)},
		{"Category", o.Category},
		{"Technician", orDash(o.Technician)},
		{"Due date", formatDate(o.DueDate)},
		{"Estimated hours", hours},
		{"Notes", orDash(o.Notes)},
		{"Created", o.CreatedAt.UTC().Format(time.RFC3339)},
		{"Updated", o.UpdatedAt.UTC().Format(time.RFC3339)},
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, r := range rows {
		_, _ = fmt.Fprintf(tw, "%s:\t%s\n", r[0], r[1])
	}
	return tw.Flush()
}

func printDashboard(w io.Writer, d viewstate.Dashboard) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "Total:\t%d\n", d.Total)
	_, _ = fmt.Fprintf(tw, "Pending:\t%d\n", d.Pending)
	_, _ = fmt.Fprintf(tw, "In progress:\t%d\n", d.InProgress)
	_, _ = fmt.Fprintf(tw, "Completed:\t%d\n", d.Completed)
	_, _ = fmt.Fprintf(tw, "Cancelled:\t%d\n", d.Cancelled)
	_, _ = fmt.Fprintf(tw, "Completion rate:\t%.1f%%\n", d.CompletionRate)
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(d.Recent) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w, "\nRecent orders:"); err != nil {
		return err
	}
	return printOrders(w, d.Recent)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// confirmPrompt спрашивает подтверждение; согласие: только y или yes.
func confirmPrompt(in io.Reader, out io.Writer, question string) bool {
	_, _ = fmt.Fprintf(out, "%s [y/N]: ", question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// notifier печатает успешные и информационные уведомления; ошибки возвращаются командой.
func notifier(w io.Writer) viewstate.Notifier {
	return viewstate.NotifierFunc(func(n viewstate.Notification) {
		if n.Level == viewstate.LevelError {
			return
		}
		if n.OrderID != "" {
			_, _ = fmt.Fprintf(w, "%s: %s (%s)\n", n.Level, n.Message, n.OrderID)
			return
		}
		_, _ = fmt.Fprintf(w, "%s: %s\n", n.Level, n.Message)
	})
}
