package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/c2h5oh/datasize"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

var psFilter string

var psCmd = &cobra.Command{
	Use:   "ps",
	Short: "List running process names and their memory usage",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sampler := newSampler()
		names, err := sampler.Names(cmd.Context())
		if err != nil {
			return err
		}
		names = filterNames(names, psFilter)
		if len(names) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no matching processes")
			return nil
		}

		totals, err := sampler.Sample(cmd.Context(), names)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), processTable(names, totals))
		return nil
	},
}

func init() {
	psCmd.Flags().StringVar(&psFilter, "filter", "", "Only list names containing this text (case insensitive)")
	rootCmd.AddCommand(psCmd)
}

func filterNames(names []string, filter string) []string {
	if filter == "" {
		return names
	}
	filter = strings.ToLower(filter)

	var result []string
	for _, name := range names {
		if strings.Contains(strings.ToLower(name), filter) {
			result = append(result, name)
		}
	}
	return result
}

// processTable lists names by descending memory usage.
func processTable(names []string, totals map[string]uint64) string {
	sorted := append([]string(nil), names...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return totals[sorted[i]] > totals[sorted[j]]
	})

	rows := make([][]string, 0, len(sorted))
	for _, name := range sorted {
		rows = append(rows, []string{name, datasize.ByteSize(totals[name]).HR()})
	}
	return newTable("PROCESS", "RSS").Rows(rows...).String()
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			style := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return style.Bold(true)
			}
			return style
		}).
		Headers(headers...)
}
