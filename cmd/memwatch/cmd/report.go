package cmd

import (
	"github.com/spf13/cobra"

	"github.com/voluzi/memwatch/internal/dump"
	"github.com/voluzi/memwatch/pkg/environ"
	"github.com/voluzi/memwatch/pkg/report"
)

var reportOpts struct {
	from     string
	output   string
	merge    []string
	fileName string
	export   exportFlags
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Export a report from a saved session dump",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := dump.Read(reportOpts.from)
		if err != nil {
			return err
		}

		merge := d.Merge
		if cmd.Flags().Changed("merge") {
			merge = reportOpts.merge
		}
		opts, err := reportOpts.export.options()
		if err != nil {
			return err
		}
		opts = append(opts, report.WithFileName(reportOpts.fileName))

		in := report.NewInput(d.Snapshot, merge)
		printSummary(cmd.OutOrStdout(), in)
		return exportReport(cmd.Context(), reportOpts.output, in, opts...)
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportOpts.from, "from", "", "Session dump to export (.json or .json.gz)")
	reportCmd.Flags().StringVar(&reportOpts.output, "out", environ.GetString(envOutput, ""), "Destination directory or gs://bucket/prefix (defaults to the current directory)")
	reportCmd.Flags().StringSliceVar(&reportOpts.merge, "merge", nil, "Processes to plot on the combined chart (defaults to the dump's)")
	reportCmd.Flags().StringVar(&reportOpts.fileName, "file-name", report.DefaultFileName, "Report file name")
	reportOpts.export.register(reportCmd)
	_ = reportCmd.MarkFlagRequired("from")
	rootCmd.AddCommand(reportCmd)
}
