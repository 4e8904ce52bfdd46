package cli

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var servicesCmd = &cobra.Command{
	Use:   "services",
	Short: "List configured services and their override tables",
	Run:   runServices,
}

func init() {
	rootCmd.AddCommand(servicesCmd)
}

func runServices(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "SERVICE\tBASE URL\tCODE\tCATEGORY\tRETRYABLE")

	for _, svc := range cfg.Services {
		overrides := svc.ClassifierOverrides()
		if len(overrides) == 0 {
			_, _ = fmt.Fprintf(w, "%s\t%s\t-\t-\t-\n", svc.Name, svc.BaseURL)
			continue
		}
		codes := make([]string, 0, len(overrides))
		for code := range overrides {
			codes = append(codes, code)
		}
		sort.Strings(codes)
		for _, code := range codes {
			o := overrides[code]
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n", svc.Name, svc.BaseURL, code, o.Category, o.Retryable)
		}
	}
	_ = w.Flush()
}
