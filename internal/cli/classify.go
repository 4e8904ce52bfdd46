package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vietddude/faultline/internal/classify"
)

var (
	classifyService string
	classifyInput   string
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify one error body and print its normalized form",
	Long: `Classify reads a JSON error object from --error or stdin and prints the
normalized error using the overrides configured for --service.`,
	RunE: runClassify,
}

func init() {
	classifyCmd.Flags().StringVar(&classifyService, "service", "", "service whose overrides apply")
	classifyCmd.Flags().StringVar(&classifyInput, "error", "", "JSON error object (default: read stdin)")
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()

	input := classifyInput
	if input == "" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		input = string(data)
	}

	var raw any
	if strings.TrimSpace(input) != "" {
		raw = json.RawMessage(input)
	}

	ne := classify.NewRegistry(cfg.ServiceDefs()...).For(classifyService).Classify(raw)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(ne)
}
