package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/vietddude/gqlgate/internal/control"
	"github.com/vietddude/gqlgate/internal/core/config"
	"github.com/vietddude/gqlgate/internal/core/domain"
)

// batchExample is shown in the help text. Documents use block scalars since
// GraphQL variable definitions contain ": ".
const batchExample = `- operation_name: Viewer
  document: |
    query Viewer { viewer { id } }
- document: |
    query Issue($id: String!) { issue(id: $id) { title } }
  variables:
    id: ABC-1
`

var batchCmd = &cobra.Command{
	Use:   "batch [items_file]",
	Short: "Run a batch of GraphQL requests from a YAML list",
	Long: "Run a batch of GraphQL requests. The file holds a YAML list of items:\n\n" +
		batchExample +
		"\nFailed items print as null. The command fails only when every item failed.",
	Args: cobra.ExactArgs(1),
	Run:  runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	err := executeBatch(ctx, *cfg, args[0], os.Stdout)
	cancel()
	if err != nil {
		slog.Error("Batch failed", "error", err)
		os.Exit(1)
	}
}

// executeBatch runs the items in path and writes the results to out. The
// gateway is stopped before it returns.
func executeBatch(ctx context.Context, cfg config.AppConfig, path string, out io.Writer) error {
	items, err := loadBatchItems(path)
	if err != nil {
		return fmt.Errorf("read batch file: %w", err)
	}

	app, err := control.NewGateway(cfg)
	if err != nil {
		return fmt.Errorf("initialize gateway: %w", err)
	}
	defer func() { _ = app.Stop(context.Background()) }()

	results, err := app.Client().BatchQuery(ctx, items)
	if err != nil {
		return err
	}
	return writeIndentedJSON(out, results)
}

func loadBatchItems(path string) ([]domain.BatchItem, error) {
	data, err := readInput(path)
	if err != nil {
		return nil, err
	}

	var items []domain.BatchItem
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse batch file: %w", err)
	}
	for i := range items {
		items[i].Variables = normalizeYAML(items[i].Variables).(map[string]any)
	}
	return items, nil
}

// normalizeYAML converts the map[interface{}]interface{} values yaml.v2
// produces into JSON-encodable maps.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		if t == nil {
			return map[string]any(nil)
		}
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeYAML(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeYAML(val)
		}
		return out
	case []any:
		for i := range t {
			t[i] = normalizeYAML(t[i])
		}
		return t
	default:
		return v
	}
}
