package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/vietddude/gqlgate/internal/control"
	"github.com/vietddude/gqlgate/internal/core/config"
	"github.com/vietddude/gqlgate/internal/core/domain"
)

var (
	queryVars string
	queryName string
)

var queryCmd = &cobra.Command{
	Use:   "query [document_file]",
	Short: "Send one GraphQL request (use - to read the document from stdin)",
	Args:  cobra.ExactArgs(1),
	Run:   runQuery,
}

func init() {
	queryCmd.Flags().StringVar(&queryVars, "vars", "", "variables as a JSON object")
	queryCmd.Flags().StringVar(&queryName, "name", "", "operation name used in logs")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	err := executeQuery(ctx, *cfg, args[0], queryVars, queryName, os.Stdout)
	cancel()
	if err != nil {
		slog.Error("Request failed", "error", err)
		os.Exit(1)
	}
}

// executeQuery sends the document in path and writes the data to out. The
// gateway is stopped before it returns.
func executeQuery(ctx context.Context, cfg config.AppConfig, path, vars, name string, out io.Writer) error {
	document, err := readInput(path)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}

	var variables map[string]any
	if vars != "" {
		if err := json.Unmarshal([]byte(vars), &variables); err != nil {
			return fmt.Errorf("invalid --vars: %w", err)
		}
	}

	app, err := control.NewGateway(cfg)
	if err != nil {
		return fmt.Errorf("initialize gateway: %w", err)
	}
	defer func() { _ = app.Stop(context.Background()) }()

	data, err := app.Client().ExecuteItem(ctx, domain.BatchItem{
		Document:      string(document),
		Variables:     variables,
		OperationName: name,
	})
	if err != nil {
		return err
	}
	return writeIndentedJSON(out, data)
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func writeIndentedJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
