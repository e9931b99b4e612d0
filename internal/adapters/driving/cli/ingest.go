package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/config"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path-or-url...]",
	Short: "Ingest documents into the index",
	Long: `Extracts, chunks, embeds and indexes each file or URL.
The format is inferred from the extension unless --format is given.
Content that is already indexed is reported as unchanged.

With --async the sources are queued for a worker instead.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

var (
	ingestFormat string
	ingestAsync  bool
	ingestMeta   []string
)

func init() {
	ingestCmd.Flags().StringVarP(&ingestFormat, "format", "f", "", "Document format (pdf, txt, md, docx, xlsx, html, url, transcript)")
	ingestCmd.Flags().BoolVar(&ingestAsync, "async", false, "Queue the sources for a worker")
	ingestCmd.Flags().StringArrayVarP(&ingestMeta, "meta", "m", nil, "Metadata as key=value, repeatable")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	metadata, err := parseMetadata(ingestMeta)
	if err != nil {
		return err
	}
	format := domain.Format(ingestFormat)
	if format != "" && !format.IsValid() {
		return fmt.Errorf("unknown format %q", ingestFormat)
	}

	svc, err := openServices(cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	if ingestAsync && svc.Config.Worker.QueueBackend == config.BackendMemory {
		return errors.New("--async needs a shared task queue; set worker.queue_backend to redis")
	}

	ctx := cmd.Context()
	var failed int
	for _, source := range args {
		if ingestAsync {
			task, err := svc.Ingestion.IngestAsync(ctx, source, format)
			if err != nil {
				return fmt.Errorf("failed to queue %s: %w", source, err)
			}
			if jsonOutput {
				if err := printJSON(cmd, task); err != nil {
					return err
				}
				continue
			}
			cmd.Printf("Queued %s as task %s\n", source, task.ID)
			continue
		}

		report, err := svc.Ingestion.IngestSource(ctx, source, format, metadata)
		if err != nil {
			failed++
			cmd.PrintErrf("Failed to ingest %s: %v\n", source, err)
			continue
		}
		if jsonOutput {
			if err := printJSON(cmd, report); err != nil {
				return err
			}
			continue
		}
		printReport(cmd, report)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d sources failed", failed, len(args))
	}
	return nil
}

func printReport(cmd *cobra.Command, r *domain.IngestionReport) {
	switch r.Status {
	case domain.IngestStatusUnchanged:
		cmd.Printf("Unchanged %s [%s]\n", r.Source, r.DocumentID)
		return
	case domain.IngestStatusPartial:
		cmd.Printf("Partially indexed %s [%s]\n", r.Source, r.DocumentID)
	default:
		cmd.Printf("Indexed %s [%s]\n", r.Source, r.DocumentID)
	}
	cmd.Printf("  Chunks: %d created, %d duplicates skipped, %d total\n",
		r.ChunksCreated, r.DuplicatesSkipped, r.TotalChunks)
	if len(r.Errors) > 0 {
		cmd.Printf("  Errors: %d chunks failed\n", len(r.Errors))
	}
	cmd.Printf("  Took: %s\n", r.Duration.Round(time.Millisecond))
}

func parseMetadata(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("metadata %q must be key=value", pair)
		}
		out[key] = value
	}
	return out, nil
}
