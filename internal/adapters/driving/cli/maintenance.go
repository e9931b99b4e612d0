package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Remove exact duplicate index entries",
	Long:  `Removes entries whose content duplicates an earlier entry, keeping the earliest copy.`,
	Args:  cobra.NoArgs,
	RunE:  runDedupe,
}

var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Compact the index",
	Long: `Runs one compaction pass.

  deduplicate_exact  remove exact duplicate entries
  age_based          remove entries older than --keep-days`,
	Args: cobra.NoArgs,
	RunE: runCompact,
}

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the index from the stored documents",
	Long: `Re-chunks and re-embeds every stored document into a fresh index and
swaps it in. Needed after changing the embedding model or dimensions, or when
the index is reported corrupt.`,
	Args: cobra.NoArgs,
	RunE: runRebuild,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index, document, cache and queue state",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var (
	compactStrategy string
	compactKeepDays int
	compactDryRun   bool
)

func init() {
	compactCmd.Flags().StringVarP(&compactStrategy, "strategy", "s", string(domain.CompactDeduplicateExact), "deduplicate_exact or age_based")
	compactCmd.Flags().IntVar(&compactKeepDays, "keep-days", 0, "Entries newer than this many days survive age_based compaction")
	compactCmd.Flags().BoolVar(&compactDryRun, "dry-run", false, "Report what would be removed without removing it")

	rootCmd.AddCommand(dedupeCmd)
	rootCmd.AddCommand(compactCmd)
	rootCmd.AddCommand(rebuildCmd)
	rootCmd.AddCommand(statusCmd)
}

func runDedupe(cmd *cobra.Command, args []string) error {
	svc, err := openServices(cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	removed, err := svc.Maintenance.Deduplicate(cmd.Context())
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd, map[string]int{"removed": removed})
	}
	cmd.Printf("Removed %d duplicate entries\n", removed)
	return nil
}

func runCompact(cmd *cobra.Command, args []string) error {
	strategy := domain.CompactStrategy(compactStrategy)
	if !strategy.IsValid() {
		return fmt.Errorf("unknown strategy %q", compactStrategy)
	}

	svc, err := openServices(cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	result, err := svc.Maintenance.Compact(cmd.Context(), domain.CompactRequest{
		Strategy:       strategy,
		KeepRecentDays: compactKeepDays,
		DryRun:         compactDryRun,
	})
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd, result)
	}

	if result.DryRun {
		cmd.Printf("Would remove %d entries (%s)\n", len(result.Candidates), result.Strategy)
		return nil
	}
	cmd.Printf("Removed %d entries (%s), %d remain\n", result.Removed, result.Strategy, result.Remaining)
	return nil
}

func runRebuild(cmd *cobra.Command, args []string) error {
	svc, err := openServices(cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	result, err := svc.Maintenance.Rebuild(cmd.Context())
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd, result)
	}

	cmd.Printf("Rebuilt index: %d documents, %d entries, dimension %d in %s\n",
		result.Documents, result.Entries, result.Dimension, result.Duration.Round(time.Millisecond))
	if result.Failed > 0 {
		cmd.Printf("  %d documents could not be re-embedded\n", result.Failed)
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	svc, err := openServices(cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	status, err := svc.Maintenance.Status(cmd.Context())
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd, status)
	}

	idx := status.Index
	cmd.Println("Index:")
	cmd.Printf("  State:      %s\n", idx.State)
	cmd.Printf("  Entries:    %d\n", idx.Entries)
	cmd.Printf("  Documents:  %d\n", idx.Documents)
	cmd.Printf("  Duplicates: %d\n", idx.Duplicates)
	cmd.Printf("  Dimension:  %d (%s, dedup %s)\n", idx.Dimension, idx.Metric, idx.Policy)
	if idx.RebuiltAt != nil {
		cmd.Printf("  Rebuilt:    %s\n", idx.RebuiltAt.Format(time.RFC3339))
	}
	if svc.IndexErr != nil {
		cmd.Printf("  Problem:    %v (run rebuild)\n", svc.IndexErr)
	}

	cmd.Printf("Documents: %d\n", status.Documents)
	statuses := make([]string, 0, len(status.ByStatus))
	for s := range status.ByStatus {
		statuses = append(statuses, string(s))
	}
	sort.Strings(statuses)
	for _, s := range statuses {
		cmd.Printf("  %-8s %d\n", s, status.ByStatus[domain.DocumentStatus(s)])
	}

	if c := status.Cache; c != nil {
		cmd.Printf("Cache (%s): %d entries, %d hits, %d misses\n", c.Backend, c.Entries, c.Hits, c.Misses)
	}
	if q := status.Queue; q != nil {
		cmd.Printf("Queue: %d pending, %d processing, %d failed\n", q.PendingCount, q.ProcessingCount, q.FailedCount)
	}
	return nil
}
