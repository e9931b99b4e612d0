package cli

import (
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and clear the answer and embedding cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	Args:  cobra.NoArgs,
	RunE:  runCacheStats,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove cached entries",
	Long:  `Removes cached answers and vectors. --prefix query: or --prefix embed: narrows it.`,
	Args:  cobra.NoArgs,
	RunE:  runCacheClear,
}

var cachePrefix string

func init() {
	cacheClearCmd.Flags().StringVar(&cachePrefix, "prefix", "", "Only remove keys with this prefix")

	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	svc, err := openServices(cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	stats, err := svc.Maintenance.CacheStats(cmd.Context())
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd, stats)
	}

	cmd.Printf("Backend:   %s\n", stats.Backend)
	if stats.Capacity > 0 {
		cmd.Printf("Entries:   %d / %d\n", stats.Entries, stats.Capacity)
	} else {
		cmd.Printf("Entries:   %d\n", stats.Entries)
	}
	cmd.Printf("Hits:      %d\n", stats.Hits)
	cmd.Printf("Misses:    %d\n", stats.Misses)
	cmd.Printf("Coalesced: %d\n", stats.Coalesced)
	cmd.Printf("Evictions: %d\n", stats.Evictions)
	cmd.Printf("Expired:   %d\n", stats.Expired)
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	svc, err := openServices(cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	removed, err := svc.Maintenance.ClearCache(cmd.Context(), cachePrefix)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd, map[string]int{"removed": removed})
	}
	cmd.Printf("Removed %d cache entries\n", removed)
	return nil
}
