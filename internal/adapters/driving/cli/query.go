package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Answer a question from the indexed documents",
	Long: `Retrieves the passages most similar to the question, reranks them
and asks the configured LLM for an answer grounded in them.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

var retrieveCmd = &cobra.Command{
	Use:   "retrieve [query]",
	Short: "Show the passages most relevant to a query",
	Args:  cobra.ExactArgs(1),
	RunE:  runRetrieve,
}

var (
	topK     int
	noRerank bool
	minScore float64
)

func init() {
	for _, c := range []*cobra.Command{queryCmd, retrieveCmd} {
		c.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of passages (0 uses the configured default)")
		c.Flags().BoolVar(&noRerank, "no-rerank", false, "Rank by vector similarity only")
		c.Flags().Float64Var(&minScore, "min-score", 0, "Drop passages scoring below this")
	}
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(retrieveCmd)
}

func retrieveRequest(query string) domain.RetrieveRequest {
	req := domain.RetrieveRequest{Query: query, TopK: topK, MinScore: minScore}
	if noRerank {
		rerank := false
		req.Rerank = &rerank
	}
	return req
}

func runQuery(cmd *cobra.Command, args []string) error {
	svc, err := openServices(cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	resp, err := svc.Query.Ask(cmd.Context(), domain.QueryRequest{RetrieveRequest: retrieveRequest(args[0])})
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd, resp)
	}

	cmd.Println(resp.Answer)
	if resp.Fallback {
		cmd.Println("\n(the language model was unavailable; answer built from the passages)")
	}
	if len(resp.Sources) > 0 {
		cmd.Println("\nSources:")
		printChunks(cmd, resp.Sources)
	}
	return nil
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	svc, err := openServices(cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	chunks, err := svc.Retriever.Retrieve(cmd.Context(), retrieveRequest(args[0]))
	if err != nil {
		return err
	}
	if jsonOutput {
		if chunks == nil {
			chunks = []*domain.RetrievedChunk{}
		}
		return printJSON(cmd, chunks)
	}

	if len(chunks) == 0 {
		cmd.Println("No results")
		return nil
	}
	cmd.Println("Results:")
	printChunks(cmd, chunks)
	return nil
}

func printChunks(cmd *cobra.Command, chunks []*domain.RetrievedChunk) {
	for i, c := range chunks {
		cmd.Printf("  [%d] %.3f  %s#%d\n", i+1, c.Score, c.DocumentID, c.Position)
		cmd.Printf("      %s\n", snippet(c.Content, 120))
	}
}

func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
