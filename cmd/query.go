package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kitbuilder587/wikisearch/internal/htmltext"
	"github.com/kitbuilder587/wikisearch/internal/search"
	"github.com/kitbuilder587/wikisearch/internal/view"
)

const snippetWidth = 200

var (
	queryFilter    string
	queryBatchSize int
	querySort      string
	queryOffset    int
	queryJSON      bool
)

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Run one search and print the results",
	Long: `Search the wiki once and print a page of results to stdout.
Use --offset with the value printed under the results to fetch the next page.`,
	Example: `  wikisearch query golang
  wikisearch query --filter 14 --batch-size 20 "physics"
  wikisearch query --json --offset 10 golang`,
	Args:          cobra.MinimumNArgs(1),
	SilenceErrors: true,
	RunE:          runQuery,
}

func init() {
	queryCmd.Flags().StringVarP(&queryFilter, "filter", "f", "", "Namespace filter (srnamespace), e.g. 0, 14, 0|6 or *")
	queryCmd.Flags().IntVarP(&queryBatchSize, "batch-size", "n", 0, "Results per page (default: DEFAULT_BATCH_SIZE)")
	queryCmd.Flags().StringVarP(&querySort, "sort", "s", "", "Sort order (relevance, last_edit_desc, create_timestamp_asc, ...)")
	queryCmd.Flags().IntVarP(&queryOffset, "offset", "o", 0, "Result offset")
	queryCmd.Flags().BoolVarP(&queryJSON, "json", "j", false, "Print the response as JSON")
}

type queryOutput struct {
	*search.SearchResponse
	Pager view.Pager `json:"pager"`
}

func runQuery(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
		return err
	}
	defer a.close()

	req := search.SearchRequest{
		Query: strings.Join(args, " "),
		Options: search.SearchOptions{
			Filter:    queryFilter,
			BatchSize: queryBatchSize,
			Sort:      querySort,
			Offset:    queryOffset,
		},
	}
	req.Sanitize()

	resp, err := a.service.Search(cmd.Context(), req)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), view.ErrorMessage(err))
		return err
	}

	v := a.builder.FromResponse(req, resp)
	if queryJSON {
		return printJSON(cmd.OutOrStdout(), queryOutput{SearchResponse: resp, Pager: v.Pager})
	}
	printResults(cmd.OutOrStdout(), v)
	return nil
}

func printJSON(w io.Writer, out queryOutput) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(out)
}

func printResults(w io.Writer, v view.ResultsView) {
	if !v.HasResults() {
		fmt.Fprintln(w, v.Message)
		return
	}

	p := v.Pager
	fmt.Fprintf(w, "Results %d-%d of %d for %q\n\n", p.Offset+1, p.Offset+len(v.Cards), v.TotalHits, v.Query)

	for i, card := range v.Cards {
		fmt.Fprintf(w, "%2d. %s\n", p.Offset+i+1, card.Title)
		if snippet := htmltext.Truncate(htmltext.Text(string(card.Snippet)), snippetWidth); snippet != "" {
			fmt.Fprintf(w, "    %s\n", snippet)
		}
		fmt.Fprintf(w, "    %s\n\n", card.URL)
	}

	if p.ShowPrev {
		fmt.Fprintf(w, "Previous page: --offset %d\n", p.PrevOffset)
	}
	if p.ShowNext {
		fmt.Fprintf(w, "Next page: --offset %d\n", p.NextOffset)
	}
}
