package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kitbuilder587/wikisearch/internal/config"
	"github.com/kitbuilder587/wikisearch/internal/search"
	searchMock "github.com/kitbuilder587/wikisearch/internal/search/mock"
	"github.com/kitbuilder587/wikisearch/internal/view"
)

func resetQueryState() {
	queryFilter = ""
	queryBatchSize = 0
	querySort = ""
	queryOffset = 0
	queryJSON = false
	envFile = ""
	logLevel = ""
}

func withMockClient(t *testing.T, client search.SearchClient) {
	t.Helper()
	prev := newSearchClient
	newSearchClient = func(config.WikiConfig, *zap.Logger) search.SearchClient {
		return client
	}
	t.Cleanup(func() { newSearchClient = prev })
}

func articles(n int) []search.SearchResult {
	out := make([]search.SearchResult, n)
	for i := range out {
		out[i] = search.SearchResult{
			Title:   fmt.Sprintf("Article %d", i+1),
			Snippet: `about <span class="searchmatch">go</span> &amp; more`,
			PageID:  int64(100 + i),
		}
	}
	return out
}

func runRoot(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetQueryState()
	t.Cleanup(resetQueryState)
	t.Setenv("LOG_LEVEL", "error")

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestQueryCommand_Text(t *testing.T) {
	client := searchMock.New().WithResults(articles(25))
	withMockClient(t, client)

	out, _, err := runRoot(t, "query", "--batch-size", "10", "go", "lang")
	require.NoError(t, err)

	assert.Equal(t, "go lang", client.LastRequest.Query)
	assert.Contains(t, out, `Results 1-10 of 25 for "go lang"`)
	assert.Contains(t, out, " 1. Article 1")
	assert.Contains(t, out, "about go & more")
	assert.Contains(t, out, "https://en.wikipedia.org/?curid=100")
	assert.Contains(t, out, "Next page: --offset 10")
	assert.NotContains(t, out, "Previous page")
}

func TestQueryCommand_LastPage(t *testing.T) {
	withMockClient(t, searchMock.New().WithResults(articles(25)))

	out, _, err := runRoot(t, "query", "-n", "10", "-o", "20", "go")
	require.NoError(t, err)

	assert.Contains(t, out, `Results 21-25 of 25 for "go"`)
	assert.Contains(t, out, "21. Article 21")
	assert.Contains(t, out, "Previous page: --offset 10")
	assert.NotContains(t, out, "Next page")
}

func TestQueryCommand_UnalignedOffset(t *testing.T) {
	client := searchMock.New().WithResults(articles(25))
	withMockClient(t, client)

	out, _, err := runRoot(t, "query", "-n", "10", "-o", "15", "go")
	require.NoError(t, err)

	assert.Equal(t, 10, client.LastRequest.Options.Offset)
	assert.Contains(t, out, `Results 11-20 of 25 for "go"`)
	assert.Contains(t, out, "11. Article 11\n")
	assert.NotContains(t, out, "Article 21")
	assert.Contains(t, out, "Next page: --offset 20")
}

func TestQueryCommand_JSON(t *testing.T) {
	withMockClient(t, searchMock.New().WithResults(articles(15)))

	out, _, err := runRoot(t, "query", "--json", "-n", "10", "go")
	require.NoError(t, err)

	var got struct {
		TotalHits int                   `json:"totalHits"`
		Results   []search.SearchResult `json:"results"`
		Pager     view.Pager            `json:"pager"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 15, got.TotalHits)
	assert.Len(t, got.Results, 10)
	assert.True(t, got.Pager.ShowNext)
	assert.Equal(t, 10, got.Pager.NextOffset)
	assert.Contains(t, got.Results[0].Snippet, `<span class="searchmatch">`)
}

func TestQueryCommand_NoResults(t *testing.T) {
	withMockClient(t, searchMock.New())

	out, _, err := runRoot(t, "query", "qwxzzy")
	require.NoError(t, err)
	assert.Equal(t, view.MsgNoResults+"\n", out)
}

func TestQueryCommand_Errors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		client  *searchMock.Client
		wantErr error
		wantMsg string
	}{
		{
			name:    "blank query",
			args:    []string{"query", "   "},
			client:  searchMock.New(),
			wantErr: search.ErrEmptyQuery,
			wantMsg: view.MsgEmptyQuery,
		},
		{
			name:    "bad sort",
			args:    []string{"query", "--sort", "sideways", "go"},
			client:  searchMock.New(),
			wantErr: search.ErrInvalidOptions,
			wantMsg: view.MsgInvalidOptions,
		},
		{
			name:    "remote failure",
			args:    []string{"query", "go"},
			client:  searchMock.New().WithError(search.ErrRequestFailed),
			wantErr: search.ErrRequestFailed,
			wantMsg: view.MsgFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withMockClient(t, tt.client)

			out, errOut, err := runRoot(t, tt.args...)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, out)
			assert.Contains(t, errOut, tt.wantMsg)
		})
	}
}

func TestQueryCommand_RequiresText(t *testing.T) {
	_, _, err := runRoot(t, "query")
	assert.Error(t, err)
}

func TestPrintResults_TruncatesSnippet(t *testing.T) {
	long := bytes.Repeat([]byte("word "), 100)
	v := view.ResultsView{
		Query:     "w",
		TotalHits: 1,
		Cards: []view.ResultCard{
			{Title: "Words", Snippet: template.HTML(long), URL: "https://example.org/?curid=1"},
		},
		Pager: view.NewPager(0, 10, 1),
	}

	var buf bytes.Buffer
	printResults(&buf, v)

	assert.Contains(t, buf.String(), "…")
	assert.NotContains(t, buf.String(), "Next page")
}

func TestRootCommand_Subcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "bot", "query"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestBotCommand_RequiresToken(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	withMockClient(t, searchMock.New())

	_, _, err := runRoot(t, "bot")
	assert.ErrorIs(t, err, config.ErrMissingToken)
}
