package htmltext

import "testing"

func TestText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello world", "hello world"},
		{"entities", "Tom &amp; Jerry &quot;cartoon&quot;", `Tom & Jerry "cartoon"`},
		{"searchmatch stripped", `The <span class="searchmatch">Go</span> language`, "The Go language"},
		{"whitespace collapsed", "  a \n\t b  ", "a b"},
		{"blocks separated", "<p>one</p><p>two</p>", "one two"},
		{"br separates", "one<br>two<br/>three", "one two three"},
		{"script skipped", "a<script>alert(1)</script>b", "ab"},
		{"style skipped", "<style>p{color:red}</style><p>text</p>", "text"},
		{"editsection skipped", `<h2>History<span class="mw-editsection">[edit]</span></h2><p>Body</p>`, "History Body"},
		{"nested in skipped", `<sup class="reference"><a href="#c1">[<span>1</span>]</a></sup>Fact`, "Fact"},
		{"unclosed tags", "<p><b>bold", "bold"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Text(tt.in); got != tt.want {
				t.Errorf("Text(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestHighlight(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "match wrapped",
			in:   `The <span class="searchmatch">Go</span> programming language`,
			want: "The <b>Go</b> programming language",
		},
		{
			name: "several matches",
			in:   `<span class="searchmatch">a</span> and <span class="searchmatch">b</span>`,
			want: "<b>a</b> and <b>b</b>",
		},
		{
			name: "text escaped",
			in:   `x &lt; y <span class="searchmatch">&amp;</span>`,
			want: "x &lt; y <b>&amp;</b>",
		},
		{
			name: "other markup dropped",
			in:   `<i>italic</i> <a href="/x">link</a>`,
			want: "italic link",
		},
		{
			name: "plain span kept as text",
			in:   `<span class="other"><span class="searchmatch">in</span>ner</span>`,
			want: "<b>in</b>ner",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Highlight(tt.in, "<b>", "</b>"); got != tt.want {
				t.Errorf("Highlight(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly", 7, "exactly"},
		{"hello world", 6, "hello…"},
		{"привет мир", 7, "привет…"},
		{"anything", 0, "anything"},
	}

	for _, tt := range tests {
		if got := Truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
