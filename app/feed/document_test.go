package feed

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/mmcdole/gofeed"
)

func loadSample(t *testing.T) *Document {
	t.Helper()

	data, err := os.ReadFile("testdata/sample_feed.xml")
	if err != nil {
		t.Fatal(err)
	}

	doc, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return doc
}

func itemTitles(doc *Document) []string {
	var titles []string
	for _, item := range doc.Items() {
		titles = append(titles, item.Title())
	}
	return titles
}

func TestParse_SampleFeed(t *testing.T) {
	doc := loadSample(t)

	if doc.ChannelTitle() != "Sample Podcast" {
		t.Errorf("Expected channel title 'Sample Podcast', got '%s'", doc.ChannelTitle())
	}

	titles := itemTitles(doc)
	expected := []string{"Item Python", "Item Ads", "Item No Keywords"}
	if strings.Join(titles, "|") != strings.Join(expected, "|") {
		t.Errorf("Expected items %v, got %v", expected, titles)
	}
}

func TestParse_MalformedXML(t *testing.T) {
	_, err := Parse([]byte("<rss><channel><title>Broken</channel></rss>"))

	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("Expected ParseError, got %v", err)
	}
}

func TestParse_NoChannel(t *testing.T) {
	_, err := Parse([]byte(`<?xml version="1.0"?><html><body>Not a feed</body></html>`))

	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("Expected ParseError, got %v", err)
	}
}

func TestItem_KeywordsNamespaced(t *testing.T) {
	doc := loadSample(t)
	items := doc.Items()

	if items[0].KeywordsText() != "python, programming" {
		t.Errorf("Expected raw keywords 'python, programming', got '%s'", items[0].KeywordsText())
	}

	keywords := items[0].Keywords()
	if len(keywords) != 2 || !keywords.Contains("python") || !keywords.Contains("programming") {
		t.Errorf("Expected {python, programming}, got %v", keywords.Sorted())
	}

	if len(items[2].Keywords()) != 0 {
		t.Errorf("Expected no keywords, got %v", items[2].Keywords().Sorted())
	}
}

func TestItem_KeywordsBareElement(t *testing.T) {
	doc, err := Parse([]byte(`<rss version="2.0"><channel><title>T</title>
<item><title>Bare</title><keywords>Go, Rust</keywords></item>
</channel></rss>`))
	if err != nil {
		t.Fatal(err)
	}

	keywords := doc.Items()[0].Keywords()
	if !keywords.Contains("go") || !keywords.Contains("rust") {
		t.Errorf("Expected {go, rust}, got %v", keywords.Sorted())
	}
}

func TestItem_KeywordsPrefersNamespaced(t *testing.T) {
	doc, err := Parse([]byte(`<rss version="2.0" xmlns:itunes="http://www.itunes.com/dtds/podcast-1.0.dtd"><channel><title>T</title>
<item><title>Both</title><keywords>bare</keywords><itunes:keywords>namespaced</itunes:keywords></item>
</channel></rss>`))
	if err != nil {
		t.Fatal(err)
	}

	if got := doc.Items()[0].KeywordsText(); got != "namespaced" {
		t.Errorf("Expected namespaced keywords to win, got '%s'", got)
	}
}

func TestParseKeywords_Normalization(t *testing.T) {
	keywords := ParseKeywords(" Python, ADS ")

	if len(keywords) != 2 {
		t.Fatalf("Expected 2 keywords, got %d: %v", len(keywords), keywords.Sorted())
	}
	if !keywords.Contains("python") || !keywords.Contains("ads") {
		t.Errorf("Expected {python, ads}, got %v", keywords.Sorted())
	}
}

func TestParseKeywords_DropsBlanksAndDuplicates(t *testing.T) {
	keywords := ParseKeywords("go,, Go ,GO,  ,")

	if len(keywords) != 1 || !keywords.Contains("go") {
		t.Errorf("Expected {go}, got %v", keywords.Sorted())
	}
}

func TestParseKeywords_UnicodeNormalization(t *testing.T) {
	// "Café" with a precomposed é and "CAFE\u0301" with a combining accent
	keywords := ParseKeywords("Caf\u00e9, CAFE\u0301")

	if len(keywords) != 1 || !keywords.Contains("caf\u00e9") {
		t.Errorf("Expected a single normalized keyword, got %q", keywords.Sorted())
	}
}

func TestSplitCSV(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"", nil},
		{"python", []string{"python"}},
		{" python , ads ,", []string{"python", "ads"}},
		{",,", nil},
	}

	for _, tt := range tests {
		got := SplitCSV(tt.input)
		if strings.Join(got, "|") != strings.Join(tt.expected, "|") || len(got) != len(tt.expected) {
			t.Errorf("SplitCSV(%q) = %v, expected %v", tt.input, got, tt.expected)
		}
	}
}

func TestDocument_BytesIsValidFeed(t *testing.T) {
	doc := loadSample(t)

	out := doc.Bytes()
	if !strings.HasPrefix(string(out), `<?xml version="1.0" encoding="UTF-8"?>`) {
		t.Errorf("Expected XML declaration, got %.60s", out)
	}

	parsed, err := gofeed.NewParser().ParseString(string(out))
	if err != nil {
		t.Fatalf("Output is not a valid feed: %v", err)
	}
	if len(parsed.Items) != 3 {
		t.Errorf("Expected 3 items, got %d", len(parsed.Items))
	}
	if parsed.Title != "Sample Podcast" {
		t.Errorf("Expected title 'Sample Podcast', got '%s'", parsed.Title)
	}
}
