package usecase

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/Kenny1338/better-paperless-ngx/internal/core/domain"
)

func fixedNow() time.Time {
	return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
}

func TestCleanTitle(t *testing.T) {
	cases := map[string]string{
		`"Title: Stromrechnung  Maerz"`: "Stromrechnung Maerz",
		"Dokument: Vertrag":             "Vertrag",
		"  plain  ":                     "plain",
	}
	for in, want := range cases {
		if got := cleanTitle(in); got != want {
			t.Fatalf("cleanTitle(%q) = %q, want %q", in, got, want)
		}
	}
	long := strings.Repeat("a", 150)
	if got := cleanTitle(long); len(got) != 100 || !strings.HasSuffix(got, "...") {
		t.Fatalf("expected 100 chars ending in ..., got %d %q", len(got), got)
	}
}

func TestTitleGeneratorFallsBack(t *testing.T) {
	g := NewTitleGenerator(&llmFake{err: errors.New("down")})
	g.now = fixedNow

	title, usage := g.Generate(context.Background(), "Stadtwerke Jahresabrechnung\nmore", nil, "")
	if title != "Stadtwerke Jahresabrechnung" || usage.Tokens != 0 {
		t.Fatalf("unexpected fallback %q %+v", title, usage)
	}
	title, _ = g.Generate(context.Background(), "short\nline", nil, "")
	if title != "Document 2024-06-01" {
		t.Fatalf("unexpected generic fallback %q", title)
	}
}

func TestTitleGeneratorUsesModelAnswer(t *testing.T) {
	llm := &llmFake{texts: []string{"'Titel: Kfz-Versicherung 2024'"}, tokens: 30, cost: 0.001}
	title, usage := NewTitleGenerator(llm).Generate(context.Background(), invoiceText, []string{"insurance"}, "")
	if title != "Kfz-Versicherung 2024" || usage.Tokens != 30 {
		t.Fatalf("unexpected %q %+v", title, usage)
	}
	if !strings.Contains(llm.prompts[0], "Tags: insurance") {
		t.Fatalf("expected tag hint in prompt")
	}
}

func TestParseTagList(t *testing.T) {
	got := parseTagList("Rechnung, \"Strom Kosten\"\nx, energie!, rechnung")
	want := []string{"rechnung", "strom-kosten", "energie"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("parseTagList = %v, want %v", got, want)
	}
}

func TestTagEngineMergesRulesAndModel(t *testing.T) {
	llm := &llmFake{texts: []string{"energie, zahlung"}}
	e := NewTagEngine(llm, DefaultTagRules(), TagEngineConfig{RuleBased: true, LLMBased: true, MaxTags: 4})

	tags, _ := e.Generate(context.Background(), "Ihre Rechnung fuer Strom", nil)
	want := []string{"electricity", "energie", "financial", "invoice"}
	if !reflect.DeepEqual(tags, want) {
		t.Fatalf("tags = %v, want %v", tags, want)
	}
}

func TestTagEngineKeepsRuleTagsOnModelFailure(t *testing.T) {
	e := NewTagEngine(&llmFake{err: errors.New("down")}, DefaultTagRules(), TagEngineConfig{RuleBased: true, LLMBased: true})
	tags, _ := e.Generate(context.Background(), "Versicherung Police", nil)
	if !reflect.DeepEqual(tags, []string{"insurance"}) {
		t.Fatalf("unexpected tags %v", tags)
	}
}

func TestParseDate(t *testing.T) {
	cases := map[string]string{
		"2024-03-05":           "2024-03-05",
		"05.03.2024":           "2024-03-05",
		"5/3/2024":             "2024-03-05",
		"2024/03/05":           "2024-03-05",
		"5 March 2024":         "2024-03-05",
		"5 Mar 2024":           "2024-03-05",
		"March 5, 2024":        "2024-03-05",
		"2024-03-05T10:00:00Z": "2024-03-05",
	}
	for in, want := range cases {
		got, ok := normalizeDate(in)
		if !ok || got != want {
			t.Fatalf("normalizeDate(%q) = %q %v, want %q", in, got, ok, want)
		}
	}
	if _, ok := normalizeDate("sometime soon"); ok {
		t.Fatalf("expected failure for free text")
	}
}

func TestExtractWithRules(t *testing.T) {
	x := NewMetadataExtractor(&llmFake{})
	x.now = fixedNow
	content := "Rechnung Nr. RE-2024-001\nDatum 01.02.2024, Lieferung 15.02.2024, alt 01.01.1980, Zukunft 01.01.2031\nSumme 19,99 € und 119,00 €\nUSD 5.00"

	got := x.extractWithRules(content)
	if got["document_date"] != "2024-02-15" {
		t.Fatalf("expected most recent plausible date, got %v", got["document_date"])
	}
	if got["amount"] != 119.0 || got["currency"] != "EUR" {
		t.Fatalf("unexpected amount %v %v", got["amount"], got["currency"])
	}
	if got["invoice_number"] != "RE-2024-001" {
		t.Fatalf("unexpected invoice number %v", got["invoice_number"])
	}
}

func TestMetadataExtractorPrefersModelAndFillsDate(t *testing.T) {
	llm := &llmFake{data: map[string]any{
		"correspondent": "Stadtwerke",
		"due_date":      "31.03.2024",
		"currency":      nil,
		"amount":        42.5,
	}}
	x := NewMetadataExtractor(llm)
	x.now = fixedNow

	got, _ := x.Extract(context.Background(), "Rechnung vom 05.03.2024")
	if got["document_date"] != "2024-03-05" || got["due_date"] != "2024-03-31" {
		t.Fatalf("unexpected dates %v", got)
	}
	if _, ok := got["currency"]; ok {
		t.Fatalf("expected nil values dropped")
	}
	if got["amount"] != 42.5 || got["correspondent"] != "Stadtwerke" {
		t.Fatalf("unexpected metadata %v", got)
	}
}

func TestMetadataExtractorFallsBackToRules(t *testing.T) {
	x := NewMetadataExtractor(&llmFake{err: errors.New("down")})
	x.now = fixedNow
	got, _ := x.Extract(context.Background(), "Invoice #INV42 total $ 12.50")
	if got["invoice_number"] != "INV42" || got["currency"] != "USD" {
		t.Fatalf("unexpected fallback %v", got)
	}
}

func TestCorrespondentMatcherRules(t *testing.T) {
	existing := []domain.Correspondent{
		{ID: 1, Name: "Telekom Deutschland GmbH"},
		{ID: 2, Name: "ARD ZDF Deutschlandradio Beitragsservice"},
	}
	llm := &llmFake{texts: []string{"unused"}}
	m := NewCorrespondentMatcher(llm)

	cases := map[string]string{
		"telekom deutschland gmbh": "Telekom Deutschland GmbH",
		"Telekom":                  "Telekom Deutschland GmbH",
		"ARD ZDF Service":          "ARD ZDF Deutschlandradio Beitragsservice",
	}
	for in, want := range cases {
		if got, _ := m.Match(context.Background(), "", in, existing); got != want {
			t.Fatalf("Match(%q) = %q, want %q", in, got, want)
		}
	}
	if llm.calls() != 0 {
		t.Fatalf("expected rule matches without llm calls")
	}
}

func TestCorrespondentMatcherLLMStep(t *testing.T) {
	existing := []domain.Correspondent{{ID: 1, Name: "EnBW Energie Baden-Wuerttemberg AG"}}

	m := NewCorrespondentMatcher(&llmFake{texts: []string{"EnBW Energie Baden-Wuerttemberg AG"}})
	if got, _ := m.Match(context.Background(), invoiceText, "Stromversorger Sued", existing); got != "EnBW Energie Baden-Wuerttemberg AG" {
		t.Fatalf("expected llm pick, got %q", got)
	}

	m = NewCorrespondentMatcher(&llmFake{texts: []string{"NEW"}})
	if got, _ := m.Match(context.Background(), invoiceText, "Stromversorger Sued", existing); got != "Stromversorger Sued" {
		t.Fatalf("expected extracted name, got %q", got)
	}

	m = NewCorrespondentMatcher(&llmFake{err: errors.New("down")})
	if got, _ := m.Match(context.Background(), invoiceText, "Stromversorger Sued", existing); got != "Stromversorger Sued" {
		t.Fatalf("expected fallback to extracted name, got %q", got)
	}
}

func TestCorrespondentMatcherIgnoresShortNamesInFreeText(t *testing.T) {
	existing := []domain.Correspondent{{ID: 1, Name: "AG"}, {ID: 2, Name: "Stadtwerke München"}}
	const extracted = "Energieversorger Nord"

	m := NewCorrespondentMatcher(&llmFake{texts: []string{"Keiner der Korrespondenten passt, das ist ein unbekannter Absender"}})
	if got, _ := m.Match(context.Background(), invoiceText, extracted, existing); got != extracted {
		t.Fatalf("expected extracted name for a free-text answer, got %q", got)
	}

	m = NewCorrespondentMatcher(&llmFake{texts: []string{" ag "}})
	if got, _ := m.Match(context.Background(), invoiceText, extracted, existing); got != "AG" {
		t.Fatalf("expected exact match on the short name, got %q", got)
	}

	m = NewCorrespondentMatcher(&llmFake{texts: []string{"stadtwerke münchen GmbH"}})
	if got, _ := m.Match(context.Background(), invoiceText, extracted, existing); got != "Stadtwerke München" {
		t.Fatalf("expected near match, got %q", got)
	}
}

func TestStagedStrategyHonoursTogglesAndSkips(t *testing.T) {
	llm := &llmFake{texts: []string{"Neuer Titel"}, data: map[string]any{"correspondent": "Stadtwerke", "document_date": "2024-03-05", "amount": 10.0}}
	s := NewStagedStrategy(
		NewTitleGenerator(llm),
		NewMetadataExtractor(llm),
		NewTagEngine(llm, DefaultTagRules(), TagEngineConfig{RuleBased: true}),
		NewCorrespondentMatcher(llm),
		NewCategorizer(llm),
		NewSummarizer(llm, SummaryConfig{}),
		StagedConfig{
			Features:          StagedFeatures{TitleGeneration: true, Tagging: true, MetadataExtraction: true},
			SkipIfTitleExists: true,
			SkipIfTagsExist:   true,
		},
	)
	snap := NewTaxonomySnapshot(nil, nil, nil)

	doc := domain.Document{ID: 1, Title: "Scan 2024", OriginalFileName: "scan.pdf", Tags: []int{3}}
	decision, _, err := s.Decide(context.Background(), DecisionInput{Document: doc, Content: invoiceText, Snapshot: snap})
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if decision.Title != "" || decision.Tags != nil {
		t.Fatalf("expected title and tags skipped, got %+v", decision)
	}
	if decision.Correspondent != "Stadtwerke" || decision.DocumentDate != "2024-03-05" || decision.CustomFields["amount"] != 10.0 {
		t.Fatalf("unexpected metadata decision %+v", decision)
	}
	if decision.DocumentType != "" || decision.Summary != "" {
		t.Fatalf("expected disabled stages to stay empty, got %+v", decision)
	}

	doc = domain.Document{ID: 2, Title: "scan.pdf", OriginalFileName: "scan.pdf"}
	decision, _, err = s.Decide(context.Background(), DecisionInput{Document: doc, Content: invoiceText, Snapshot: snap})
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if decision.Title != "Neuer Titel" || len(decision.Tags) == 0 {
		t.Fatalf("expected title and tags generated, got %+v", decision)
	}
}

func TestCategorizerReusesExistingTypeName(t *testing.T) {
	c := NewCategorizer(&llmFake{texts: []string{"rechnung."}})
	got, _ := c.Categorize(context.Background(), invoiceText, []domain.DocumentType{{ID: 1, Name: "Rechnung"}})
	if got != "Rechnung" {
		t.Fatalf("expected existing type name, got %q", got)
	}
}

func TestSummarizerCapsLength(t *testing.T) {
	s := NewSummarizer(&llmFake{texts: []string{strings.Repeat("x", 80)}}, SummaryConfig{MaxLength: 50, Style: "bullet_points"})
	got, _ := s.Summarize(context.Background(), invoiceText)
	if len(got) != 50 {
		t.Fatalf("expected 50 chars, got %d", len(got))
	}
}
