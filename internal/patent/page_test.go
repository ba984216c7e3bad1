package patent

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

const samplePage = `<!DOCTYPE html>
<html><head><title>US1234567A - Gear coupling</title></head>
<body>
<section itemprop="abstract"><div class="abstract">A gear   coupling
 for a motor shaft.</div></section>
<section itemprop="description">
<div class="description">
  <div class="description-paragraph">Preamble text.</div>
  <heading>TECHNICAL FIELD</heading>
  <div class="description-paragraph">The invention relates to <b>couplings</b>.</div>
  <heading>DETAILED DESCRIPTION</heading>
  <div class="description-line">
    <div class="description-paragraph">1. The gear drives the shaft.</div>
    <div class="description-paragraph">2. The shaft rotates.</div>
  </div>
  <div class="description-paragraph"></div>
</div>
</section>
<section itemprop="claims">
<div class="claims">
  <div class="claim" num="1"><div class="claim-text">1. A coupling comprising a gear.</div></div>
  <div class="claim-dependent">
    <div class="claim" num="2"><div class="claim-text">2. The coupling of claim 1, wherein the gear is steel.</div></div>
  </div>
  <div class="claim" num="3"><div class="claim-text">3. The coupling of <claim-ref idref="CLM-1">claim 1</claim-ref>, further comprising a shaft.</div></div>
</div>
</section>
</body></html>`

func TestParsePage(t *testing.T) {
	doc, err := ParsePage(samplePage)
	if err != nil {
		t.Fatalf("ParsePage failed: %v", err)
	}

	if doc.Title != "US1234567A - Gear coupling" {
		t.Errorf("Unexpected title %q", doc.Title)
	}

	wantHeadings := []string{"NIL", "TECHNICAL FIELD", "DETAILED DESCRIPTION", "CLAIM", "ABSTRACT"}
	if got := doc.Headings(); !reflect.DeepEqual(got, wantHeadings) {
		t.Fatalf("Expected headings %v, got %v", wantHeadings, got)
	}

	tests := []struct {
		heading string
		want    []string
	}{
		{"NIL", []string{"Preamble text."}},
		{"TECHNICAL FIELD", []string{"The invention relates to couplings."}},
		{"DETAILED DESCRIPTION", []string{"1. The gear drives the shaft.", "2. The shaft rotates."}},
		{"CLAIM", []string{
			"1. A coupling comprising a gear.",
			"DEP*****2. The coupling of claim 1, wherein the gear is steel.",
			"DEP*****3. The coupling of claim 1, further comprising a shaft.",
		}},
		{"ABSTRACT", []string{"A gear coupling for a motor shaft."}},
	}

	for _, tt := range tests {
		t.Run(tt.heading, func(t *testing.T) {
			if got := doc.section(tt.heading); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestParsePage_ClaimsOnly(t *testing.T) {
	doc, err := ParsePage(`<html><body><div class="claims"><div class="claim">1. A gear.</div></div></body></html>`)
	if err != nil {
		t.Fatalf("ParsePage failed: %v", err)
	}
	if got := doc.Headings(); !reflect.DeepEqual(got, []string{"NIL", "CLAIM"}) {
		t.Errorf("Unexpected headings %v", got)
	}
	if len(doc.section("NIL")) != 0 {
		t.Errorf("Expected empty NIL section, got %v", doc.section("NIL"))
	}
}

func TestParsePage_NoContent(t *testing.T) {
	_, err := ParsePage(`<html><body><p>Not found</p></body></html>`)
	if !errors.Is(err, ErrNoContent) {
		t.Errorf("Expected ErrNoContent, got %v", err)
	}
}

func TestNormalizeID(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "10123456", want: "10123456"},
		{in: "US 10,123,456 B2", want: "10123456B2"},
		{in: "us7654321", want: "7654321"},
		{in: "  9876543A1 ", want: "9876543A1"},
		{in: "", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "12", wantErr: true},
		{in: "1234567/../x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeID(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error for %q, got %q", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestURL(t *testing.T) {
	got, err := URL("https://patents.google.com/patent/US%s", "US 7,654,321")
	if err != nil {
		t.Fatalf("URL failed: %v", err)
	}
	if got != "https://patents.google.com/patent/US7654321" {
		t.Errorf("Unexpected URL %q", got)
	}
	if _, err := URL("https://patents.google.com/patent/US%s", "x"); err == nil || !strings.Contains(err.Error(), "invalid patent id") {
		t.Errorf("Expected invalid id error, got %v", err)
	}
}
