// Package extract turns raw patent text into sentences and sentences into
// design-knowledge records of (head, relation, tail) facts.
package extract

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/ppiankov/kgex/internal/model"
	"github.com/ppiankov/kgex/internal/nlp"
)

var (
	bracketPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\([^()]*\)`),
		regexp.MustCompile(`\[[^\[\]]*\]`),
		regexp.MustCompile(`\{[^{}]*\}`),
		regexp.MustCompile(`<[^<>}]*>`),
	}
	claimWord  = regexp.MustCompile(`(?i)claim`)
	quoteChars = strings.NewReplacer(`"`, "", `'`, "", "“", "", "”", "", "‘", "", "’", "")
	dashChars  = strings.NewReplacer("-", " ", "_", " ")
)

// Normalizer cleans raw patent text into sentence-ready lines
type Normalizer struct {
	parser       nlp.Parser
	roman        map[string]bool
	replacements []model.Replacement
	depMarker    string
	delimiter    string
	logger       *slog.Logger
}

// NewNormalizer creates a normalizer; parser is used to find noun phrases in
// dependent-claim lines
func NewNormalizer(parser nlp.Parser, cfg model.TextConfig, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	roman := make(map[string]bool, len(cfg.RomanNumerals))
	for _, r := range cfg.RomanNumerals {
		roman[r] = true
	}
	return &Normalizer{
		parser:       parser,
		roman:        roman,
		replacements: cfg.Replacements,
		depMarker:    cfg.DependentMarker,
		delimiter:    cfg.ClaimDelimiter,
		logger:       logger,
	}
}

// Normalize applies, in order: sequence-number stripping, dash removal, bracket
// removal, quote removal, space collapsing, the replacement table and claim-line
// processing. Output lines are joined by a blank line. Normalize is idempotent.
func (n *Normalizer) Normalize(raw string) string {
	s := n.StripSequenceNumber(raw)
	s = dashChars.Replace(s)
	s = RemoveBrackets(s)
	s = quoteChars.Replace(s)
	s = trimLeadingSpace(collapseSpaces(s))

	for _, r := range n.replacements {
		if r.From != "" {
			s = strings.ReplaceAll(s, r.From, r.To)
		}
	}
	s = collapseSpaces(s)

	return n.processClaims(s)
}

// StripSequenceNumber removes leading "<n>. " prefixes where <n> is a number, a
// single lowercase letter or a Roman numeral
func (n *Normalizer) StripSequenceNumber(s string) string {
	for {
		dot := strings.Index(s, ".")
		if dot <= 0 {
			return s
		}
		seq := s[:dot]
		if !isNumeric(seq) && !isLowerLetter(seq) && !n.roman[seq] {
			return s
		}
		if !strings.HasPrefix(s, seq+". ") {
			return s
		}
		s = s[len(seq)+2:]
	}
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func isLowerLetter(s string) bool {
	return len(s) == 1 && s[0] >= 'a' && s[0] <= 'z'
}

// RemoveBrackets deletes (...), [...], {...} and <...> spans until none remain
func RemoveBrackets(s string) string {
	for {
		prev := s
		for _, re := range bracketPatterns {
			s = re.ReplaceAllString(s, "")
		}
		if s == prev {
			return s
		}
	}
}

func collapseSpaces(s string) string {
	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}
	return s
}

// trimLeadingSpace drops a single leading whitespace character
func trimLeadingSpace(s string) string {
	if s != "" && (s[0] == ' ' || s[0] == '\t' || s[0] == '\n' || s[0] == '\r' || s[0] == '\f' || s[0] == '\v') {
		return s[1:]
	}
	return s
}

func (n *Normalizer) processClaims(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line == "" {
			continue
		}
		line = trimLeadingSpace(claimWord.ReplaceAllString(line, "claim"))
		if out := n.removeClaimPhrases(line); out != "" {
			lines = append(lines, out)
		}
	}
	return strings.Join(lines, "\n\n")
}

// removeClaimPhrases collapses "X of claim N, wherein ..." back-references in
// dependent-claim lines down to their antecedent noun phrase
func (n *Normalizer) removeClaimPhrases(line string) string {
	line = n.StripSequenceNumber(line)
	parts := strings.Split(line, n.delimiter)
	if n.delimiter == "" || parts[0] != n.depMarker {
		return line
	}
	if len(parts) != 2 {
		n.logger.Debug("malformed dependent claim line left as is", "line", line)
		return line
	}

	body := n.StripSequenceNumber(trimLeadingSpace(parts[1]))
	if n.parser == nil {
		return body
	}
	doc, err := n.parser.Parse(body)
	if err != nil {
		n.logger.Warn("parse dependent claim", "error", err)
		return body
	}

	out := elide(body, claimRanges(doc))
	return strings.TrimRight(trimLeadingSpace(collapseSpaces(out)), " ")
}

type byteRange struct{ start, end int }

// claimRanges finds, for every noun chunk mentioning "claim", the text between the
// end of the previous chunk and the end of the claim phrase (including trailing
// claim numbers). A single space, comma or semicolon after the phrase goes with it;
// terminal punctuation stays.
func claimRanges(doc *nlp.Doc) []byteRange {
	var ranges []byteRange
	for i := len(doc.Chunks) - 1; i > 0; i-- {
		chunk := doc.Chunks[i]
		if !strings.Contains(doc.SpanText(chunk), "claim") {
			continue
		}
		last := chunk.End - 1
		for last+1 < len(doc.Tokens) && doc.Tokens[last+1].Tag == "CD" {
			last++
		}
		start := doc.Tokens[doc.Chunks[i-1].End-1].End()
		end := doc.Tokens[last].End()
		if end < len(doc.Text) && strings.IndexByte(" ,;", doc.Text[end]) >= 0 {
			start++
			end++
		}
		if start < end {
			ranges = append(ranges, byteRange{start: start, end: end})
		}
	}
	return ranges
}

func elide(s string, ranges []byteRange) string {
	if len(ranges) == 0 {
		return s
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].start < ranges[j].start })

	var b strings.Builder
	pos := 0
	for _, r := range ranges {
		if r.start > pos {
			b.WriteString(s[pos:r.start])
		}
		if r.end > pos {
			pos = r.end
		}
	}
	b.WriteString(s[pos:])
	return b.String()
}
