package extract

import (
	"testing"

	"github.com/ppiankov/kgex/internal/model"
	"github.com/ppiankov/kgex/internal/nlp/nlptest"
)

func newTestNormalizer() *Normalizer {
	return NewNormalizer(nlptest.New(nil), model.DefaultConfig().Text, nil)
}

func TestStripSequenceNumber(t *testing.T) {
	n := newTestNormalizer()

	tests := []struct {
		in   string
		want string
	}{
		{"3. The motor rotates the shaft.", "The motor rotates the shaft."},
		{"iv. Connect the pipe.", "Connect the pipe."},
		{"IV. Connect the pipe.", "Connect the pipe."},
		{"b. The housing.", "The housing."},
		{"12. 3. Nested numbering.", "Nested numbering."},
		{"3.5 mm of travel.", "3.5 mm of travel."},
		{"B. Uppercase letters are not sequence numbers.", "B. Uppercase letters are not sequence numbers."},
		{"ab. Two letters.", "ab. Two letters."},
		{"No period here", "No period here"},
		{"3.The gear", "3.The gear"},
	}

	for _, tt := range tests {
		if got := n.StripSequenceNumber(tt.in); got != tt.want {
			t.Errorf("StripSequenceNumber(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRemoveBrackets(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"The motor (M1) drives", "The motor  drives"},
		{"a [0012] b {x} c <sub>", "a  b  c "},
		{"deep (a (b [c {d}])) end", "deep  end"},
		{"unbalanced (open", "unbalanced (open"},
	}

	for _, tt := range tests {
		if got := RemoveBrackets(tt.in); got != tt.want {
			t.Errorf("RemoveBrackets(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	n := newTestNormalizer()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "sequence number",
			in:   "3. The motor rotates the shaft.",
			want: "The motor rotates the shaft.",
		},
		{
			name: "brackets hyphens quotes",
			in:   `The "self-locking" motor (M1) drives the shaft_2 [0034].`,
			want: "The self locking motor drives the shaft 2.",
		},
		{
			name: "replacements",
			in:   "As shown in FIG. 3, the gear is heated to 100 °C, e.g. by a coil.",
			want: "As shown in Figure 3, the gear is heated to 100 degrees Celsius, for example by a coil.",
		},
		{
			name: "claim casing",
			in:   "The device of Claim 2 or CLAIMS 3.",
			want: "The device of claim 2 or claimS 3.",
		},
		{
			name: "dependent claim back reference",
			in:   "DEP*****3. The device of claim 1, wherein the gear is rigid.",
			want: "The device wherein the gear is rigid.",
		},
		{
			name: "dependent claim reference ends the sentence",
			in:   "DEP*****2. The device of claim 1.",
			want: "The device.",
		},
		{
			name: "dependent claim reference before a semicolon",
			in:   "DEP*****2. The device of claim 1; the gear is rigid.",
			want: "The device the gear is rigid.",
		},
		{
			name: "abbreviated number",
			in:   "The gear No. 5 engages the DiNo. shaft.",
			want: "The gear number 5 engages the DiNo. shaft.",
		},
		{
			name: "malformed dependent claim",
			in:   "DEP*****a*****b",
			want: "DEP*****a*****b",
		},
		{
			name: "lines rejoined and empty dropped",
			in:   "1. The gear.\n\n   \n2. The shaft.",
			want: "The gear.\n\nThe shaft.",
		},
		{
			name: "leading whitespace",
			in:   "   The gear.",
			want: "The gear.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := n.Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q)\n got %q\nwant %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	n := newTestNormalizer()

	inputs := []string{
		"3. The motor (M1) drives the shaft via a coupling.",
		"iv. Connect the pipe.",
		`A "quoted" value of 5 µm & more ≥ 2 , ok .`,
		"DEP*****4. The assembly of claim 1 and claim 2, wherein the frame is steel.",
		"DEP*****x*****y",
		"1. 2. a. The gear.\n\n\nb. The shaft (S) — rotates.",
		"Temperature of 100°C and FIGS. 1 2 show e.g., i.e. No. 5.",
		"DEP*****2. The device of claim 1.",
		"(x) iv. DEP*****claim ",
		"  DEP*****-a. -",
		"DEP***** 3. The gear of claim 2, wherein it rotates.",
		"",
	}

	for _, in := range inputs {
		once := n.Normalize(in)
		twice := n.Normalize(once)
		if once != twice {
			t.Errorf("not idempotent for %q:\n once %q\ntwice %q", in, once, twice)
		}
	}
}

func TestNormalize_MultipleClaimReferences(t *testing.T) {
	n := newTestNormalizer()

	got := n.Normalize("DEP*****4. The assembly of claim 1 and the frame of claim 2, wherein the frame is steel.")
	want := "The assembly and the frame wherein the frame is steel."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestNormalize_DependentClaimEndings(t *testing.T) {
	n := NewNormalizer(nlptest.New(map[string]string{"according": "VBG", "as": "IN", "recited": "VBN"}), model.DefaultConfig().Text, nil)

	tests := []struct {
		in   string
		want string
	}{
		{"DEP*****2. The device according to claim 1.", "The device."},
		{"DEP*****5. The gearbox as recited in claim 4.", "The gearbox."},
		{"DEP*****6. The gearbox as recited in claim 4, wherein the shaft is rigid.", "The gearbox wherein the shaft is rigid."},
	}

	for _, tt := range tests {
		if got := n.Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalize_SequenceNumberBeforeMarker(t *testing.T) {
	n := newTestNormalizer()

	tests := []struct {
		in   string
		want string
	}{
		{"(x) iv. DEP*****claim ", "claim"},
		{"  DEP*****-a. -", ""},
		{"DEP***** 3. The device of claim 1, wherein the gear is rigid.", "The device wherein the gear is rigid."},
	}

	for _, tt := range tests {
		if got := n.Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
