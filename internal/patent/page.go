// Package patent turns a patent page into heading-keyed text sections.
package patent

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ppiankov/kgex/internal/model"
	"golang.org/x/net/html"
)

// Section headings produced besides the description headings
const (
	HeadingPreamble = "NIL"
	HeadingClaims   = "CLAIM"
	HeadingAbstract = "ABSTRACT"
)

// DependentPrefix is prepended to the text of a claim that refers to another claim
const DependentPrefix = "DEP*****"

// ErrNoContent is returned when a page has no description, claims or abstract
var ErrNoContent = errors.New("patent: page has no description, claims or abstract")

// ErrNotFound is returned when the patent office has no page for an id
var ErrNotFound = errors.New("patent not found")

var idPattern = regexp.MustCompile(`^[0-9]{4,}[A-Z]?[0-9]?$`)

// Document is the parsed text of a patent page
type Document struct {
	Title    string          `json:"title,omitempty"`
	Sections []model.Section `json:"sections"`
}

// Headings returns the section headings in page order
func (d *Document) Headings() []string {
	out := make([]string, 0, len(d.Sections))
	for _, s := range d.Sections {
		out = append(out, s.Heading)
	}
	return out
}

// section returns the blocks under heading, or nil
func (d *Document) section(heading string) []string {
	for _, s := range d.Sections {
		if s.Heading == heading {
			return s.Blocks
		}
	}
	return nil
}

// NormalizeID strips the country prefix, separators and whitespace from a US patent
// number: "US 10,123,456 B2" becomes "10123456B2".
func NormalizeID(id string) (string, error) {
	cleaned := strings.ToUpper(strings.TrimSpace(id))
	cleaned = strings.TrimPrefix(cleaned, "US")
	cleaned = strings.NewReplacer(",", "", " ", "", "-", "", "/", "").Replace(cleaned)

	if !idPattern.MatchString(cleaned) {
		return "", fmt.Errorf("invalid patent id %q", id)
	}
	return cleaned, nil
}

// URL expands the page template with a normalized id
func URL(template, id string) (string, error) {
	normalized, err := NormalizeID(id)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(template, normalized), nil
}

// ParsePage extracts the description sections, claims and abstract of a patent page.
// Description blocks before the first heading land in the NIL section.
func ParsePage(content string) (*Document, error) {
	root, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	doc := &Document{}
	if t := findFirst(root, isElement("title")); t != nil {
		doc.Title = textOf(t)
	}

	found := false
	if desc := findFirst(root, hasClass("description")); desc != nil {
		found = true
		doc.Sections = descriptionSections(desc)
	} else {
		doc.Sections = []model.Section{{Heading: HeadingPreamble, Blocks: []string{}}}
	}

	if claims := findFirst(root, hasClass("claims")); claims != nil {
		found = true
		doc.Sections = append(doc.Sections, model.Section{Heading: HeadingClaims, Blocks: claimTexts(claims)})
	}

	if abstract := findFirst(root, hasClass("abstract")); abstract != nil {
		found = true
		doc.Sections = append(doc.Sections, model.Section{Heading: HeadingAbstract, Blocks: []string{textOf(abstract)}})
	}

	if !found {
		return nil, ErrNoContent
	}
	return doc, nil
}

func descriptionSections(desc *html.Node) []model.Section {
	sections := []model.Section{{Heading: HeadingPreamble, Blocks: []string{}}}
	current := &sections[0]

	walk(desc, func(n *html.Node) bool {
		if n == desc {
			return true
		}
		switch {
		case isElement("heading")(n):
			sections = append(sections, model.Section{Heading: textOf(n), Blocks: []string{}})
			current = &sections[len(sections)-1]
			return false
		case isElement("div")(n) && !hasDescendant(n, isElement("div")):
			if text := textOf(n); text != "" {
				current.Blocks = append(current.Blocks, text)
			}
			return false
		}
		return true
	})
	return sections
}

func claimTexts(section *html.Node) []string {
	claims := []string{}
	walk(section, func(n *html.Node) bool {
		if n == section || !hasClass("claim")(n) {
			return true
		}
		if text := textOf(n); text != "" {
			if isDependent(n, section) {
				text = DependentPrefix + text
			}
			claims = append(claims, text)
		}
		// nested .claim elements belong to this claim
		return false
	})
	return claims
}

func isDependent(claim, section *html.Node) bool {
	for p := claim.Parent; p != nil && p != section; p = p.Parent {
		if hasClass("claim-dependent")(p) {
			return true
		}
	}
	return hasDescendant(claim, func(n *html.Node) bool {
		return isElement("claim-ref")(n) || hasClass("claim-ref")(n)
	})
}

// walk visits n and its descendants depth first; fn returning false skips the children
func walk(n *html.Node, fn func(*html.Node) bool) {
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

// findFirst returns the first node of the subtree rooted at n matching predicate
func findFirst(n *html.Node, predicate func(*html.Node) bool) *html.Node {
	if predicate(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, predicate); found != nil {
			return found
		}
	}
	return nil
}

func hasDescendant(n *html.Node, predicate func(*html.Node) bool) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if findFirst(c, predicate) != nil {
			return true
		}
	}
	return false
}

func isElement(tag string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == tag
	}
}

func hasClass(class string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		for _, attr := range n.Attr {
			if attr.Key == "class" {
				for _, c := range strings.Fields(attr.Val) {
					if c == class {
						return true
					}
				}
			}
		}
		return false
	}
}

// textOf concatenates the text nodes under n and collapses whitespace
func textOf(n *html.Node) string {
	var b strings.Builder
	walk(n, func(node *html.Node) bool {
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
		}
		return node.Type != html.ElementNode || (node.Data != "script" && node.Data != "style")
	})
	return strings.Join(strings.Fields(b.String()), " ")
}
