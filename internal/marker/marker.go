// Package marker decorates a sentence with {HEAD ~ ...} and {TAIL ~ ...} regions
// around a candidate entity pair, the input format of the relation tagger.
package marker

import (
	"errors"
	"fmt"
	"strings"
)

const (
	HeadOpen = "{HEAD ~ "
	TailOpen = "{TAIL ~ "
	Close    = "}"
)

// ErrOverlap is returned by MarkChecked when the spans overlap or fall outside the text
var ErrOverlap = errors.New("marker: spans overlap or are out of range")

// Span is a byte range [Start, End) of the sentence
type Span struct {
	Start int
	End   int
}

type segment struct {
	text   string
	marker bool
}

// Mark returns text with head and tail wrapped in their marker regions, in the order
// they occur. Invalid spans yield the text unchanged; use MarkChecked to detect them.
func Mark(text string, head, tail Span) string {
	out, err := MarkChecked(text, head, tail)
	if err != nil {
		return text
	}
	return out
}

// MarkChecked is Mark with precondition errors reported
func MarkChecked(text string, head, tail Span) (string, error) {
	if !valid(text, head) || !valid(text, tail) {
		return "", fmt.Errorf("%w: head=%v tail=%v len=%d", ErrOverlap, head, tail, len(text))
	}
	if head.Start < tail.End && tail.Start < head.End {
		return "", fmt.Errorf("%w: head=%v tail=%v", ErrOverlap, head, tail)
	}

	first, second := head, tail
	firstOpen, secondOpen := HeadOpen, TailOpen
	if tail.Start < head.Start {
		first, second = tail, head
		firstOpen, secondOpen = TailOpen, HeadOpen
	}

	segs := []segment{
		{text: text[:first.Start]},
		{text: firstOpen, marker: true},
		{text: text[first.Start:first.End]},
		{text: Close, marker: true},
		{text: text[first.End:second.Start]},
		{text: secondOpen, marker: true},
		{text: text[second.Start:second.End]},
		{text: Close, marker: true},
		{text: text[second.End:]},
	}

	size := len(text)
	for _, s := range segs {
		if s.marker {
			size += len(s.text)
		}
	}

	var b strings.Builder
	b.Grow(size)
	for _, s := range segs {
		b.WriteString(s.text)
	}
	return b.String(), nil
}

func valid(text string, s Span) bool {
	return s.Start >= 0 && s.Start <= s.End && s.End <= len(text)
}

// Region is the location of one marker region in a marked text.
// Outer covers the decoration, Inner the entity text.
type Region struct {
	Outer Span
	Inner Span
}

// Regions locates the head and tail regions of a marked text
func Regions(marked string) (head, tail Region, ok bool) {
	head, okHead := find(marked, HeadOpen)
	tail, okTail := find(marked, TailOpen)
	return head, tail, okHead && okTail
}

func find(marked, open string) (Region, bool) {
	start := strings.Index(marked, open)
	if start < 0 {
		return Region{}, false
	}
	inner := start + len(open)
	end := strings.Index(marked[inner:], Close)
	if end < 0 {
		return Region{}, false
	}
	end += inner
	return Region{
		Outer: Span{Start: start, End: end + len(Close)},
		Inner: Span{Start: inner, End: end},
	}, true
}

// Strip removes both marker decorations, reconstructing the unmarked text
func Strip(marked string) string {
	head, tail, ok := Regions(marked)
	if !ok {
		return marked
	}

	first, second := head, tail
	if tail.Outer.Start < head.Outer.Start {
		first, second = tail, head
	}

	var b strings.Builder
	b.Grow(len(marked))
	b.WriteString(marked[:first.Outer.Start])
	b.WriteString(marked[first.Inner.Start:first.Inner.End])
	b.WriteString(marked[first.Outer.End:second.Outer.Start])
	b.WriteString(marked[second.Inner.Start:second.Inner.End])
	b.WriteString(marked[second.Outer.End:])
	return b.String()
}
