// Package prompt builds the instructions sent to the generation API. Every
// function here is pure.
package prompt

import (
	"errors"
	"fmt"
	"strings"
)

type Style string

const (
	StyleBusiness   Style = "business"
	StyleAcademic   Style = "academic"
	StylePersonal   Style = "personal"
	StyleSimplified Style = "simplified"
	StyleAuto       Style = "auto"
)

// FixedStyles lists the styles that carry their own instruction block, in menu order.
var FixedStyles = []Style{StyleBusiness, StyleAcademic, StylePersonal, StyleSimplified}

type Adjustment string

const (
	AdjustSofter Adjustment = "softer"
	AdjustHarder Adjustment = "harder"
	AdjustFormal Adjustment = "formal"
)

var Adjustments = []Adjustment{AdjustSofter, AdjustHarder, AdjustFormal}

var (
	ErrUnknownStyle      = errors.New("unknown style")
	ErrUnknownAdjustment = errors.New("unknown adjustment")
	ErrEmptySource       = errors.New("source text is empty")
)

// OutputOnlyDirective closes every prompt: the reply is shown to the user verbatim.
const OutputOnlyDirective = "Reply with the rewritten text only. Do not add greetings, explanations, " +
	"comments, quotation marks or any other text before or after it."

const preserveMeaning = "Preserve the original meaning exactly: do not add facts, promises or details " +
	"that are not in the source, and do not drop any of its points."

var styleBlocks = map[Style]string{
	StyleBusiness: "BUSINESS STYLE: polite, concise and professional. Use complete sentences, " +
		"neutral vocabulary and a clear request or statement. No slang, no emoji, no abbreviations " +
		"such as \"u\" or \"tmrw\".",
	StyleAcademic: "ACADEMIC STYLE: formal and precise. Prefer impersonal constructions, exact " +
		"terminology and well-structured sentences. Avoid colloquialisms and emotional wording.",
	StylePersonal: "PERSONAL STYLE: warm, friendly and natural, as written to someone the author " +
		"knows well. Keep it sincere and relaxed, but grammatically correct.",
	StyleSimplified: "SIMPLIFIED STYLE: plain language that anyone can understand. Use short " +
		"sentences and common words, and explain or replace jargon.",
}

var styleLabels = map[Style]string{
	StyleBusiness:   "Business",
	StyleAcademic:   "Academic",
	StylePersonal:   "Personal",
	StyleSimplified: "Simplified",
	StyleAuto:       "Auto (describe the addressee)",
}

var adjustLabels = map[Adjustment]string{
	AdjustSofter: "Softer",
	AdjustHarder: "Firmer",
	AdjustFormal: "More formal",
}

var adjustInstructions = map[Adjustment]string{
	AdjustSofter: "Make the text below softer: more tactful and gentle, less demanding, while keeping its message.",
	AdjustHarder: "Make the text below firmer: more direct and assertive, with a clear expectation, while staying polite.",
	AdjustFormal: "Make the text below more formal: a higher register, no contractions, no casual phrasing.",
}

// adjustHints tune an adjustment to the register the text was first written in.
var adjustHints = map[Style]map[Adjustment]string{
	StyleBusiness: {
		AdjustSofter: "Keep it suitable for a work email to a colleague or client.",
		AdjustHarder: "It may read like a follow-up on an overdue request, without threats.",
		AdjustFormal: "Aim for the tone of official business correspondence.",
	},
	StyleAcademic: {
		AdjustSofter: "Use hedging where appropriate, as in a careful scholarly remark.",
		AdjustHarder: "State the claims with confidence and without hedging.",
		AdjustFormal: "Aim for the tone of a journal article.",
	},
	StylePersonal: {
		AdjustSofter: "Keep the warmth; it should still sound like the author.",
		AdjustHarder: "It may be frank, as between close people, but not rude.",
		AdjustFormal: "Keep it friendly, only more restrained.",
	},
	StyleSimplified: {
		AdjustSofter: "Keep the words simple.",
		AdjustHarder: "Keep the words simple and the sentences short.",
		AdjustFormal: "Raise the register but keep every sentence easy to read.",
	},
}

func (s Style) Valid() bool {
	_, ok := styleLabels[s]
	return ok
}

// Fixed reports whether s is one of the four styles with its own instruction block.
func (s Style) Fixed() bool {
	_, ok := styleBlocks[s]
	return ok
}

func (s Style) Label() string {
	if l, ok := styleLabels[s]; ok {
		return l
	}
	return string(s)
}

func (a Adjustment) Valid() bool {
	_, ok := adjustInstructions[a]
	return ok
}

func (a Adjustment) Label() string {
	if l, ok := adjustLabels[a]; ok {
		return l
	}
	return string(a)
}

func ParseStyle(raw string) (Style, error) {
	s := Style(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStyle, raw)
	}
	return s, nil
}

func ParseAdjustment(raw string) (Adjustment, error) {
	a := Adjustment(strings.ToLower(strings.TrimSpace(raw)))
	if !a.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownAdjustment, raw)
	}
	return a, nil
}

// StyleBlock returns the instruction block of a fixed style.
func StyleBlock(s Style) (string, bool) {
	b, ok := styleBlocks[s]
	return b, ok
}

// BuildStyle asks for source to be rewritten in one fixed style.
func BuildStyle(source string, style Style) (string, error) {
	block, ok := styleBlocks[style]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStyle, style)
	}
	if strings.TrimSpace(source) == "" {
		return "", ErrEmptySource
	}

	var b strings.Builder
	b.WriteString("Rewrite the message below in the following style.\n\n")
	b.WriteString(block)
	b.WriteString("\n\n")
	writeQuoted(&b, "Message", source)
	b.WriteString(preserveMeaning)
	b.WriteString("\n")
	b.WriteString(OutputOnlyDirective)
	return b.String(), nil
}

// BuildAutoStyle lets the model choose among all fixed styles given who the
// message is for.
func BuildAutoStyle(source, addressee string) (string, error) {
	if strings.TrimSpace(source) == "" {
		return "", ErrEmptySource
	}

	var b strings.Builder
	b.WriteString("Rewrite the message below for the addressee described by the author. ")
	b.WriteString("First decide which of these styles fits the addressee best:\n\n")
	for _, s := range FixedStyles {
		b.WriteString("- ")
		b.WriteString(styleBlocks[s])
		b.WriteString("\n")
	}
	b.WriteString("\nIf none of them clearly fits, use a neutral, polite register. ")
	b.WriteString("Do not name the chosen style in the reply.\n\n")
	writeQuoted(&b, "Addressee", addressee)
	writeQuoted(&b, "Message", source)
	b.WriteString(preserveMeaning)
	b.WriteString("\n")
	b.WriteString(OutputOnlyDirective)
	return b.String(), nil
}

// BuildAdjust shifts the tone of an already rewritten text. style is the style
// the text was produced with; auto or empty gets no style-specific hint.
func BuildAdjust(last string, adj Adjustment, style Style) (string, error) {
	instr, ok := adjustInstructions[adj]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAdjustment, adj)
	}
	if strings.TrimSpace(last) == "" {
		return "", ErrEmptySource
	}

	var b strings.Builder
	b.WriteString(instr)
	if hint, ok := adjustHints[style][adj]; ok {
		b.WriteString(" ")
		b.WriteString(hint)
	}
	b.WriteString("\n\n")
	writeQuoted(&b, "Text", last)
	b.WriteString(preserveMeaning)
	b.WriteString("\n")
	b.WriteString(OutputOnlyDirective)
	return b.String(), nil
}

// BuildRegenerate produces the prompt for an independent new draft from the
// original source text.
func BuildRegenerate(source string, style Style, addressee string) (string, error) {
	if style == StyleAuto {
		return BuildAutoStyle(source, addressee)
	}
	return BuildStyle(source, style)
}

func writeQuoted(b *strings.Builder, label, text string) {
	b.WriteString(label)
	b.WriteString(":\n\"\"\"\n")
	b.WriteString(text)
	b.WriteString("\n\"\"\"\n\n")
}
