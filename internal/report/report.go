// Package report normalizes failure-report documents of unknown byte encoding
// into a canonical in-memory form. Encoding is sniffed statistically first;
// when the sniffed encoding fails, an ordered fallback chain of common
// encodings is tried until one both decodes and parses as JSON.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/dshills/testmend/internal/fallback"
	"github.com/dshills/testmend/internal/schema"
)

// UnreadableError reports a document that could not be decoded or parsed by
// any encoding in the fallback chain. When a decode succeeded but the content
// was not valid JSON, Offset and Excerpt point at the offending content.
type UnreadableError struct {
	Path    string
	Tried   []string
	Offset  int64  // byte offset of the first JSON syntax error, -1 if none
	Excerpt string // short escaped excerpt around the offending content
	Err     error
}

func (e *UnreadableError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "report: unreadable document %s (tried %s)", e.Path, strings.Join(e.Tried, ", "))
	if e.Offset >= 0 {
		fmt.Fprintf(&sb, ": invalid JSON at byte %d near %q", e.Offset, e.Excerpt)
	}
	return sb.String()
}

func (e *UnreadableError) Unwrap() error { return e.Err }

// utf16Decoder builds a UTF-16 decoder for the given endianness. A BOM, when
// present, overrides the declared endianness (matching Python's utf-16 codecs).
func utf16Decoder(endian unicode.Endianness) *encoding.Decoder {
	return unicode.UTF16(endian, unicode.UseBOM).NewDecoder()
}

// candidate is one entry in the encoding fallback chain.
type candidate struct {
	name   string
	decode func(raw []byte) (string, error)
}

func decodeUTF8(raw []byte) (string, error) {
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("invalid UTF-8 byte sequence")
	}
	// NUL bytes are technically valid UTF-8 but never appear in real report
	// text; they are the signature of BOM-less UTF-16, so defer to it.
	if bytes.IndexByte(raw, 0) >= 0 {
		return "", fmt.Errorf("NUL bytes present; not treating as UTF-8")
	}
	return string(raw), nil
}

func decodeUTF8BOM(raw []byte) (string, error) {
	raw = bytes.TrimPrefix(raw, []byte{0xEF, 0xBB, 0xBF})
	return decodeUTF8(raw)
}

func decodeUTF16(endian unicode.Endianness) func(raw []byte) (string, error) {
	return func(raw []byte) (string, error) {
		if len(raw)%2 != 0 {
			return "", fmt.Errorf("odd-length input cannot be UTF-16")
		}
		out, err := utf16Decoder(endian).Bytes(raw)
		if err != nil {
			return "", fmt.Errorf("utf-16 decode: %w", err)
		}
		// The x/text decoder substitutes U+FFFD instead of failing; treat any
		// substitution as a failed decode so the chain can move on.
		if bytes.ContainsRune(out, utf8.RuneError) {
			return "", fmt.Errorf("utf-16 decode produced replacement characters")
		}
		return string(out), nil
	}
}

func decodeLatin1(raw []byte) (string, error) {
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("latin-1 decode: %w", err)
	}
	return string(out), nil
}

// fallbackChain is the ordered list of encodings tried after (or instead of)
// the sniffed one. Latin-1 is last because it accepts any byte sequence.
var fallbackChain = []candidate{
	{"utf-8", decodeUTF8},
	{"utf-8-sig", decodeUTF8BOM},
	{"utf-16le", decodeUTF16(unicode.LittleEndian)},
	{"utf-16be", decodeUTF16(unicode.BigEndian)},
	{"latin-1", decodeLatin1},
}

// sniff maps the statistical detector's best guess onto a fallback-chain
// candidate, or "" when the guess has no counterpart in the chain.
func sniff(raw []byte) string {
	det := chardet.NewTextDetector()
	res, err := det.DetectBest(raw)
	if err != nil {
		return ""
	}
	switch strings.ToUpper(res.Charset) {
	case "UTF-8":
		return "utf-8"
	case "UTF-16LE":
		return "utf-16le"
	case "UTF-16BE":
		return "utf-16be"
	case "ISO-8859-1", "WINDOWS-1252":
		return "latin-1"
	}
	return ""
}

// chain returns the attempt order for raw: the sniffed encoding first (when
// recognized), then the remaining fallback encodings in their fixed order.
func chain(raw []byte) []candidate {
	best := sniff(raw)
	if best == "" {
		return fallbackChain
	}
	ordered := make([]candidate, 0, len(fallbackChain))
	for _, c := range fallbackChain {
		if c.name == best {
			ordered = append(ordered, c)
		}
	}
	for _, c := range fallbackChain {
		if c.name != best {
			ordered = append(ordered, c)
		}
	}
	return ordered
}

// Parse decodes and parses raw into a FailureReport. path is used only for
// diagnostics. The first encoding that yields both a clean decode and valid
// JSON wins; when none does, the returned error is an *UnreadableError.
func Parse(raw []byte, path string) (*schema.FailureReport, error) {
	if len(raw) == 0 {
		return nil, &UnreadableError{Path: path, Tried: nil, Offset: -1, Err: fmt.Errorf("empty document")}
	}

	cands := chain(raw)

	// Diagnostics from the first attempt that decoded cleanly but failed to
	// parse; a decodable-but-unparseable document is the interesting case to
	// surface, not the encodings that never decoded at all.
	syntaxOffset := int64(-1)
	syntaxExcerpt := ""

	doc, winner, err := fallback.First(cands, func(c candidate) (schema.Document, error) {
		text, derr := c.decode(raw)
		if derr != nil {
			return schema.Document{}, fmt.Errorf("%s: %w", c.name, derr)
		}
		var d schema.Document
		if jerr := json.Unmarshal([]byte(text), &d); jerr != nil {
			if syntaxOffset < 0 {
				if se, ok := jerr.(*json.SyntaxError); ok {
					syntaxOffset = se.Offset
					syntaxExcerpt = excerpt(text, se.Offset)
				} else {
					syntaxOffset = 0
					syntaxExcerpt = excerpt(text, 0)
				}
			}
			return schema.Document{}, fmt.Errorf("%s: parse: %w", c.name, jerr)
		}
		return d, nil
	})
	if err != nil {
		names := make([]string, len(cands))
		for i, c := range cands {
			names[i] = c.name
		}
		return nil, &UnreadableError{
			Path:    path,
			Tried:   names,
			Offset:  syntaxOffset,
			Excerpt: syntaxExcerpt,
			Err:     err,
		}
	}

	return &schema.FailureReport{
		SchemaVariant:  classifyVariant(doc),
		SourceEncoding: winner.name,
		Document:       doc,
	}, nil
}

// DecodeText runs the same sniff-then-fallback chain over raw without
// requiring JSON, returning the decoded text and the encoding used. Used for
// reading the failing script alongside its report.
func DecodeText(raw []byte) (string, string, error) {
	if len(raw) == 0 {
		return "", "", fmt.Errorf("report: empty input")
	}
	cands := chain(raw)
	text, winner, err := fallback.First(cands, func(c candidate) (string, error) {
		return c.decode(raw)
	})
	if err != nil {
		return "", "", fmt.Errorf("report: decode text: %w", err)
	}
	return text, winner.name, nil
}

// classifyVariant determines the document's schema shape. The checks mirror
// the extractor's precedence: flat errors, then suites, then stats.
func classifyVariant(doc schema.Document) schema.SchemaVariant {
	if len(doc.Errors) > 0 {
		return schema.VariantFlatErrors
	}
	if len(doc.Suites) > 0 {
		// Iterative walk; suites may nest arbitrarily deep.
		stack := make([]schema.Suite, len(doc.Suites))
		copy(stack, doc.Suites)
		for len(stack) > 0 {
			s := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if len(s.Specs) > 0 {
				return schema.VariantSuitesWithSpecs
			}
			stack = append(stack, s.Suites...)
		}
		return schema.VariantSuitesWithTests
	}
	return schema.VariantStatsOnly
}

// excerpt returns up to 60 characters of text around offset with newlines
// escaped, for error diagnostics.
func excerpt(text string, offset int64) string {
	start := int(offset) - 20
	if start < 0 {
		start = 0
	}
	end := start + 60
	if end > len(text) {
		end = len(text)
	}
	if start > len(text) {
		start = len(text)
	}
	s := text[start:end]
	s = strings.ReplaceAll(s, "\n", `\n`)
	s = strings.ReplaceAll(s, "\r", `\r`)
	return s
}
