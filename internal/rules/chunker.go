// Package rules turns the Magic: The Gathering Comprehensive Rules document
// into an embedded, searchable index. The document is chunked per numbered
// rule, each chunk is embedded once at ingestion time, and queries run as
// cosine nearest-neighbour searches against the stored vectors.
package rules

import (
	"regexp"
	"strings"
)

// minChunkLength filters out stub rules like "100.6b" cross-references that
// carry no searchable content of their own.
const minChunkLength = 20

// Chunk is one numbered rule plus the section headings above it.
type Chunk struct {
	// Number is the rule number, e.g. "100.1" or "704.5k".
	Number string

	// Section is the heading path, e.g. "1. Game Concepts > 100. General".
	Section string

	// Text is the rule's own text, continuation lines joined.
	Text string
}

// Content returns the text that gets embedded and returned to searchers:
// the section path as context, then the numbered rule itself.
func (c Chunk) Content() string {
	if c.Section == "" {
		return c.Number + " " + c.Text
	}
	return c.Section + "\n" + c.Number + " " + c.Text
}

var (
	// ruleStart matches "100.1.", "100.1a", "704.5k." at line start.
	ruleStart = regexp.MustCompile(`^(\d{3}\.\d+[a-z]?)\.?\s+(.*)`)

	// sectionStart matches top-level headings like "1. Game Concepts".
	sectionStart = regexp.MustCompile(`^(\d)\.\s+(\S.*)`)

	// subsectionStart matches headings like "100. General".
	subsectionStart = regexp.MustCompile(`^(\d{3})\.\s+(\S.*)`)
)

// ChunkRules parses the Comprehensive Rules document into per-rule chunks.
// Lines that continue a rule (reminder text, examples) are folded into the
// preceding chunk; rules shorter than minChunkLength characters are dropped.
// The glossary and credits that follow the numbered rules are ignored.
func ChunkRules(document string) []Chunk {
	var (
		chunks     []Chunk
		section    string
		subsection string
		current    *Chunk
	)

	flush := func() {
		if current == nil {
			return
		}
		current.Text = strings.TrimSpace(current.Text)
		if len(current.Text) >= minChunkLength {
			chunks = append(chunks, *current)
		}
		current = nil
	}

	for _, line := range strings.Split(document, "\n") {
		line = strings.TrimRight(line, " \t\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		// The glossary ends rule numbering; everything after it is
		// definitions and credits, which the card database already covers.
		if trimmed == "Glossary" && current != nil {
			break
		}

		if m := ruleStart.FindStringSubmatch(trimmed); m != nil {
			flush()
			current = &Chunk{
				Number:  m[1],
				Section: headingPath(section, subsection),
				Text:    m[2],
			}
			continue
		}
		if m := subsectionStart.FindStringSubmatch(trimmed); m != nil {
			flush()
			subsection = m[1] + ". " + m[2]
			continue
		}
		if m := sectionStart.FindStringSubmatch(trimmed); m != nil {
			flush()
			section = m[1] + ". " + m[2]
			subsection = ""
			continue
		}

		// Continuation of the current rule (example text, second
		// paragraph). Outside a rule it is front matter; skip it.
		if current != nil {
			current.Text += " " + trimmed
		}
	}
	flush()

	return chunks
}

func headingPath(section, subsection string) string {
	switch {
	case section == "":
		return subsection
	case subsection == "":
		return section
	}
	return section + " > " + subsection
}
