package feedback

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/reelrank/reelrank/internal/catalog"
	"github.com/reelrank/reelrank/internal/titlekey"
)

// Patterns match against the original line so that returned offsets are
// valid for it regardless of how case folding changes byte lengths.
var (
	skipGenrePattern = regexp.MustCompile(`(?i)skip genre:`)
	hidePattern      = regexp.MustCompile(`(?i)hide:`)
	downvotePattern  = regexp.MustCompile(`(?i)downvote|👎|:thumbsdown:|:-1:`)
)

// Directives are the actions found in one message. Title targets are
// candidate keys.
type Directives struct {
	Downvotes []string
	Genres    []string
	Hide      []string
}

// Empty reports whether no directive was found.
func (d Directives) Empty() bool {
	return len(d.Downvotes) == 0 && len(d.Genres) == 0 && len(d.Hide) == 0
}

// Parser extracts directives from free text. Free-form title mentions are
// resolved against the current batch only.
type Parser struct {
	threshold int
	logger    zerolog.Logger
}

// NewParser returns a parser that accepts a title resolution only at or
// above threshold similarity.
func NewParser(threshold int, logger zerolog.Logger) *Parser {
	return &Parser{threshold: threshold, logger: logger}
}

// Parse scans text line by line. Lines matching no pattern are ignored.
func (p *Parser) Parse(text string, batch []catalog.Candidate) Directives {
	var d Directives
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if loc := skipGenrePattern.FindStringIndex(line); loc != nil {
			if g := strings.ToLower(strings.TrimSpace(line[loc[1]:])); g != "" {
				d.Genres = append(d.Genres, g)
			}
			continue
		}

		if loc := hidePattern.FindStringIndex(line); loc != nil {
			if key := p.target(line[loc[1]:], batch); key != "" {
				d.Hide = append(d.Hide, key)
			}
			continue
		}

		rest, ok := stripMarker(line)
		if !ok {
			continue
		}
		if ids := catalog.CrossRefPattern.FindAllString(line, -1); len(ids) > 0 {
			for _, id := range ids {
				d.Downvotes = append(d.Downvotes, strings.ToLower(id))
			}
			continue
		}
		if key := p.resolve(rest, batch); key != "" {
			d.Downvotes = append(d.Downvotes, key)
		}
	}
	return d
}

// stripMarker reports whether line carries a downvote marker and returns the
// text with the marker removed.
func stripMarker(line string) (string, bool) {
	loc := downvotePattern.FindStringIndex(line)
	if loc == nil {
		return "", false
	}
	rest := line[:loc[0]] + " " + line[loc[1]:]
	return strings.Trim(rest, " \t:-–—,"), true
}

func (p *Parser) target(text string, batch []catalog.Candidate) string {
	if id := catalog.CrossRefPattern.FindString(text); id != "" {
		return strings.ToLower(id)
	}
	return p.resolve(text, batch)
}

// resolve maps a title mention to the key of the best-matching candidate.
// Ties between different candidates are ambiguous and resolve to nothing.
func (p *Parser) resolve(text string, batch []catalog.Candidate) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	best, bestKey, ambiguous := -1, "", false
	for i := range batch {
		key := batch[i].Key()
		score := 0
		for _, t := range batch[i].Titles() {
			if s := titlekey.Similarity(text, t); s > score {
				score = s
			}
		}
		if score < p.threshold {
			continue
		}
		switch {
		case score > best:
			best, bestKey, ambiguous = score, key, false
		case score == best && key != bestKey:
			ambiguous = true
		}
	}

	if ambiguous {
		p.logger.Debug().Str("mention", text).Msg("Ambiguous feedback mention ignored")
		return ""
	}
	return bestKey
}

// ExtractText converts an HTML message body into plain text with one line
// per block element.
func ExtractText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	doc.Find("script, style, head").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, li, tr, h1, h2, h3, h4, h5, h6, blockquote").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	var lines []string
	for _, l := range strings.Split(doc.Text(), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return strings.Join(lines, "\n")
}

// Message is one inbox entry. HTML is used when Body is empty.
type Message struct {
	Body string    `json:"body"`
	HTML string    `json:"html"`
	At   time.Time `json:"at"`
}

// Text returns the plain-text content of the message.
func (m *Message) Text() string {
	if strings.TrimSpace(m.Body) != "" {
		return m.Body
	}
	if m.HTML != "" {
		return ExtractText(m.HTML)
	}
	return ""
}

// LoadInbox reads messages from a JSON-lines inbox file. Undecodable lines
// are skipped.
func LoadInbox(path string, logger zerolog.Logger) ([]Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open feedback inbox: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var msgs []Message
	skipped := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var m Message
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			skipped++
			continue
		}
		msgs = append(msgs, m)
	}
	if err := scanner.Err(); err != nil {
		return msgs, fmt.Errorf("failed to read feedback inbox: %w", err)
	}
	if skipped > 0 {
		logger.Debug().Int("skipped", skipped).Msg("Skipped malformed inbox lines")
	}
	return msgs, nil
}
