package commands

import (
	"strings"
	"unicode/utf8"
)

// MaxMessageLength is the platform's limit for one message.
const MaxMessageLength = 2000

// Paginator collects lines into pages that each fit in one message. Every
// page is wrapped in Prefix and Suffix, e.g. a code fence.
type Paginator struct {
	Prefix  string
	Suffix  string
	MaxSize int

	pages []string
	lines []string
	size  int
}

// NewPaginator returns a Paginator sized for one chat message.
func NewPaginator(prefix, suffix string) *Paginator {
	return &Paginator{Prefix: prefix, Suffix: suffix, MaxSize: MaxMessageLength}
}

func (p *Paginator) budget() int {
	n := p.MaxSize
	if p.Prefix != "" {
		n -= len(p.Prefix) + 1
	}
	if p.Suffix != "" {
		n -= len(p.Suffix) + 1
	}
	return max(n, 1)
}

// AddLine appends one line, starting a new page when it does not fit.
// Lines longer than a page are split.
func (p *Paginator) AddLine(line string) {
	budget := p.budget()
	for len(line) > budget {
		cut := budget
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		if cut == 0 {
			_, cut = utf8.DecodeRuneInString(line)
		}
		p.add(line[:cut], budget)
		line = line[cut:]
	}
	p.add(line, budget)
}

func (p *Paginator) add(line string, budget int) {
	if p.size+len(line)+1 > budget && len(p.lines) > 0 {
		p.closePage()
	}
	p.lines = append(p.lines, line)
	p.size += len(line) + 1
}

// AddText adds every line of text.
func (p *Paginator) AddText(text string) {
	for _, line := range strings.Split(text, "\n") {
		p.AddLine(line)
	}
}

// Pages returns the finished pages.
func (p *Paginator) Pages() []string {
	if len(p.lines) > 0 {
		p.closePage()
	}
	return p.pages
}

func (p *Paginator) closePage() {
	var b strings.Builder
	if p.Prefix != "" {
		b.WriteString(p.Prefix)
		b.WriteByte('\n')
	}
	b.WriteString(strings.Join(p.lines, "\n"))
	if p.Suffix != "" {
		b.WriteByte('\n')
		b.WriteString(p.Suffix)
	}
	p.pages = append(p.pages, b.String())
	p.lines = nil
	p.size = 0
}
