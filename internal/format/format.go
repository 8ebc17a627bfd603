package format

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Mode selects how report tables are rendered.
type Mode int

const (
	ASCII    Mode = iota // terminal box tables
	Markdown             // pasted into audit write-ups
)

// ParseMode reads the --format value. Anything other than markdown renders ASCII.
func ParseMode(name string) Mode {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "markdown", "md":
		return Markdown
	}
	return ASCII
}

// TableBuilder accumulates one report table.
type TableBuilder interface {
	Header(cols ...string)
	Row(vals ...any)
	Footer(vals ...any)
	// Numeric right-aligns the 1-based columns from..to.
	Numeric(from, to int)
	String() string
}

func NewTable(m Mode) TableBuilder {
	w := table.NewWriter()
	if m == ASCII {
		w.SetStyle(table.StyleLight)
	}
	return &prettyTable{w: w, mode: m}
}

type prettyTable struct {
	w    table.Writer
	mode Mode
}

func (p *prettyTable) Header(cols ...string) {
	row := make(table.Row, 0, len(cols))
	for _, c := range cols {
		row = append(row, c)
	}
	p.w.AppendHeader(row)
}

func (p *prettyTable) Row(vals ...any)    { p.w.AppendRow(table.Row(vals)) }
func (p *prettyTable) Footer(vals ...any) { p.w.AppendFooter(table.Row(vals)) }

func (p *prettyTable) Numeric(from, to int) {
	var cfgs []table.ColumnConfig
	for n := from; n <= to; n++ {
		cfgs = append(cfgs, table.ColumnConfig{Number: n, Align: text.AlignRight, AlignFooter: text.AlignRight})
	}
	p.w.SetColumnConfigs(cfgs)
}

func (p *prettyTable) String() string {
	if p.mode == Markdown {
		return p.w.RenderMarkdown()
	}
	return p.w.Render()
}
