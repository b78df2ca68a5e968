package calendar

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/showplan/showplan/app/database"
)

const (
	// DefaultDays bounds the feed when the caller gives no day count.
	DefaultDays = 7
	// MaxDays is the hard cap on the feed window.
	MaxDays = 30
)

type Generator struct {
	productID string
}

func NewGenerator(version string) *Generator {
	return &Generator{
		productID: fmt.Sprintf("-//showplan//showplan %s//EN", version),
	}
}

// Run renders a bounded iCalendar feed from ordered schedule items. End
// times at or before the start are read as a wrap past midnight.
func (g *Generator) Run(sourceName string, items []database.Item, loc *time.Location) string {
	var buf bytes.Buffer

	g.writeLine(&buf, "BEGIN:VCALENDAR")
	g.writeLine(&buf, "VERSION:2.0")
	g.writeLine(&buf, "PRODID:"+escapeText(g.productID))
	g.writeLine(&buf, "X-WR-CALNAME:"+escapeText(sourceName))

	for _, item := range items {
		g.writeEvent(&buf, item, loc)
	}

	g.writeLine(&buf, "END:VCALENDAR")

	return buf.String()
}

func (g *Generator) writeEvent(buf *bytes.Buffer, item database.Item, loc *time.Location) {
	start, err := time.ParseInLocation("2006-01-02 15:04", item.Day+" "+item.StartTime, loc)
	if err != nil {
		return
	}

	end, err := time.ParseInLocation("2006-01-02 15:04", item.Day+" "+item.EndTime, loc)
	if err != nil {
		return
	}
	if !end.After(start) {
		end = end.AddDate(0, 0, 1)
	}

	g.writeLine(buf, "BEGIN:VEVENT")
	g.writeLine(buf, fmt.Sprintf("UID:%d@%s", item.ID, item.SourceKey))
	g.writeLine(buf, "DTSTAMP:"+item.CreatedAt.UTC().Format("20060102T150405Z"))
	g.writeLine(buf, "DTSTART:"+start.UTC().Format("20060102T150405Z"))
	g.writeLine(buf, "DTEND:"+end.UTC().Format("20060102T150405Z"))
	g.writeLine(buf, "SUMMARY:"+escapeText(item.Presenter+" - "+item.Title))
	if item.Style != "" {
		g.writeLine(buf, "CATEGORIES:"+escapeText(item.Style))
	}
	g.writeLine(buf, "END:VEVENT")
}

// writeLine emits one content line, folded at 75 octets per RFC 5545.
func (g *Generator) writeLine(buf *bytes.Buffer, line string) {
	for len(line) > 75 {
		buf.WriteString(line[:75])
		buf.WriteString("\r\n ")
		line = line[75:]
	}
	buf.WriteString(line)
	buf.WriteString("\r\n")
}

func escapeText(s string) string {
	replacer := strings.NewReplacer(
		"\\", "\\\\",
		";", "\\;",
		",", "\\,",
		"\n", "\\n",
	)
	return replacer.Replace(s)
}

// ClampDays normalizes a requested feed window to [1, MaxDays], applying
// the default when the request carries none.
func ClampDays(requested int) int {
	if requested <= 0 {
		return DefaultDays
	}
	if requested > MaxDays {
		return MaxDays
	}
	return requested
}
