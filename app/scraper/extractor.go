package scraper

import (
	"bytes"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// The schedule pages mark broadcast slots with hCalendar-style classes.
// Field extraction runs an ordered list of strategies per field; the first
// one that yields a value wins.
var (
	timePattern     = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
	embeddedEndTime = regexp.MustCompile(`T(\d{2}:\d{2})`)
)

const defaultStyle = "Unknown"

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Run parses one schedule page into show records. It is a pure transform:
// no I/O, same input yields the same output. Malformed item blocks are
// dropped individually; a page with zero valid items is an empty result,
// not an error.
func (e *Extractor) Run(data []byte, sourceKey, day string) ([]Show, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var shows []Show
	doc.Find("li.vevent").Each(func(i int, block *goquery.Selection) {
		show, ok := e.extractShow(block, day)
		if !ok {
			slog.Debug("Dropped malformed schedule block", "source", sourceKey, "day", day, "index", i)
			return
		}
		shows = append(shows, show)
	})

	return shows, nil
}

func (e *Extractor) extractShow(block *goquery.Selection, day string) (Show, bool) {
	start := block.Find(".dtstart").First()

	startTime, ok := normalizeTime(start.Text())
	if !ok {
		return Show{}, false
	}

	endTime := e.extractEndTime(start, startTime)

	description := block.Find(".description").First()
	presenter := extractPresenter(description)
	title := strings.TrimSpace(description.Find(".summary").First().Text())

	if presenter == "" || title == "" {
		return Show{}, false
	}

	style := strings.TrimSpace(description.Find(".category").First().Text())
	if style == "" {
		style = defaultStyle
	}

	return Show{
		Day:       day,
		Presenter: presenter,
		Title:     title,
		StartTime: startTime,
		EndTime:   endTime,
		Style:     style,
	}, true
}

// extractEndTime resolves the end time in falling priority: the dtend
// sibling next to the start field, a T<HH:MM> timestamp embedded in the
// start field's machine-readable title attribute, or start plus two hours.
func (e *Extractor) extractEndTime(start *goquery.Selection, startTime string) string {
	if endTime, ok := normalizeTime(start.NextFiltered(".dtend").Text()); ok {
		return endTime
	}

	if m := embeddedEndTime.FindStringSubmatch(start.AttrOr("title", "")); m != nil {
		if endTime, ok := normalizeTime(m[1]); ok {
			return endTime
		}
	}

	return addHours(startTime, 2)
}

// extractPresenter reads the presenter name from the .fn field. Some pages
// put the name directly in the field, others nest it in a link.
func extractPresenter(description *goquery.Selection) string {
	fn := description.Find(".fn").First()

	direct := strings.TrimSpace(fn.Clone().Children().Remove().End().Text())
	if direct != "" {
		return direct
	}

	return strings.TrimSpace(fn.Find("a").First().Text())
}

func normalizeTime(raw string) (string, bool) {
	m := timePattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return "", false
	}

	hour := m[1]
	if len(hour) == 1 {
		hour = "0" + hour
	}
	if hour > "23" || m[2] > "59" {
		return "", false
	}

	return hour + ":" + m[2], true
}

// addHours shifts an HH:MM time forward, wrapping past midnight
// (23:30 + 2h = 01:30).
func addHours(hhmm string, hours int) string {
	m := timePattern.FindStringSubmatch(hhmm)
	if m == nil {
		return hhmm
	}

	h := (int(m[1][0]-'0')*10+int(m[1][1]-'0') + hours) % 24
	return fmt.Sprintf("%02d:%s", h, m[2])
}

// ExtractPresenters is the best-effort fallback used to list a station's
// resident DJs when no schedule data is available. It guesses at entries
// that look like DJ names and never fails on unexpected markup.
func ExtractPresenters(data []byte) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var names []string

	add := func(text string) {
		name := strings.Join(strings.Fields(text), " ")
		if name == "" || len(name) > 64 || seen[strings.ToLower(name)] {
			return
		}
		seen[strings.ToLower(name)] = true
		names = append(names, name)
	}

	doc.Find(".djlist a, li.dj, a.dj").Each(func(_ int, s *goquery.Selection) {
		add(s.Text())
	})

	// Last resort: list entries whose text carries a leading DJ token.
	if len(names) == 0 {
		doc.Find("li, td").Each(func(_ int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if strings.HasPrefix(text, "DJ ") && !strings.ContainsAny(text, "\n\t") {
				add(text)
			}
		})
	}

	return names
}
