package scraper

// Show is one broadcast slot extracted from a schedule page.
type Show struct {
	Day       string // ISO date YYYY-MM-DD
	Presenter string
	Title     string
	StartTime string // HH:MM, local to the source
	EndTime   string // HH:MM, wraps past midnight when the slot crosses it
	Style     string
}
