package cfg

type Cfg struct {
	// Storage configuration
	DataPath string

	// Application configuration
	Port           string
	BaseUrl        string
	SourcesDir     string
	ScrapeSchedule string
	RetentionDays  int
	ProxyURL       string

	// Notification configuration
	TelegramToken string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
