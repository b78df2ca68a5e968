package sources

// Config describes one upstream broadcaster whose schedule is scraped.
// The key is derived from the configuration filename (without .yml) and is
// the domain-like identifier used in fetch URLs and database rows.
type Config struct {
	Key     string // Derived from filename (without .yml extension)
	Name    string `yaml:"name"`
	Enabled bool   `yaml:"enabled"`
}
