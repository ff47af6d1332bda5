package kredirect

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"
)

const (
	defaultReleasesURL     = "https://kernel.org/releases.json"
	defaultListingBaseURL  = "https://kernel.org/pub/linux/kernel"
	defaultNextSnapshotURL = "https://git.kernel.org/pub/scm/linux/kernel/git/next/linux-next.git/snapshot/linux-next-{version}.tar.gz"
	defaultZFSMetaURL      = "https://raw.githubusercontent.com/openzfs/zfs/refs/heads/master/META"
	defaultZFSKey          = "Linux-Maximum"
)

var defaultArchivePatterns = []string{"*.tar.xz", "*.tar.gz"}

type Config struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"server"`

	Origin struct {
		Timeout   string `yaml:"timeout"`
		MaxBody   string `yaml:"maxBody"`
		UserAgent string `yaml:"userAgent"`

		// compiled
		timeoutDur time.Duration
		maxBytes   int64
	} `yaml:"origin"`

	Cache struct {
		TTL          string `yaml:"ttl"`
		KeepLastGood bool   `yaml:"keepLastGood"`

		// compiled
		ttlDur time.Duration
	} `yaml:"cache"`

	Kernel struct {
		ReleasesURL     string   `yaml:"releasesURL"`
		ListingBaseURL  string   `yaml:"listingBaseURL"`
		NextSnapshotURL string   `yaml:"nextSnapshotURL"`
		ArchivePatterns []string `yaml:"archivePatterns"`

		// compiled
		archiveGlobs []glob.Glob
	} `yaml:"kernel"`

	ZFS struct {
		MetaURL string `yaml:"metaURL"`
		Key     string `yaml:"key"`
	} `yaml:"zfs"`

	Logging struct {
		LogStatsEvery string `yaml:"logStatsEvery"`

		// compiled
		logStatsEveryDur time.Duration
	} `yaml:"logging"`
}

// LoadConfig reads the YAML file at path. An empty path yields the defaults.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.compile(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultConfig returns a compiled configuration with every default applied.
func DefaultConfig() Config {
	var cfg Config
	if err := cfg.compile(); err != nil {
		panic(err)
	}
	return cfg
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) compile() error {
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}

	if c.Origin.Timeout == "" {
		c.Origin.Timeout = "30s"
	}
	d, err := time.ParseDuration(c.Origin.Timeout)
	if err != nil {
		return fmt.Errorf("origin.timeout: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("origin.timeout must be positive, got %s", c.Origin.Timeout)
	}
	c.Origin.timeoutDur = d
	if c.Origin.MaxBody == "" {
		c.Origin.MaxBody = "8mb"
	}
	n, err := parseBytes(c.Origin.MaxBody)
	if err != nil {
		return fmt.Errorf("origin.maxBody: %w", err)
	}
	c.Origin.maxBytes = n
	if c.Origin.UserAgent == "" {
		c.Origin.UserAgent = "kredirect"
	}

	if c.Cache.TTL == "" {
		c.Cache.TTL = DefaultTTL.String()
	}
	ttl, err := time.ParseDuration(c.Cache.TTL)
	if err != nil {
		return fmt.Errorf("cache.ttl: %w", err)
	}
	if ttl <= 0 {
		return fmt.Errorf("cache.ttl must be positive, got %s", c.Cache.TTL)
	}
	c.Cache.ttlDur = ttl

	if c.Kernel.ReleasesURL == "" {
		c.Kernel.ReleasesURL = defaultReleasesURL
	}
	if c.Kernel.ListingBaseURL == "" {
		c.Kernel.ListingBaseURL = defaultListingBaseURL
	}
	c.Kernel.ListingBaseURL = strings.TrimRight(c.Kernel.ListingBaseURL, "/")
	if c.Kernel.NextSnapshotURL == "" {
		c.Kernel.NextSnapshotURL = defaultNextSnapshotURL
	}
	if !strings.Contains(c.Kernel.NextSnapshotURL, "{version}") {
		return fmt.Errorf("kernel.nextSnapshotURL must contain {version}")
	}
	if len(c.Kernel.ArchivePatterns) == 0 {
		c.Kernel.ArchivePatterns = defaultArchivePatterns
	}
	c.Kernel.archiveGlobs = nil
	for i, p := range c.Kernel.ArchivePatterns {
		g, err := glob.Compile(strings.TrimSpace(p))
		if err != nil {
			return fmt.Errorf("kernel.archivePatterns[%d]: %w", i, err)
		}
		c.Kernel.archiveGlobs = append(c.Kernel.archiveGlobs, g)
	}

	if c.ZFS.MetaURL == "" {
		c.ZFS.MetaURL = defaultZFSMetaURL
	}
	if c.ZFS.Key == "" {
		c.ZFS.Key = defaultZFSKey
	}
	c.ZFS.Key = strings.TrimSuffix(c.ZFS.Key, ":")

	if c.Logging.LogStatsEvery != "" {
		d, err := time.ParseDuration(c.Logging.LogStatsEvery)
		if err != nil {
			return fmt.Errorf("logging.logStatsEvery: %w", err)
		}
		c.Logging.logStatsEveryDur = d
	}

	return nil
}
