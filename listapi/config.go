package listapi

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultTop is the row count sent when a descriptor leaves Top unset.
	DefaultTop = 500

	defaultAPIRoot          = "/_api/web"
	defaultNativeHostSuffix = "sharepoint.com"
	defaultFallbackSiteURL  = "https://chamberlaingroup.sharepoint.com/sites/PrincipalGTMStrategy-InternalUseOnly-ATLIntegrationProject"
)

// ListNames holds the canonical list titles on the site.
type ListNames struct {
	Tasks       string `yaml:"tasks"`
	SalesData   string `yaml:"salesData"`
	ActivityLog string `yaml:"activityLog"`
	PeopleMap   string `yaml:"peopleMap"`
}

// Preset is a default field set and sort order for a named read.
type Preset struct {
	Select  []string `yaml:"select"`
	OrderBy string   `yaml:"orderby"`
}

// Presets groups the pre-wired read shapes.
type Presets struct {
	Tasks     Preset `yaml:"tasks"`
	SalesData Preset `yaml:"salesData"`
}

// Config describes how to reach the list service.
type Config struct {
	FallbackSiteURL string `yaml:"fallbackSiteUrl"`
	ProxyURL        string `yaml:"proxyUrl"`
	// UseProxy forces the transport when set; nil means auto-detect.
	UseProxy         *bool     `yaml:"useProxy"`
	NativeHostSuffix string    `yaml:"nativeHostSuffix"`
	APIRoot          string    `yaml:"apiRoot"`
	DefaultTop       int       `yaml:"defaultTop"`
	Lists            ListNames `yaml:"lists"`
	Presets          Presets   `yaml:"presets"`

	// SiteURL and DocumentURL describe the hosting page. They feed the
	// resolver's page-context and location probes.
	SiteURL     string `yaml:"siteUrl"`
	DocumentURL string `yaml:"documentUrl"`
}

// DefaultConfig returns the configuration used when no file is supplied.
func DefaultConfig() Config {
	return Config{
		FallbackSiteURL:  defaultFallbackSiteURL,
		NativeHostSuffix: defaultNativeHostSuffix,
		APIRoot:          defaultAPIRoot,
		DefaultTop:       DefaultTop,
		Lists: ListNames{
			Tasks:       "ATL_Project_Plan.v21",
			SalesData:   "ATL-SalesData",
			ActivityLog: "ActivityLog",
			PeopleMap:   "PeopleMap",
		},
		Presets: Presets{
			Tasks: Preset{
				Select: []string{
					"Id", "Title", "TaskID", "Phase", "Workstream", "Status", "PercentComplete",
					"Priority", "DueDate", "Owner", "Modified", "TaskType", "Description",
					"IsBlocked", "BlockerReason",
				},
				OrderBy: "DueDate asc",
			},
			SalesData: Preset{
				Select: []string{
					"Id", "Title", "SalesDate", "DailySalesActual", "DailyBudgetTarget", "DailyVariance",
					"DailyVariancePercent", "VolumeLevel", "MTDSalesActual", "MTDBudgetTarget",
					"YTDSalesActual", "YTDBudgetTarget", "ImportTimestamp", "DataQuality",
				},
				OrderBy: "SalesDate desc",
			},
		},
	}
}

// LoadConfig reads a YAML file over the defaults. An empty path returns the
// defaults unchanged.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read list config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse list config %s: %w", path, err)
	}
	cfg.fillDefaults()
	return cfg, nil
}

// ApplyEnv overrides file values with LIST_* environment variables.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := getenv("LIST_FALLBACK_SITE_URL"); v != "" {
		c.FallbackSiteURL = v
	}
	if v := getenv("LIST_PROXY_URL"); v != "" {
		c.ProxyURL = v
	}
	if v := getenv("LIST_SITE_URL"); v != "" {
		c.SiteURL = v
	}
	if v := getenv("LIST_DOCUMENT_URL"); v != "" {
		c.DocumentURL = v
	}
	if v := strings.TrimSpace(getenv("LIST_USE_PROXY")); v != "" && !strings.EqualFold(v, "auto") {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid LIST_USE_PROXY %q: %w", v, err)
		}
		c.UseProxy = &b
	}
	if v := getenv("LIST_DEFAULT_TOP"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid LIST_DEFAULT_TOP %q", v)
		}
		c.DefaultTop = n
	}
	return nil
}

func (c *Config) fillDefaults() {
	d := DefaultConfig()
	if c.NativeHostSuffix == "" {
		c.NativeHostSuffix = d.NativeHostSuffix
	}
	if c.APIRoot == "" {
		c.APIRoot = d.APIRoot
	}
	if c.DefaultTop <= 0 {
		c.DefaultTop = d.DefaultTop
	}
	if c.Lists.Tasks == "" {
		c.Lists.Tasks = d.Lists.Tasks
	}
	if c.Lists.SalesData == "" {
		c.Lists.SalesData = d.Lists.SalesData
	}
	if len(c.Presets.Tasks.Select) == 0 {
		c.Presets.Tasks.Select = d.Presets.Tasks.Select
	}
	if c.Presets.Tasks.OrderBy == "" {
		c.Presets.Tasks.OrderBy = d.Presets.Tasks.OrderBy
	}
	if len(c.Presets.SalesData.Select) == 0 {
		c.Presets.SalesData.Select = d.Presets.SalesData.Select
	}
	if c.Presets.SalesData.OrderBy == "" {
		c.Presets.SalesData.OrderBy = d.Presets.SalesData.OrderBy
	}
}
