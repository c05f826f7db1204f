package config

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Loader handles configuration loading from various sources
type Loader struct{}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{}
}

// Load layers defaults, the global config, the nearest local config, an
// explicit --config file and finally command flags
func (l *Loader) Load(cmd *cobra.Command) (*Config, error) {
	l.setupViperDefaults()
	l.loadGlobalConfig()

	if cwd, err := os.Getwd(); err == nil {
		l.loadLocalConfig(cwd)
	}

	if err := l.loadExplicitConfig(cmd); err != nil {
		return nil, err
	}

	l.bindCommandFlags(cmd)

	return Load()
}

// setupViperDefaults sets up default values for viper
func (l *Loader) setupViperDefaults() {
	viper.SetDefault("store.driver", DefaultStoreDriver)
	viper.SetDefault("store.path", DefaultStorePath)
	viper.SetDefault("store.url", "")
	viper.SetDefault("store.bucket", DefaultStoreBucket)
	viper.SetDefault("http.max_retries", DefaultMaxRetries)
	viper.SetDefault("http.timeout", DefaultTimeout)
	viper.SetDefault("http.user_agent", DefaultUserAgent())
	viper.SetDefault("http.cache", DefaultHTTPCache)
	viper.SetDefault("http.cache_ttl", DefaultCacheTTL)
	viper.SetDefault("http.cache_dir", DefaultCacheDir)
	viper.SetDefault("pagination.page_param", DefaultPageParam)
	viper.SetDefault("pagination.max_pages", DefaultMaxPages)
	viper.SetDefault("pagination.delay", DefaultPageDelay)
	viper.SetDefault("skip.ttl", DefaultSkipTTL)
	viper.SetDefault("skip.fast_if_exists", DefaultFastSkip)
	viper.SetDefault("run.retry_rounds", DefaultRetryRounds)
	viper.SetDefault("audit.driver", DefaultAuditDriver)
	viper.SetDefault("audit.path", DefaultAuditPath)
	viper.SetDefault("catalog", DefaultCatalog)
	viper.SetDefault("verbose", DefaultVerbose)
}

// loadGlobalConfig loads global configuration from the user config directory
func (l *Loader) loadGlobalConfig() {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return
	}

	if globalPath := FindGlobalConfig(configDir); globalPath != "" {
		viper.SetConfigFile(globalPath)
		_ = viper.MergeInConfig()
	}
}

// loadLocalConfig merges the nearest .lakefetch.* file at or above dir
func (l *Loader) loadLocalConfig(dir string) {
	localPath := FindLocalConfig(dir)
	if localPath != "" {
		viper.SetConfigFile(localPath)
		_ = viper.MergeInConfig()
	}
}

// loadExplicitConfig merges the file named by --config. Unlike the
// discovered files it must exist.
func (l *Loader) loadExplicitConfig(cmd *cobra.Command) error {
	flag := cmd.Flags().Lookup("config")
	if flag == nil || flag.Value.String() == "" {
		return nil
	}

	path := flag.Value.String()
	viper.SetConfigFile(path)

	if err := viper.MergeInConfig(); err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}

	return nil
}

// bindCommandFlags binds command flags to viper
func (l *Loader) bindCommandFlags(cmd *cobra.Command) {
	if f := cmd.Flags().Lookup("verbose"); f != nil {
		_ = viper.BindPFlag("verbose", f)
	}

	if f := cmd.Flags().Lookup("store"); f != nil {
		_ = viper.BindPFlag("store.driver", f)
	}

	if f := cmd.Flags().Lookup("catalog"); f != nil {
		_ = viper.BindPFlag("catalog", f)
	}

	if f := cmd.Flags().Lookup("no-cache"); f != nil && f.Changed {
		viper.Set("http.cache", false)
	}
}
