package config

import (
	"errors"
	"fmt"
	"io/fs"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"market-exit-alerts/internal/logging"
)

const envPrefix = "EXITWATCHER"

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	History   HistoryConfig   `mapstructure:"history"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Rules     RulesConfig     `mapstructure:"rules"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// SchedulerConfig governs the cadence of watch mode.
type SchedulerConfig struct {
	Interval      time.Duration `mapstructure:"interval" validate:"gt=0"`
	AlignToBucket bool          `mapstructure:"align_to_bucket"`
	StartupDelay  time.Duration `mapstructure:"startup_delay" validate:"gte=0"`
	RunOnStart    bool          `mapstructure:"run_on_start"`
}

// HistoryConfig locates the indicator history file.
type HistoryConfig struct {
	Path       string `mapstructure:"path" validate:"required"`
	LegacyPath string `mapstructure:"legacy_path"`
	Retention  int    `mapstructure:"retention" validate:"gt=0"`
}

// SourcesConfig covers every public data source.
type SourcesConfig struct {
	Timeout   time.Duration   `mapstructure:"timeout" validate:"gt=0"`
	UserAgent string          `mapstructure:"user_agent"`
	CoinGecko CoinGeckoConfig `mapstructure:"coingecko"`
	FRED      FREDConfig      `mapstructure:"fred"`
	FearGreed FearGreedConfig `mapstructure:"fear_greed"`
	Trends    TrendsConfig    `mapstructure:"trends"`
	AppStore  AppStoreConfig  `mapstructure:"app_store"`
}

// CoinGeckoConfig 描述 CoinGecko 全局行情接口。
type CoinGeckoConfig struct {
	BaseURL string `mapstructure:"base_url" validate:"required,url"`
}

// FREDConfig 描述 FRED M2 序列接口。
type FREDConfig struct {
	BaseURL  string `mapstructure:"base_url" validate:"required,url"`
	APIKey   string `mapstructure:"api_key"`
	SeriesID string `mapstructure:"series_id" validate:"required"`
}

// FearGreedConfig 描述恐惧贪婪指数接口。
type FearGreedConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// TrendsConfig 描述 Google 每日热搜接口。
type TrendsConfig struct {
	URL      string `mapstructure:"url" validate:"required,url"`
	Language string `mapstructure:"language"`
	TZOffset string `mapstructure:"tz_offset"`
	Geo      string `mapstructure:"geo"`
}

// AppStoreConfig 描述 App Store 排行 RSS。
type AppStoreConfig struct {
	URL   string `mapstructure:"url" validate:"required,url"`
	Brand string `mapstructure:"brand"`
}

// RulesConfig holds every numeric threshold of the rule set.
type RulesConfig struct {
	BTCDominanceThreshold float64  `mapstructure:"btc_dominance_threshold" validate:"gt=0,lte=100"`
	M2FlatTolerance       float64  `mapstructure:"m2_flat_tolerance" validate:"gt=0"`
	PullbackFraction      float64  `mapstructure:"pullback_fraction" validate:"gt=0,lte=1"`
	PullbackWindow        int      `mapstructure:"pullback_window" validate:"gt=0"`
	PullbackMinPoints     int      `mapstructure:"pullback_min_points" validate:"gte=0"`
	FearGreedExit         int      `mapstructure:"fear_greed_exit" validate:"gte=0,lte=100"`
	TrendHitsRequired     int      `mapstructure:"trend_hits_required" validate:"gt=0"`
	SocialTerms           []string `mapstructure:"social_terms"`
}

// AlertingConfig defines alert routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Channels []string       `mapstructure:"channels" validate:"dive,oneof=email telegram"`
	Timeout  time.Duration  `mapstructure:"timeout" validate:"gt=0"`
	Email    EmailConfig    `mapstructure:"email"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Charts   ChartsConfig   `mapstructure:"charts"`
}

// EmailConfig 描述 SMTP 告警参数。
type EmailConfig struct {
	Host     string   `mapstructure:"host"`
	Port     int      `mapstructure:"port" validate:"gte=0,lte=65535"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ChartsConfig controls the PNG history attached to alerts.
type ChartsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Days    int  `mapstructure:"days" validate:"gte=0"`
	Width   int  `mapstructure:"width" validate:"gte=0"`
	Height  int  `mapstructure:"height" validate:"gte=0"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points" validate:"gt=0"`
}

// legacyEnv maps config keys to the flat variable names earlier deployments used.
var legacyEnv = map[string]string{
	"alerting.email.username":       "EMAIL_ADDRESS",
	"alerting.email.password":       "EMAIL_PASSWORD",
	"sources.fred.api_key":          "FRED_API_KEY",
	"rules.btc_dominance_threshold": "BTC_DOM_THRESHOLD",
	"rules.m2_flat_tolerance":       "M2_FLAT_THRESHOLD",
	"rules.pullback_fraction":       "ALT_PULLBACK",
	"rules.trend_hits_required":     "TRENDS_HITS_REQ",
	"rules.social_terms":            "SOCIAL_TERMS",
	"sources.app_store.url":         "APP_STORE_RSS",
	"sources.fear_greed.url":        "FEAR_GREED_API",
	"history.path":                  "HISTORY_FILE",
}

// Load builds configuration from .env, file, environment, and defaults.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindLegacyEnv(v); err != nil {
		return nil, err
	}

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loadDotEnv 读取 .env，已存在的环境变量优先。
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func bindLegacyEnv(v *viper.Viper) error {
	for key, legacy := range legacyEnv {
		prefixed := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "exitwatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stderr")

	v.SetDefault("scheduler.interval", "24h")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.startup_delay", "0s")
	v.SetDefault("scheduler.run_on_start", false)

	v.SetDefault("history.path", "alt_history.json")
	v.SetDefault("history.legacy_path", "")
	v.SetDefault("history.retention", 90)

	v.SetDefault("sources.timeout", "10s")
	v.SetDefault("sources.user_agent", "exitwatcher/1.0")
	v.SetDefault("sources.coingecko.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("sources.fred.base_url", "https://api.stlouisfed.org/fred/series/observations")
	v.SetDefault("sources.fred.api_key", "")
	v.SetDefault("sources.fred.series_id", "M2NS")
	v.SetDefault("sources.fear_greed.url", "https://api.alternative.me/fng/?limit=1")
	v.SetDefault("sources.trends.url", "https://trends.google.com/trends/api/dailytrends")
	v.SetDefault("sources.trends.language", "en-US")
	v.SetDefault("sources.trends.tz_offset", "-480")
	v.SetDefault("sources.trends.geo", "US")
	v.SetDefault("sources.app_store.url", "https://rss.applemarketingtools.com/api/v2/us/apps/top-free/10/apps.json")
	v.SetDefault("sources.app_store.brand", "coinbase")

	v.SetDefault("rules.btc_dominance_threshold", 45.0)
	v.SetDefault("rules.m2_flat_tolerance", 0.001)
	v.SetDefault("rules.pullback_fraction", 0.90)
	v.SetDefault("rules.pullback_window", 30)
	v.SetDefault("rules.pullback_min_points", 5)
	v.SetDefault("rules.fear_greed_exit", 90)
	v.SetDefault("rules.trend_hits_required", 2)
	v.SetDefault("rules.social_terms", []string{"bitcoin", "crypto", "ethereum", "altcoin", "nft"})

	v.SetDefault("alerting.enabled", true)
	v.SetDefault("alerting.channels", []string{"email"})
	v.SetDefault("alerting.timeout", "10s")
	v.SetDefault("alerting.email.host", "smtp.gmail.com")
	v.SetDefault("alerting.email.port", 587)
	v.SetDefault("alerting.email.username", "")
	v.SetDefault("alerting.email.password", "")
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.charts.enabled", true)
	v.SetDefault("alerting.charts.days", 90)
	v.SetDefault("alerting.charts.width", 1024)
	v.SetDefault("alerting.charts.height", 512)

	v.SetDefault("export.max_data_points", 1000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			stringToTrimmedSliceHook(","),
		)
	}
}

// stringToTrimmedSliceHook splits comma lists from env vars, dropping blanks and padding
// so "email, telegram" yields two clean entries.
func stringToTrimmedSliceHook(sep string) mapstructure.DecodeHookFuncType {
	return func(from, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to.Kind() != reflect.Slice {
			return data, nil
		}
		raw, _ := data.(string)
		out := []string{}
		for _, part := range strings.Split(raw, sep) {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, nil
	}
}

var validate = validator.New()

// Validate performs sanity checks on the configuration values.
func (c *Config) Validate() error {
	for i, ch := range c.Alerting.Channels {
		c.Alerting.Channels[i] = strings.ToLower(strings.TrimSpace(ch))
	}
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("invalid config %s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("validate config: %w", err)
	}

	if c.Rules.PullbackMinPoints >= c.Rules.PullbackWindow {
		return fmt.Errorf("rules.pullback_min_points 必须小于 rules.pullback_window")
	}
	if c.Alerting.Enabled && len(c.Alerting.Channels) == 0 {
		return fmt.Errorf("alerting.channels 至少配置一个通道")
	}
	return nil
}

// ValidateAlerting checks that every enabled channel has credentials. Commands that
// only read history skip it.
func (c *Config) ValidateAlerting() error {
	if !c.Alerting.Enabled {
		return nil
	}
	if c.ChannelEnabled("email") && c.Alerting.Email.Username == "" && c.Alerting.Email.From == "" {
		return fmt.Errorf("alerting.email.username 必须配置")
	}
	if c.ChannelEnabled("telegram") {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id 必须配置")
		}
	}
	return nil
}

// ChannelEnabled reports whether name is among the configured alert channels.
func (c *Config) ChannelEnabled(name string) bool {
	for _, ch := range c.Alerting.Channels {
		if strings.EqualFold(strings.TrimSpace(ch), name) {
			return true
		}
	}
	return false
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
