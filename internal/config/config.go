package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Mail     MailConfig     `mapstructure:"mail"`
	Outreach OutreachConfig `mapstructure:"outreach"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Server   ServerConfig   `mapstructure:"server"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json | console
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // postgres | sqlite
	DSN    string `mapstructure:"dsn"`
}

type LLMConfig struct {
	Provider  string        `mapstructure:"provider"` // googleai | openai
	APIKey    string        `mapstructure:"api_key"`
	Model     string        `mapstructure:"model"`
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	MaxTokens int           `mapstructure:"max_tokens"`
}

type MailConfig struct {
	Owner          string        `mapstructure:"owner"`
	Password       string        `mapstructure:"password"`
	SMTPHost       string        `mapstructure:"smtp_host"`
	SMTPPort       int           `mapstructure:"smtp_port"`
	IMAPAddr       string        `mapstructure:"imap_addr"`
	Transport      string        `mapstructure:"transport"` // smtp | gmail
	Mailbox        string        `mapstructure:"mailbox"`   // imap | gmail
	CredentialFile string        `mapstructure:"credential_file"`
	TokenFile      string        `mapstructure:"token_file"`
	Timeout        time.Duration `mapstructure:"timeout"`
	ApprovalMarker string        `mapstructure:"approval_marker"`
}

type OutreachConfig struct {
	JobLimit             int           `mapstructure:"job_limit"`
	DailyCap             int           `mapstructure:"daily_cap"`
	SendInterval         time.Duration `mapstructure:"send_interval"`
	Timezone             string        `mapstructure:"timezone"`
	ApprovalRetries      int           `mapstructure:"approval_retries"`
	ApprovalRetryInitial time.Duration `mapstructure:"approval_retry_initial"`
}

type ScheduleConfig struct {
	Generate string        `mapstructure:"generate"`
	Monitor  string        `mapstructure:"monitor"`
	Send     string        `mapstructure:"send"`
	Tick     time.Duration `mapstructure:"tick"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "host=localhost user=postgres password=password dbname=outreach port=5432 sslmode=disable")

	v.SetDefault("llm.provider", "googleai")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gemini-2.5-flash")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.max_tokens", 2000)

	v.SetDefault("mail.owner", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.smtp_host", "smtp.gmail.com")
	v.SetDefault("mail.smtp_port", 587)
	v.SetDefault("mail.imap_addr", "imap.gmail.com:993")
	v.SetDefault("mail.transport", "smtp")
	v.SetDefault("mail.mailbox", "imap")
	v.SetDefault("mail.credential_file", "credential.json")
	v.SetDefault("mail.token_file", "token.json")
	v.SetDefault("mail.timeout", 30*time.Second)
	v.SetDefault("mail.approval_marker", "Approval Needed")

	v.SetDefault("outreach.job_limit", 5)
	v.SetDefault("outreach.daily_cap", 5)
	v.SetDefault("outreach.send_interval", 120*time.Second)
	v.SetDefault("outreach.timezone", "Local")
	v.SetDefault("outreach.approval_retries", 3)
	v.SetDefault("outreach.approval_retry_initial", 2*time.Second)

	v.SetDefault("schedule.generate", "0 16 * * *")
	v.SetDefault("schedule.monitor", "@every 5m")
	v.SetDefault("schedule.send", "@every 30m")
	v.SetDefault("schedule.tick", time.Minute)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lock_ttl", 30*time.Minute)

	v.SetDefault("server.port", "8080")
}

// Load reads .env (if present), an optional config file and OUTREACH_* env vars.
// An empty path searches ./config.yaml and ./configs/config.yaml.
func Load(path string) (*Config, error) {
	// A missing .env is fine; the OS environment is used as is.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("OUTREACH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MinSendInterval is the smallest pause allowed between two outreach sends.
const MinSendInterval = 10 * time.Second

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("config: unknown database.driver %q", c.Database.Driver)
	}
	switch c.LLM.Provider {
	case "googleai", "openai":
	default:
		return fmt.Errorf("config: unknown llm.provider %q", c.LLM.Provider)
	}
	switch c.Mail.Transport {
	case "smtp", "gmail":
	default:
		return fmt.Errorf("config: unknown mail.transport %q", c.Mail.Transport)
	}
	switch c.Mail.Mailbox {
	case "imap", "gmail":
	default:
		return fmt.Errorf("config: unknown mail.mailbox %q", c.Mail.Mailbox)
	}
	if c.Outreach.DailyCap < 0 {
		return errors.New("config: outreach.daily_cap must not be negative")
	}
	if c.Outreach.SendInterval < MinSendInterval {
		return fmt.Errorf("config: outreach.send_interval must be at least %s", MinSendInterval)
	}
	if _, err := time.LoadLocation(c.Outreach.Timezone); err != nil {
		return fmt.Errorf("config: outreach.timezone: %w", err)
	}
	return nil
}

// Location resolves outreach.timezone; Validate has already checked it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Outreach.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
