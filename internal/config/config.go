package config

import (
	"bytes"
	"fmt"
	"net"
	neturl "net/url"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"
	defaultPort       = 2440
	defaultEnv        = "development"
	defaultDBHost     = "127.0.0.1"
	defaultDBPort     = 3306
	defaultDBUser     = "root"
	defaultDBPassword = "password"
	defaultDBName     = "sidestreets"
	defaultDBCharset  = "utf8mb4"
	defaultDBLoc      = "Local"
	defaultRedisHost  = "localhost"
	defaultRedisPort  = 6379
	defaultBaseURL    = "http://localhost:2440"
	defaultSiteName   = "Sidestreets"
)

// AppConfig holds runtime configuration loaded from YAML.
type AppConfig struct {
	Port           int             `yaml:"port"`
	Env            string          `yaml:"env"` // "development" | "production"
	Site           SiteConfig      `yaml:"site"`
	Database       DatabaseConfig  `yaml:"database"`
	Redis          RedisConfig     `yaml:"redis"`
	Mail           MailConfig      `yaml:"mail"`
	Turnstile      TurnstileConfig `yaml:"turnstile"`
	Admin          AdminConfig     `yaml:"admin"`
	JWTSecret      string          `yaml:"jwt_secret"`
	AllowedOrigins []string        `yaml:"allowed_origins"`

	// Derived, not read from YAML.
	DSN      string `yaml:"-"`
	RedisURL string `yaml:"-"`
}

// SiteConfig identifies the public site; BaseURL is the root for
// confirmation and unsubscribe links embedded in emails.
type SiteConfig struct {
	Name    string `yaml:"name"`
	BaseURL string `yaml:"base_url"`
}

type DatabaseConfig struct {
	DSN       string `yaml:"dsn"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	User      string `yaml:"user"`
	Password  string `yaml:"password"`
	Name      string `yaml:"name"`
	Charset   string `yaml:"charset"`
	ParseTime bool   `yaml:"parse_time"`
	Loc       string `yaml:"loc"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TLS      bool   `yaml:"tls"`
}

// MailConfig selects the email provider and sender identities. From is the
// production sender; SandboxFrom is used in non-production environments so
// test submissions never originate from the real domain.
type MailConfig struct {
	Enable      bool         `yaml:"enable"`
	Provider    string       `yaml:"provider"` // "smtp" | "resend"
	From        string       `yaml:"from"`
	SandboxFrom string       `yaml:"sandbox_from"`
	ReplyTo     string       `yaml:"reply_to"`
	ContactTo   string       `yaml:"contact_to"`
	SMTP        SMTPConfig   `yaml:"smtp"`
	Resend      ResendConfig `yaml:"resend"`
}

type SMTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	User string `yaml:"user"`
	Pass string `yaml:"pass"`
}

type ResendConfig struct {
	APIKey string `yaml:"api_key"`
}

type TurnstileConfig struct {
	Secret string `yaml:"secret"`
}

// AdminConfig carries the single administrative credential as a bcrypt hash.
type AdminConfig struct {
	PasswordHash string `yaml:"password_hash"`
}

func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	cfg := defaultAppConfig()
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config file %q: %w", path, err)
	}

	cfg.normalize()
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d in %q, expected 1-65535", cfg.Port, path)
	}
	if cfg.Database.Port < 1 || cfg.Database.Port > 65535 {
		return nil, fmt.Errorf("invalid database.port %d in %q, expected 1-65535", cfg.Database.Port, path)
	}
	if cfg.Redis.Port < 1 || cfg.Redis.Port > 65535 {
		return nil, fmt.Errorf("invalid redis.port %d in %q, expected 1-65535", cfg.Redis.Port, path)
	}

	return &cfg, nil
}

func defaultAppConfig() AppConfig {
	return AppConfig{
		Port: defaultPort,
		Env:  defaultEnv,
		Site: SiteConfig{
			Name:    defaultSiteName,
			BaseURL: defaultBaseURL,
		},
		Database: DatabaseConfig{
			Host:      defaultDBHost,
			Port:      defaultDBPort,
			User:      defaultDBUser,
			Password:  defaultDBPassword,
			Name:      defaultDBName,
			Charset:   defaultDBCharset,
			ParseTime: true,
			Loc:       defaultDBLoc,
		},
		Redis: RedisConfig{
			Host: defaultRedisHost,
			Port: defaultRedisPort,
		},
		Mail: MailConfig{
			Provider: "smtp",
			SMTP:     SMTPConfig{Port: 587},
		},
	}
}

func (c *AppConfig) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	if c.Env == "" {
		c.Env = defaultEnv
	}
	c.Site.Name = strings.TrimSpace(c.Site.Name)
	if c.Site.Name == "" {
		c.Site.Name = defaultSiteName
	}
	c.Site.BaseURL = strings.TrimRight(strings.TrimSpace(c.Site.BaseURL), "/")
	if c.Site.BaseURL == "" {
		c.Site.BaseURL = defaultBaseURL
	}

	origins := make([]string, 0, len(c.AllowedOrigins))
	for _, origin := range c.AllowedOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	c.AllowedOrigins = origins

	c.Mail.Provider = strings.ToLower(strings.TrimSpace(c.Mail.Provider))
	if c.Mail.Provider == "" {
		c.Mail.Provider = "smtp"
	}
	if c.Mail.SMTP.Port == 0 {
		c.Mail.SMTP.Port = 587
	}

	c.DSN = c.Database.DSNValue()
	c.RedisURL = c.Redis.URLValue()
}

func (c *AppConfig) IsDev() bool {
	return strings.EqualFold(c.Env, defaultEnv)
}

// SenderAddress picks the environment-appropriate From address.
func (c *AppConfig) SenderAddress() string {
	if c.IsDev() && strings.TrimSpace(c.Mail.SandboxFrom) != "" {
		return strings.TrimSpace(c.Mail.SandboxFrom)
	}
	return strings.TrimSpace(c.Mail.From)
}

func (c DatabaseConfig) DSNValue() string {
	if v := strings.TrimSpace(c.DSN); v != "" {
		return v
	}

	host := strings.TrimSpace(c.Host)
	if host == "" {
		host = defaultDBHost
	}
	port := c.Port
	if port == 0 {
		port = defaultDBPort
	}
	user := strings.TrimSpace(c.User)
	if user == "" {
		user = defaultDBUser
	}
	password := strings.TrimSpace(c.Password)
	if password == "" {
		password = defaultDBPassword
	}
	name := strings.TrimSpace(c.Name)
	if name == "" {
		name = defaultDBName
	}
	charset := strings.TrimSpace(c.Charset)
	if charset == "" {
		charset = defaultDBCharset
	}
	loc := strings.TrimSpace(c.Loc)
	if loc == "" {
		loc = defaultDBLoc
	}

	params := neturl.Values{}
	params.Set("charset", charset)
	params.Set("parseTime", strconv.FormatBool(c.ParseTime))
	params.Set("loc", loc)

	return fmt.Sprintf("%s:%s@tcp(%s)/%s?%s",
		user, password, net.JoinHostPort(host, strconv.Itoa(port)), name, params.Encode())
}

func (c RedisConfig) URLValue() string {
	if v := strings.TrimSpace(c.URL); v != "" {
		if strings.HasPrefix(v, "redis://") || strings.HasPrefix(v, "rediss://") {
			return v
		}
		return "redis://" + v
	}

	host := strings.TrimSpace(c.Host)
	if host == "" {
		host = defaultRedisHost
	}
	port := c.Port
	if port == 0 {
		port = defaultRedisPort
	}
	db := c.DB
	if db < 0 {
		db = 0
	}

	scheme := "redis"
	if c.TLS {
		scheme = "rediss"
	}

	u := &neturl.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
		Path:   "/" + strconv.Itoa(db),
	}
	username := strings.TrimSpace(c.Username)
	password := strings.TrimSpace(c.Password)
	if username != "" {
		if password != "" {
			u.User = neturl.UserPassword(username, password)
		} else {
			u.User = neturl.User(username)
		}
	} else if password != "" {
		u.User = neturl.UserPassword("", password)
	}

	return u.String()
}
