package config

import (
	"errors"
	"strings"
	"time"

	"github.com/khanghh/kattest/params"
	"github.com/spf13/viper"
)

const (
	DefaultListenAddr   = ":3000"
	DefaultStorageDir   = "./storage"
	DefaultCookieMaxAge = 8 * time.Hour
	DefaultCookieName   = "kattest_session"
	DefaultSiteName     = "kattest"
)

type MySQLConfig struct {
	Dsn             string   `mapstructure:"dsn"`
	TablePrefix     string   `mapstructure:"tablePrefix"`
	Replicas        []string `mapstructure:"replicas"`
	MaxIdleConns    int      `mapstructure:"maxIdleConns"`
	MaxOpenConns    int      `mapstructure:"maxOpenConns"`
	ConnMaxIdleTime int      `mapstructure:"connMaxIdleTime"`
	ConnMaxLifetime int      `mapstructure:"connMaxLifetime"`
}

type SessionConfig struct {
	SessionMaxAge  time.Duration `mapstructure:"sessionMaxAge"`
	CookieName     string        `mapstructure:"cookieName"`
	CookieHttpOnly bool          `mapstructure:"cookieHttpOnly"`
	CookieSecure   bool          `mapstructure:"cookieSecure"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	TLS      bool   `mapstructure:"tls"`
	CertFile string `mapstructure:"certFile"`
	KeyFile  string `mapstructure:"keyFile"`
	CAFile   string `mapstructure:"caFile"`
}

type MailConfig struct {
	Backend string     `mapstructure:"backend"`
	From    string     `mapstructure:"from"`
	SMTP    SMTPConfig `mapstructure:"smtp"`
}

type RedisConfig struct {
	URL         string `mapstructure:"url"`
	PoolSize    int    `mapstructure:"poolSize"`
	ClusterMode bool   `mapstructure:"clusterMode"`
}

type SignatureConfig struct {
	PinMaxAttempts   int           `mapstructure:"pinMaxAttempts"`
	PinLockout       time.Duration `mapstructure:"pinLockout"`
	VerifyKey        string        `mapstructure:"verifyKey"`
	VerifyLinkMaxAge time.Duration `mapstructure:"verifyLinkMaxAge"`
}

type NotifyConfig struct {
	Workers    int           `mapstructure:"workers"`
	MaxRetries int           `mapstructure:"maxRetries"`
	RetryDelay time.Duration `mapstructure:"retryDelay"`
}

type Config struct {
	Debug        bool            `mapstructure:"debug"`
	SiteName     string          `mapstructure:"siteName"`
	BaseURL      string          `mapstructure:"baseURL"`
	MasterKey    string          `mapstructure:"masterKey"`
	ListenAddr   string          `mapstructure:"listenAddr"`
	NodeID       int64           `mapstructure:"nodeID"`
	StorageDir   string          `mapstructure:"storageDir"`
	TemplateDir  string          `mapstructure:"templateDir"`
	AllowOrigins []string        `mapstructure:"allowOrigins"`
	Redis        RedisConfig     `mapstructure:"redis"`
	Session      SessionConfig   `mapstructure:"session"`
	Mail         MailConfig      `mapstructure:"mail"`
	MySQL        MySQLConfig     `mapstructure:"mysql"`
	Signature    SignatureConfig `mapstructure:"signature"`
	Notify       NotifyConfig    `mapstructure:"notify"`
}

func (c *Config) Sanitize() error {
	if c.MasterKey == "" {
		return errors.New("masterKey must be set")
	}
	if c.NodeID < 0 || c.NodeID > 1023 {
		return errors.New("nodeID must be between 0 and 1023")
	}
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.SiteName == "" {
		c.SiteName = DefaultSiteName
	}
	if c.StorageDir == "" {
		c.StorageDir = DefaultStorageDir
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Session.SessionMaxAge == 0 {
		c.Session.SessionMaxAge = DefaultCookieMaxAge
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = DefaultCookieName
	}
	if c.Signature.PinMaxAttempts <= 0 {
		c.Signature.PinMaxAttempts = params.PinMaxAttempts
	}
	if c.Signature.PinLockout <= 0 {
		c.Signature.PinLockout = params.PinLockoutDuration
	}
	if c.Signature.VerifyKey == "" {
		c.Signature.VerifyKey = c.MasterKey
	}
	if c.Signature.VerifyLinkMaxAge <= 0 {
		c.Signature.VerifyLinkMaxAge = params.VerifyLinkMaxAge
	}
	if c.Notify.Workers <= 0 {
		c.Notify.Workers = params.NotifyWorkers
	}
	if c.Notify.MaxRetries <= 0 {
		c.Notify.MaxRetries = params.NotifyMaxRetries
	}
	if c.Notify.RetryDelay <= 0 {
		c.Notify.RetryDelay = params.NotifyRetryDelay
	}
	return nil
}

func LoadConfig(filename string) (*Config, error) {
	viper.SetConfigFile(filename)
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Sanitize(); err != nil {
		return nil, err
	}
	return &config, nil
}
