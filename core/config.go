package core

import (
	"fmt"
	"log"
	"net"
	"net/mail"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env             string // DEV (local; default), TEST, QA, PROD
		Build           string
		Debug           bool
		TestMode        bool
		AppName         string
		SecretKey       string
		RollbarToken    string
		SendgridApiKey  string
		FrontendBaseURL string
		WorkDir         string

		defaultFromEmail string

		Server   ServerConfig
		Database DatabaseConfig
		Sms      SmsConfig
		Jobs     JobsConfig
	}

	ServerConfig struct {
		Host                      string
		Address                   string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		PasswordResetTimeoutDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		MaxOpenConns  int
		MaxIdleConns  int
	}

	SmsConfig struct {
		Provider   string // console | gateway
		GatewayURL string
		ApiKey     string
		SenderID   string
	}

	JobsConfig struct {
		Workers      int
		QueueSize    int
		MaxAttempts  int
		ResultTTL    time.Duration
		SyncSchedule string // cron spec of the nightly curriculum sync; empty disables it
	}
)

// Address returns the "host:port" of the database server.
func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// DSN builds a postgres connection URL for the named database, optionally as the admin user.
func (c DatabaseConfig) DSN(dbName string, admin bool) string {
	usr := url.UserPassword(c.User, c.Password)
	if admin && c.AdminUser != "" {
		usr = url.UserPassword(c.AdminUser, c.AdminPassword)
	}

	sslMode := "require"
	if c.DisableTLS {
		sslMode = "disable"
	}
	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   c.Engine,
		User:     usr,
		Host:     c.Address(),
		Path:     dbName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func (c *Config) DefaultFromEmail() mail.Address {
	return mail.Address{Name: c.AppName, Address: c.defaultFromEmail}
}

// NewConfig loads the configuration from defaults, the optional `config/.env.<env>` file and the environment.
// Environment variables are prefixed with the env name, eg. `PROD_DATABASE_HOST`.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("build", "dev")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "Shule")
	v.SetDefault("secretKey", "k&u3v-*7^lq(0wzm+o2e_9!yx#d1s@r4g%h8n)cjf5pb6ta$i")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("frontendBaseURL", "http://localhost:8080")
	v.SetDefault("defaultFromEmail", "noreply@localhost")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)
	v.SetDefault("server.passwordResetTimeoutDelta", 3*24*time.Hour)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "shule")
	v.SetDefault("database.user", "shule")
	v.SetDefault("database.password", "shule")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)
	v.SetDefault("database.maxOpenConns", 20)
	v.SetDefault("database.maxIdleConns", 10)

	v.SetDefault("sms.provider", "console")
	v.SetDefault("sms.gatewayURL", "")
	v.SetDefault("sms.apiKey", "")
	v.SetDefault("sms.senderID", "SHULE")

	v.SetDefault("jobs.workers", 4)
	v.SetDefault("jobs.queueSize", 64)
	v.SetDefault("jobs.maxAttempts", 3)
	v.SetDefault("jobs.resultTTL", 24*time.Hour)
	v.SetDefault("jobs.syncSchedule", "0 2 * * *")

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	workDir := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		Env:              env,
		Build:            v.GetString("build"),
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		AppName:          v.GetString("appName"),
		SecretKey:        v.GetString("secretKey"),
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		FrontendBaseURL:  strings.TrimRight(v.GetString("frontendBaseURL"), "/"),
		WorkDir:          workDir,
		defaultFromEmail: v.GetString("defaultFromEmail"),
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			Address:                   v.GetString("server.address"),
			DebugHost:                 v.GetString("server.debugHost"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
			PasswordResetTimeoutDelta: v.GetDuration("server.passwordResetTimeoutDelta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
			MaxOpenConns:  v.GetInt("database.maxOpenConns"),
			MaxIdleConns:  v.GetInt("database.maxIdleConns"),
		},
		Sms: SmsConfig{
			Provider:   strings.ToLower(v.GetString("sms.provider")),
			GatewayURL: v.GetString("sms.gatewayURL"),
			ApiKey:     v.GetString("sms.apiKey"),
			SenderID:   v.GetString("sms.senderID"),
		},
		Jobs: JobsConfig{
			Workers:      v.GetInt("jobs.workers"),
			QueueSize:    v.GetInt("jobs.queueSize"),
			MaxAttempts:  v.GetInt("jobs.maxAttempts"),
			ResultTTL:    v.GetDuration("jobs.resultTTL"),
			SyncSchedule: v.GetString("jobs.syncSchedule"),
		},
	}
	if conf.TestMode {
		conf.Database.Name = "test_" + conf.Database.Name
	}
	return conf
}

// NewTestConfig returns a Config suitable for unit tests: nothing is read from disk or the environment.
func NewTestConfig() *Config {
	return &Config{
		Env:              "TEST",
		Build:            "test",
		TestMode:         true,
		AppName:          "Shule",
		SecretKey:        "secret",
		FrontendBaseURL:  "http://localhost:8080",
		defaultFromEmail: "noreply@localhost",
		Server: ServerConfig{
			Host:                      "localhost",
			ShutdownTimeout:           time.Second,
			JWTExpirationDelta:        10 * time.Minute,
			JWTRefreshExpirationDelta: 4 * time.Hour,
			PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		},
		Sms:  SmsConfig{Provider: "console", SenderID: "SHULE"},
		Jobs: JobsConfig{Workers: 2, QueueSize: 8, MaxAttempts: 1, ResultTTL: time.Hour},
	}
}

func (c *Config) String() string {
	return fmt.Sprintf("%s (env=%s, debug=%t)", c.AppName, c.Env, c.Debug)
}
