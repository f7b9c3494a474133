package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env                           string
		Build                         string
		Debug                         bool
		TestMode                      bool
		AppName                       string
		SecretKey                     string
		FrontendBaseURL               string
		DefaultFromEmail              mail.Address
		PasswordResetTimeoutDelta     time.Duration
		EmailVerificationTimeoutDelta time.Duration
		SendgridApiKey                string
		RollbarToken                  string

		Server    ServerConfig
		Database  DatabaseConfig
		RateLimit RateLimitConfig
	}

	ServerConfig struct {
		Host                      string
		Address                   string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		SecureCookies             bool
		// TrustProxy makes the rate limiter key clients on X-Forwarded-For / X-Real-IP.
		TrustProxy bool
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		InMemory      bool
	}

	RateLimitConfig struct {
		Backend       string // memory | redis
		RedisAddr     string
		RedisPassword string
		RedisDB       int
		SweepInterval time.Duration
		Presets       []RateLimitPreset
	}

	RateLimitPreset struct {
		Name   string
		Max    int
		Window time.Duration
	}
)

func (dc DatabaseConfig) Address() string {
	return net.JoinHostPort(dc.Host, strconv.Itoa(dc.Port))
}

// NewConfig loads the configuration from the environment (and the optional `config/.env.<env>` file).
// The returned Config must be treated as read-only.
func NewConfig() *Config {
	v := viper.New()

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}

	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, env)

	conf := &Config{
		Env:                           env,
		Build:                         v.GetString("build"),
		Debug:                         v.GetBool("debug"),
		TestMode:                      v.GetBool("testMode"),
		AppName:                       v.GetString("appName"),
		SecretKey:                     v.GetString("secretKey"),
		FrontendBaseURL:               strings.TrimRight(v.GetString("frontendBaseURL"), "/"),
		DefaultFromEmail:              mail.Address{Name: v.GetString("appName"), Address: v.GetString("defaultFromEmail")},
		PasswordResetTimeoutDelta:     v.GetDuration("passwordResetTimeoutDelta"),
		EmailVerificationTimeoutDelta: v.GetDuration("emailVerificationTimeoutDelta"),
		SendgridApiKey:                v.GetString("sendgridApiKey"),
		RollbarToken:                  v.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			Address:                   v.GetString("server.address"),
			DebugHost:                 v.GetString("server.debugHost"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
			SecureCookies:             v.GetBool("server.secureCookies"),
			TrustProxy:                v.GetBool("server.trustProxy"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
			InMemory:      v.GetBool("database.inMemory"),
		},
		RateLimit: RateLimitConfig{
			Backend:       strings.ToLower(v.GetString("ratelimit.backend")),
			RedisAddr:     v.GetString("ratelimit.redisAddr"),
			RedisPassword: v.GetString("ratelimit.redisPassword"),
			RedisDB:       v.GetInt("ratelimit.redisDB"),
			SweepInterval: v.GetDuration("ratelimit.sweepInterval"),
			Presets: []RateLimitPreset{
				{
					Name:   "sensitive",
					Max:    v.GetInt("ratelimit.sensitive.max"),
					Window: v.GetDuration("ratelimit.sensitive.window"),
				},
				{
					Name:   "standard",
					Max:    v.GetInt("ratelimit.standard.max"),
					Window: v.GetDuration("ratelimit.standard.window"),
				},
			},
		},
	}
	return conf
}

func setDefaults(v *viper.Viper, env string) {
	v.SetTypeByDefaultValue(true)

	v.SetDefault("build", "develop")
	v.SetDefault("debug", env == "DEV")
	v.SetDefault("testMode", env == "TEST")
	v.SetDefault("appName", "Academia")
	v.SetDefault("secretKey", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)
	v.SetDefault("emailVerificationTimeoutDelta", 7*24*time.Hour)
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugHost", "localhost:4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)
	v.SetDefault("server.secureCookies", env != "DEV" && env != "TEST")
	v.SetDefault("server.trustProxy", false)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "academia")
	v.SetDefault("database.user", "academia")
	v.SetDefault("database.password", "")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", env == "DEV" || env == "TEST")
	v.SetDefault("database.inMemory", false)

	v.SetDefault("ratelimit.backend", "memory")
	v.SetDefault("ratelimit.redisAddr", "localhost:6379")
	v.SetDefault("ratelimit.redisPassword", "")
	v.SetDefault("ratelimit.redisDB", 0)
	v.SetDefault("ratelimit.sweepInterval", time.Minute)
	v.SetDefault("ratelimit.sensitive.max", 3)
	v.SetDefault("ratelimit.sensitive.window", 5*time.Minute)
	v.SetDefault("ratelimit.standard.max", 20)
	v.SetDefault("ratelimit.standard.window", time.Minute)
}
