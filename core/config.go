package core

import (
	"fmt"
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host                      string
		Port                      string
		DebugHost                 string
		DisableReqLogs            bool
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		ShutdownTimeout           time.Duration
	}

	DatabaseConfig struct {
		Engine        string // postgres (lib/pq) | pgx (jackc/pgx stdlib)
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		MaxOpenConns  int
	}

	PaymentConfig struct {
		Provider    string // paystack | midtrans
		SecretKey   string
		BaseURL     string
		CallbackURL string
		Production  bool
		Timeout     time.Duration
	}

	DocumentsConfig struct {
		Store        string // local | oss
		Root         string
		OSSEndpoint  string
		OSSKeyID     string
		OSSKeySecret string
		OSSBucket    string
	}

	Config struct {
		AppName          string
		SchoolName       string
		Env              string
		Build            string
		Debug            bool
		TestMode         bool
		SecretKey        string
		FrontendBaseURL  string
		DefaultFromName  string
		DefaultFromAddr  string
		RollbarToken     string
		SendgridApiKey   string
		MaintenanceEvery time.Duration

		Server    ServerConfig
		Database  DatabaseConfig
		Payment   PaymentConfig
		Documents DocumentsConfig
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c ServerConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c *Config) DefaultFromEmail() mail.Address {
	return mail.Address{Name: c.DefaultFromName, Address: c.DefaultFromAddr}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", true)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "Academia")
	v.SetDefault("schoolName", "Excel International Academy")
	v.SetDefault("secretKey", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromName", "Academia")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("maintenanceInterval", 15*time.Minute)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.debugHost", "0.0.0.0:4000")
	v.SetDefault("server.disableReqLogs", false)
	v.SetDefault("server.jwtExpirationDelta", 4*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "academia")
	v.SetDefault("database.user", "academia")
	v.SetDefault("database.password", "academia")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)
	v.SetDefault("database.maxOpenConns", 20)

	v.SetDefault("payment.provider", "paystack")
	v.SetDefault("payment.secretKey", "")
	v.SetDefault("payment.baseURL", "https://api.paystack.co")
	v.SetDefault("payment.callbackURL", "http://localhost:3000/payments/callback")
	v.SetDefault("payment.production", false)
	v.SetDefault("payment.timeout", 15*time.Second)

	v.SetDefault("documents.store", "local")
	v.SetDefault("documents.root", "media")
	v.SetDefault("documents.ossEndpoint", "")
	v.SetDefault("documents.ossKeyID", "")
	v.SetDefault("documents.ossKeySecret", "")
	v.SetDefault("documents.ossBucket", "")
}

// NewConfig reads the configuration from defaults, the optional config/.env.<env> file and
// <ENV>_ prefixed environment variables (e.g. DEV_DATABASE_HOST), in increasing priority.
func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	testMode := env == "TEST"

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

	return &Config{
		AppName:          v.GetString("appName"),
		SchoolName:       v.GetString("schoolName"),
		Env:              env,
		Build:            v.GetString("build"),
		Debug:            v.GetBool("debug"),
		TestMode:         testMode,
		SecretKey:        v.GetString("secretKey"),
		FrontendBaseURL:  v.GetString("frontendBaseURL"),
		DefaultFromName:  v.GetString("defaultFromName"),
		DefaultFromAddr:  v.GetString("defaultFromEmail"),
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		MaintenanceEvery: v.GetDuration("maintenanceInterval"),
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			Port:                      v.GetString("server.port"),
			DebugHost:                 v.GetString("server.debugHost"),
			DisableReqLogs:            v.GetBool("server.disableReqLogs"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
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
		},
		Payment: PaymentConfig{
			Provider:    v.GetString("payment.provider"),
			SecretKey:   v.GetString("payment.secretKey"),
			BaseURL:     v.GetString("payment.baseURL"),
			CallbackURL: v.GetString("payment.callbackURL"),
			Production:  v.GetBool("payment.production"),
			Timeout:     v.GetDuration("payment.timeout"),
		},
		Documents: DocumentsConfig{
			Store:        v.GetString("documents.store"),
			Root:         v.GetString("documents.root"),
			OSSEndpoint:  v.GetString("documents.ossEndpoint"),
			OSSKeyID:     v.GetString("documents.ossKeyID"),
			OSSKeySecret: v.GetString("documents.ossKeySecret"),
			OSSBucket:    v.GetString("documents.ossBucket"),
		},
	}
}

// NewTestConfig returns a Config suitable for unit tests: no dotenv, no env lookups.
func NewTestConfig() *Config {
	v := viper.New()
	setDefaults(v)
	conf := &Config{
		AppName:          v.GetString("appName"),
		SchoolName:       v.GetString("schoolName"),
		Env:              "TEST",
		Build:            "test",
		Debug:            false,
		TestMode:         true,
		SecretKey:        v.GetString("secretKey"),
		FrontendBaseURL:  v.GetString("frontendBaseURL"),
		DefaultFromName:  v.GetString("defaultFromName"),
		DefaultFromAddr:  v.GetString("defaultFromEmail"),
		MaintenanceEvery: time.Minute,
	}
	conf.Server.JWTExpirationDelta = v.GetDuration("server.jwtExpirationDelta")
	conf.Server.JWTRefreshExpirationDelta = v.GetDuration("server.jwtRefreshExpirationDelta")
	conf.Server.ShutdownTimeout = time.Second
	conf.Server.DisableReqLogs = true
	conf.Payment.Provider = "paystack"
	conf.Payment.Timeout = 2 * time.Second
	conf.Payment.CallbackURL = v.GetString("payment.callbackURL")
	conf.Documents.Store = "local"
	return conf
}

func (c *Config) String() string {
	return fmt.Sprintf("%s(env=%s build=%s debug=%t)", c.AppName, c.Env, c.Build, c.Debug)
}
