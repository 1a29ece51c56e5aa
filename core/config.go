package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Database engines
const (
	EngineMemory   = "memory"
	EngineMongo    = "mongo"
	EnginePostgres = "postgres"
)

// Object storage providers
const (
	StorageLocal    = "local"
	StorageOSS      = "oss"
	StorageFirebase = "firebase"
)

// Mail providers
const (
	MailConsole  = "console"
	MailSendgrid = "sendgrid"
	MailSMTP     = "smtp"
)

type (
	Config struct {
		Env                       string
		Build                     string
		Debug                     bool
		TestMode                  bool
		AppName                   string
		SecretKey                 string
		FrontendBaseURL           string
		RollbarToken              string
		PasswordResetTimeoutDelta time.Duration

		defaultFromEmail string

		Server   ServerConfig
		Database DatabaseConfig
		Storage  StorageConfig
		Mail     MailConfig
		Scoring  ScoringConfig
		Uploads  UploadsConfig
	}

	ServerConfig struct {
		Host                      string
		Address                   string
		DebugHost                 string
		DisableReqLogs            bool
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine     string
		URI        string
		Name       string
		Host       string
		Port       string
		User       string
		Password   string
		DisableTLS bool
	}

	StorageConfig struct {
		Provider           string
		LocalDir           string
		PublicBaseURL      string
		Bucket             string
		OSSEndpoint        string
		OSSAccessKeyID     string
		OSSAccessKeySecret string
		FirebaseCredFile   string
	}

	MailConfig struct {
		Provider       string
		SendgridAPIKey string
		SMTPHost       string
		SMTPPort       int
		SMTPUser       string
		SMTPPassword   string
	}

	ScoringConfig struct {
		// RequireComplete rejects submissions that leave a required cell blank.
		RequireComplete bool
		// PurgeOnColumnDelete strips a deleted column's scores from every team.
		PurgeOnColumnDelete bool
	}

	UploadsConfig struct {
		MaxSize int64 // bytes
		TempDir string
	}
)

func (conf *Config) DefaultFromEmail() mail.Address {
	return mail.Address{Name: conf.AppName, Address: conf.defaultFromEmail}
}

func (db DatabaseConfig) Address() string {
	if db.Port == "" {
		return db.Host
	}
	return db.Host + ":" + db.Port
}

// NewConfig loads the app configuration from defaults, the optional `config/.env.<env>` file and the environment.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("build", "develop")
	v.SetDefault("debug", true)
	v.SetDefault("appName", "ReviewDesk")
	v.SetDefault("secretKey", "m3y!f0-q^x2k@7p#t8z$w1c%r6b&n5v*j4h(l9g)d0s_a+e")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.disableReqLogs", false)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 30*24*time.Hour)

	v.SetDefault("database.engine", EngineMemory)
	v.SetDefault("database.uri", "")
	v.SetDefault("database.name", "reviewdesk")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.disableTLS", false)

	v.SetDefault("storage.provider", StorageLocal)
	v.SetDefault("storage.localDir", "uploads")
	v.SetDefault("storage.publicBaseURL", "http://localhost:8000/uploads")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.ossEndpoint", "")
	v.SetDefault("storage.ossAccessKeyID", "")
	v.SetDefault("storage.ossAccessKeySecret", "")
	v.SetDefault("storage.firebaseCredFile", "")

	v.SetDefault("mail.provider", MailConsole)
	v.SetDefault("mail.sendgridAPIKey", "")
	v.SetDefault("mail.smtpHost", "")
	v.SetDefault("mail.smtpPort", 587)
	v.SetDefault("mail.smtpUser", "")
	v.SetDefault("mail.smtpPassword", "")

	v.SetDefault("scoring.requireComplete", true)
	v.SetDefault("scoring.purgeOnColumnDelete", false)

	v.SetDefault("uploads.maxSize", 25<<20)
	v.SetDefault("uploads.tempDir", os.TempDir())

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:                       env,
		Build:                     v.GetString("build"),
		Debug:                     v.GetBool("debug"),
		TestMode:                  v.GetBool("testMode"),
		AppName:                   v.GetString("appName"),
		SecretKey:                 v.GetString("secretKey"),
		FrontendBaseURL:           v.GetString("frontendBaseURL"),
		RollbarToken:              v.GetString("rollbarToken"),
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		defaultFromEmail:          v.GetString("defaultFromEmail"),
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			Address:                   v.GetString("server.address"),
			DebugHost:                 v.GetString("server.debugHost"),
			DisableReqLogs:            v.GetBool("server.disableReqLogs"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:     v.GetString("database.engine"),
			URI:        v.GetString("database.uri"),
			Name:       v.GetString("database.name"),
			Host:       v.GetString("database.host"),
			Port:       v.GetString("database.port"),
			User:       v.GetString("database.user"),
			Password:   v.GetString("database.password"),
			DisableTLS: v.GetBool("database.disableTLS"),
		},
		Storage: StorageConfig{
			Provider:           v.GetString("storage.provider"),
			LocalDir:           v.GetString("storage.localDir"),
			PublicBaseURL:      v.GetString("storage.publicBaseURL"),
			Bucket:             v.GetString("storage.bucket"),
			OSSEndpoint:        v.GetString("storage.ossEndpoint"),
			OSSAccessKeyID:     v.GetString("storage.ossAccessKeyID"),
			OSSAccessKeySecret: v.GetString("storage.ossAccessKeySecret"),
			FirebaseCredFile:   v.GetString("storage.firebaseCredFile"),
		},
		Mail: MailConfig{
			Provider:       v.GetString("mail.provider"),
			SendgridAPIKey: v.GetString("mail.sendgridAPIKey"),
			SMTPHost:       v.GetString("mail.smtpHost"),
			SMTPPort:       v.GetInt("mail.smtpPort"),
			SMTPUser:       v.GetString("mail.smtpUser"),
			SMTPPassword:   v.GetString("mail.smtpPassword"),
		},
		Scoring: ScoringConfig{
			RequireComplete:     v.GetBool("scoring.requireComplete"),
			PurgeOnColumnDelete: v.GetBool("scoring.purgeOnColumnDelete"),
		},
		Uploads: UploadsConfig{
			MaxSize: v.GetInt64("uploads.maxSize"),
			TempDir: v.GetString("uploads.tempDir"),
		},
	}
}

// NewTestConfig returns a Config suitable for tests: no I/O, in-memory storage, console mails.
func NewTestConfig() *Config {
	return &Config{
		Env:                       "TEST",
		Build:                     "test",
		TestMode:                  true,
		AppName:                   "ReviewDesk",
		SecretKey:                 "secret",
		FrontendBaseURL:           "http://localhost:3000",
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		defaultFromEmail:          "noreply@localhost",
		Server: ServerConfig{
			Host:                      "localhost",
			DisableReqLogs:            true,
			ShutdownTimeout:           time.Second,
			JWTExpirationDelta:        10 * time.Minute,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
		Database: DatabaseConfig{Engine: EngineMemory},
		Storage:  StorageConfig{Provider: StorageLocal, PublicBaseURL: "http://localhost/uploads"},
		Mail:     MailConfig{Provider: MailConsole},
		Scoring:  ScoringConfig{RequireComplete: true},
		Uploads:  UploadsConfig{MaxSize: 1 << 20, TempDir: os.TempDir()},
	}
}
