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

var Conf *Config

type Config struct {
	Env      string
	AppName  string
	Build    string
	Debug    bool
	TestMode bool

	SecretKey       []byte
	FrontendBaseURL string
	WorkDir         string

	DefaultFromEmail              mail.Address
	AccountActivationTimeoutDelta time.Duration

	SendgridAPIKey string
	RollbarToken   string

	Server struct {
		Host                      string
		Port                      string
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	Database struct {
		Engine        string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Host          string
		Port          string
		DisableTLS    bool
	}
}

func (c *Config) DatabaseAddress() string {
	return c.Database.Host + ":" + c.Database.Port
}

func init() {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("appName", "DigiWiz")
	v.SetDefault("build", "dev")
	v.SetDefault("secretKey", "q2w)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("accountActivationTimeoutDelta", 3*24*time.Hour)
	v.SetDefault("serverHost", "localhost")
	v.SetDefault("serverPort", "8000")
	v.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("jwtRefreshExpirationDelta", 4*time.Hour)
	v.SetDefault("dbEngine", "postgres")
	v.SetDefault("dbName", "digiwiz")
	v.SetDefault("dbUser", "digiwiz")
	v.SetDefault("dbPassword", "")
	v.SetDefault("dbAdminUser", "")
	v.SetDefault("dbAdminPassword", "")
	v.SetDefault("dbHost", "localhost")
	v.SetDefault("dbPort", "5432")
	v.SetDefault("dbDisableTLS", true)
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")

	env := os.Getenv("ENV") // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	Conf = &Config{
		Env:                           env,
		AppName:                       v.GetString("appName"),
		Build:                         v.GetString("build"),
		Debug:                         v.GetBool("debug"),
		TestMode:                      v.GetBool("testMode"),
		SecretKey:                     []byte(v.GetString("secretKey")),
		FrontendBaseURL:               v.GetString("frontendBaseURL"),
		WorkDir:                       wd,
		DefaultFromEmail:              mail.Address{Name: v.GetString("appName"), Address: v.GetString("defaultFromEmail")},
		AccountActivationTimeoutDelta: v.GetDuration("accountActivationTimeoutDelta"),
		SendgridAPIKey:                v.GetString("sendgridApiKey"),
		RollbarToken:                  v.GetString("rollbarToken"),
	}
	Conf.Server.Host = v.GetString("serverHost")
	Conf.Server.Port = v.GetString("serverPort")
	Conf.Server.JWTExpirationDelta = v.GetDuration("jwtExpirationDelta")
	Conf.Server.JWTRefreshExpirationDelta = v.GetDuration("jwtRefreshExpirationDelta")
	Conf.Database.Engine = v.GetString("dbEngine")
	Conf.Database.Name = v.GetString("dbName")
	Conf.Database.User = v.GetString("dbUser")
	Conf.Database.Password = v.GetString("dbPassword")
	Conf.Database.AdminUser = v.GetString("dbAdminUser")
	Conf.Database.AdminPassword = v.GetString("dbAdminPassword")
	Conf.Database.Host = v.GetString("dbHost")
	Conf.Database.Port = v.GetString("dbPort")
	Conf.Database.DisableTLS = v.GetBool("dbDisableTLS")
}
