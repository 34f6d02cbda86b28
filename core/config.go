package core

import (
	"log"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// storage drivers
const (
	StorageMemory   = "memory"
	StorageBolt     = "bolt"
	StoragePostgres = "postgres"
)

type (
	Config struct {
		Debug          bool
		TestMode       bool
		Env            string
		Build          string
		AppName        string
		SecretKey      string
		RollbarToken   string
		GoogleClientID string
		Seed           uint64

		JWTExpirationDelta time.Duration

		Server     ServerConfig
		Storage    StorageConfig
		Database   DatabaseConfig
		Attendance AttendanceConfig
		Study      StudyConfig
	}

	ServerConfig struct {
		Address         string
		DebugAddress    string
		Host            string
		ShutdownTimeout time.Duration
		DisableReqLogs  bool
	}

	StorageConfig struct {
		Driver   string
		BoltPath string
	}

	DatabaseConfig struct {
		Engine     string
		Host       string
		Port       int
		Name       string
		User       string
		Password   string
		DisableTLS bool
	}

	AttendanceConfig struct {
		Threshold      float64
		DaysLeft       int
		UploadMaxBytes int64
	}

	StudyConfig struct {
		DaysToExam  int
		HoursPerDay float64
	}
)

// Address returns the "host:port" of the database server.
func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "Mahudhurio")
	v.SetDefault("secretKey", "k2d#r8w!mzq5v$9h)7p^tx3=nb6e+yc1(ga4-uf0j&sl")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("googleClientID", "")
	v.SetDefault("seed", 42)
	v.SetDefault("jwtExpirationDelta", 7*24*time.Hour)

	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugAddress", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.disableReqLogs", false)

	v.SetDefault("storage.driver", StorageBolt)
	v.SetDefault("storage.boltPath", "user_data.db")

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "mahudhurio")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("attendance.threshold", 75.0)
	v.SetDefault("attendance.daysLeft", 60)
	v.SetDefault("attendance.uploadMaxBytes", 10<<20)

	v.SetDefault("study.daysToExam", 30)
	v.SetDefault("study.hoursPerDay", 4.0)
}

// NewConfig loads the app configuration from defaults, the optional `config/.env.<env>` file and the environment.
// Environment variables are prefixed with the upper-cased env name, eg. `PROD_SECRETKEY`, `DEV_STORAGE_DRIVER`.
func NewConfig() *Config {
	v := viper.New()
	setDefaults(v)

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
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return fromViper(v, env)
}

func fromViper(v *viper.Viper, env string) *Config {
	host, _ := os.Hostname()
	return &Config{
		Debug:              v.GetBool("debug"),
		TestMode:           v.GetBool("testMode"),
		Env:                env,
		Build:              v.GetString("build"),
		AppName:            v.GetString("appName"),
		SecretKey:          v.GetString("secretKey"),
		RollbarToken:       v.GetString("rollbarToken"),
		GoogleClientID:     v.GetString("googleClientID"),
		Seed:               v.GetUint64("seed"),
		JWTExpirationDelta: v.GetDuration("jwtExpirationDelta"),
		Server: ServerConfig{
			Address:         v.GetString("server.address"),
			DebugAddress:    v.GetString("server.debugAddress"),
			Host:            host,
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
			DisableReqLogs:  v.GetBool("server.disableReqLogs"),
		},
		Storage: StorageConfig{
			Driver:   v.GetString("storage.driver"),
			BoltPath: v.GetString("storage.boltPath"),
		},
		Database: DatabaseConfig{
			Engine:     v.GetString("database.engine"),
			Host:       v.GetString("database.host"),
			Port:       v.GetInt("database.port"),
			Name:       v.GetString("database.name"),
			User:       v.GetString("database.user"),
			Password:   v.GetString("database.password"),
			DisableTLS: v.GetBool("database.disableTLS"),
		},
		Attendance: AttendanceConfig{
			Threshold:      v.GetFloat64("attendance.threshold"),
			DaysLeft:       v.GetInt("attendance.daysLeft"),
			UploadMaxBytes: v.GetInt64("attendance.uploadMaxBytes"),
		},
		Study: StudyConfig{
			DaysToExam:  v.GetInt("study.daysToExam"),
			HoursPerDay: v.GetFloat64("study.hoursPerDay"),
		},
	}
}

// NewTestConfig returns the default configuration, ignoring the environment.
func NewTestConfig() *Config {
	v := viper.New()
	setDefaults(v)
	v.Set("testMode", true)
	v.Set("storage.driver", StorageMemory)
	return fromViper(v, "TEST")
}
