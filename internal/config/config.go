// Package config loads the daemon's runtime settings from environment
// variables (optionally via a .env file) into a typed struct, using
// struct tags for per-field defaults.
//
// Grounded on the teacher's internal/shared/config: the same
// reflect-driven fillStruct walk over nested structs, the same
// camelCase-field-name to UPPER_SNAKE_CASE env key derivation, and the
// same `default:"..."` tag convention. Extended here with the Ingest,
// Pipeline, RconPool and Crypto sections the teacher's Struct has no
// analogue for, since squad-aegis never ingested UDP log lines or
// pooled RCON connections across many servers.
package config

import (
	"os"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

var (
	loaded *Struct
	once   sync.Once
)

// Struct is the full set of daemon settings. Field names are converted
// to UPPER_SNAKE_CASE env keys joined by the enclosing structs' names,
// e.g. Db.Host becomes DB_HOST, RconPool.StatusIntervalSeconds becomes
// RCON_POOL_STATUS_INTERVAL_SECONDS.
type Struct struct {
	Ingest struct {
		BindAddr string `default:"0.0.0.0:27500"`
	}
	Pipeline struct {
		QueueCapacity int `default:"4096"`
		Workers       int `default:"0"`
	}
	RconPool struct {
		MaxRetries            int `default:"3"`
		BackoffBaseMs         int `default:"1000"`
		BackoffCapMs          int `default:"5000"`
		StatusIntervalSeconds int `default:"30"`
		ActiveWindowMinutes   int `default:"60"`
		SendQueueCapacity     int `default:"8"`
	}
	Crypto struct {
		SealKeyBase64 string `default:""`
	}
	Db struct {
		Host    string `default:"localhost"`
		Port    int    `default:"5432"`
		Name    string `default:"hlstatsd"`
		User    string `default:"hlstatsd"`
		Pass    string `default:"hlstatsd"`
		Migrate struct {
			Verbose bool `default:"false"`
		}
	}
	ClickHouse struct {
		Host     string `default:"localhost"`
		Port     int    `default:"9000"`
		Database string `default:"default"`
		Username string `default:"hlstatsd"`
		Password string `default:"hlstatsd"`
		Debug    bool   `default:"false"`
		Migrate  struct {
			Verbose bool `default:"false"`
		}
	}
	Valkey struct {
		Host     string `default:"localhost"`
		Port     int    `default:"6379"`
		Password string `default:""`
		Database int    `default:"0"`
	}
	Metrics struct {
		Enabled bool `default:"true"`
	}
	Log struct {
		Level   string `default:"info"`
		File    string `default:""`
		Pretty  bool   `default:"true"`
		NoColor bool   `default:"false"`
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

// toUpperSnakeCase converts a camelCase/PascalCase string to UPPER_SNAKE_CASE.
func toUpperSnakeCase(s string) string {
	var result strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' && i > 0 {
			result.WriteByte('_')
		}
		result.WriteRune(r)
	}
	return strings.ToUpper(result.String())
}

func envKey(prefix, name string) string {
	if prefix != "" {
		return prefix + "_" + toUpperSnakeCase(name)
	}
	return toUpperSnakeCase(name)
}

func fillStruct(s interface{}, prefix string) {
	val := reflect.ValueOf(s).Elem()
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		key := envKey(prefix, fieldType.Name)

		if field.Kind() == reflect.Struct {
			fillStruct(field.Addr().Interface(), key)
			continue
		}
		if !field.CanSet() {
			continue
		}

		switch field.Kind() {
		case reflect.String:
			field.SetString(getEnv(key, fieldType.Tag.Get("default")))
		case reflect.Int:
			defaultIntValue, _ := strconv.Atoi(fieldType.Tag.Get("default"))
			field.SetInt(int64(getEnvAsInt(key, defaultIntValue)))
		case reflect.Bool:
			field.SetBool(getEnvAsBool(key, fieldType.Tag.Get("default") == "true"))
		}
	}
}

// Load reads .env (if present) then environment variables into a fresh
// Struct. Safe to call more than once; only the first call's .env read
// and field population take effect, matching the teacher's process-wide
// singleton, since the daemon only ever needs one configuration.
func Load() *Struct {
	once.Do(func() {
		_ = godotenv.Load()
		loaded = &Struct{}
		fillStruct(loaded, "")
	})
	return loaded
}
