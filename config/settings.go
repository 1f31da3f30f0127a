package config

import (
	"reflect"
	"time"

	"github.com/fatih/structs"
	"github.com/juju/errors"
	validation "github.com/ltick/ltick-validation"
)

const SETTING_TAG = "config"

const (
	ModeAuthoring = "authoring"
	ModeLive      = "live"

	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

var (
	errLoadSettings     = "config: load settings error"
	errSettingField     = "config: setting field '%s' (key '%s') error"
	errValidateSettings = "config: validate settings error"
)

// Settings is the typed view of the SOA_* options.
type Settings struct {
	Mode           string `config:"SOA_MODE"`
	StoreProvider  string `config:"SOA_STORE_PROVIDER"`
	StorePath      string `config:"SOA_STORE_PATH"`
	RedisHost      string `config:"SOA_REDIS_HOST"`
	RedisPort      string `config:"SOA_REDIS_PORT"`
	RedisPassword  string `config:"SOA_REDIS_PASSWORD"`
	RedisDatabase  int    `config:"SOA_REDIS_DATABASE"`
	RedisKeyPrefix string `config:"SOA_REDIS_KEY_PREFIX"`
	// RedisIdleTimeout closes pooled redis connections idle for longer.
	RedisIdleTimeout time.Duration `config:"SOA_REDIS_IDLE_TIMEOUT"`
	LogLevel         string        `config:"SOA_LOG_LEVEL"`
	LogWriter        string        `config:"SOA_LOG_WRITER"`
	LogFile          string        `config:"SOA_LOG_FILE"`
	KafkaBrokers     string        `config:"SOA_KAFKA_BROKERS"`
	KafkaTopic       string        `config:"SOA_KAFKA_TOPIC"`
}

// DefaultOptions returns the option declarations backing Settings.
func DefaultOptions() map[string]Option {
	return map[string]Option{
		"SOA_MODE":               Option{Type: String, Default: ModeAuthoring, EnvironmentKey: "SOA_MODE"},
		"SOA_STORE_PROVIDER":     Option{Type: String, Default: StoreMemory, EnvironmentKey: "SOA_STORE_PROVIDER"},
		"SOA_STORE_PATH":         Option{Type: String, Default: "assets", EnvironmentKey: "SOA_STORE_PATH"},
		"SOA_REDIS_HOST":         Option{Type: String, Default: "127.0.0.1", EnvironmentKey: "SOA_REDIS_HOST"},
		"SOA_REDIS_PORT":         Option{Type: String, Default: "6379", EnvironmentKey: "SOA_REDIS_PORT"},
		"SOA_REDIS_PASSWORD":     Option{Type: String, EnvironmentKey: "SOA_REDIS_PASSWORD"},
		"SOA_REDIS_DATABASE":     Option{Type: Int, Default: 0, EnvironmentKey: "SOA_REDIS_DATABASE"},
		"SOA_REDIS_KEY_PREFIX":   Option{Type: String, Default: "soa", EnvironmentKey: "SOA_REDIS_KEY_PREFIX"},
		"SOA_REDIS_IDLE_TIMEOUT": Option{Type: Duration, Default: "240s", EnvironmentKey: "SOA_REDIS_IDLE_TIMEOUT"},
		"SOA_LOG_LEVEL":          Option{Type: String, Default: "info", EnvironmentKey: "SOA_LOG_LEVEL"},
		"SOA_LOG_WRITER":         Option{Type: String, Default: "stdout", EnvironmentKey: "SOA_LOG_WRITER"},
		"SOA_LOG_FILE":           Option{Type: String, EnvironmentKey: "SOA_LOG_FILE"},
		"SOA_KAFKA_BROKERS":      Option{Type: String, EnvironmentKey: "SOA_KAFKA_BROKERS"},
		"SOA_KAFKA_TOPIC":        Option{Type: String, Default: "soa-diagnostics", EnvironmentKey: "SOA_KAFKA_TOPIC"},
	}
}

// LoadSettings fills a Settings from c by walking the tagged fields.
func (c *Config) LoadSettings() (*Settings, error) {
	settings := &Settings{}
	s := structs.New(settings)
	for _, f := range s.Fields() {
		key := f.Tag(SETTING_TAG)
		if !f.IsExported() || key == "" {
			continue
		}
		var value interface{}
		switch f.Kind() {
		case reflect.String:
			value = c.GetString(key)
		case reflect.Int:
			value = c.GetInt(key)
		case reflect.Bool:
			value = c.GetBool(key)
		case reflect.Int64:
			if _, ok := f.Value().(time.Duration); !ok {
				return nil, errors.Annotate(errors.NotSupportedf(errSettingField, f.Name(), key), errLoadSettings)
			}
			value = c.GetDuration(key)
		default:
			return nil, errors.Annotate(errors.NotSupportedf(errSettingField, f.Name(), key), errLoadSettings)
		}
		if err := f.Set(value); err != nil {
			return nil, errors.Annotate(errors.Annotatef(err, errSettingField, f.Name(), key), errLoadSettings)
		}
	}
	if err := settings.Validate(); err != nil {
		return nil, errors.Annotate(err, errLoadSettings)
	}
	return settings, nil
}

func (s *Settings) Validate() error {
	err := validation.ValidateStruct(s,
		validation.Field(&s.Mode, validation.Required, validation.In(ModeAuthoring, ModeLive)),
		validation.Field(&s.StoreProvider, validation.Required, validation.In(StoreMemory, StoreFile, StoreRedis)),
		validation.Field(&s.LogLevel, validation.In("emergency", "alert", "critical", "error", "warning", "notice", "info", "debug")),
		validation.Field(&s.LogWriter, validation.In("stdout", "stderr", "discard")),
	)
	if err != nil {
		return errors.Annotate(err, errValidateSettings)
	}
	if s.StoreProvider == StoreFile && s.StorePath == "" {
		return errors.Annotate(errors.NotValidf("empty SOA_STORE_PATH for file store"), errValidateSettings)
	}
	if s.StoreProvider == StoreRedis && s.RedisHost == "" {
		return errors.Annotate(errors.NotValidf("empty SOA_REDIS_HOST for redis store"), errValidateSettings)
	}
	if s.RedisIdleTimeout < 0 {
		return errors.Annotate(errors.NotValidf("negative SOA_REDIS_IDLE_TIMEOUT %s", s.RedisIdleTimeout), errValidateSettings)
	}
	return nil
}

// Map returns the settings as a map keyed by field name with the redis
// password masked, suitable for logging.
func (s *Settings) Map() map[string]interface{} {
	m := structs.Map(s)
	if s.RedisPassword != "" {
		m["RedisPassword"] = "******"
	}
	return m
}
