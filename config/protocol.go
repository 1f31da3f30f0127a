package config

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/juju/errors"
)

var (
	errInitiate           = "config: initiate '%s' error"
	errRegister           = "config: register '%s' error"
	errUse                = "config: use '%s' error"
	errSetOptions         = "config: set options error"
	errLoadFromEnvFile    = "config: load from env file '%s' error"
	errLoadFromEnv        = "config: load from env error"
	errLoadFromConfigFile = "config: load from config file '%s' error"
)

type Type uint

const (
	Invalid Type = iota
	String
	Bool
	Int
	Duration
)

// Option declares a configuration key: its value type, default and the
// environment variable it is bound to.
type Option struct {
	Type           Type
	Default        interface{}
	EnvironmentKey string
}

func NewConfig() *Config {
	instance := &Config{}
	return instance
}

type Config struct {
	Provider string
	handler  Handler

	options               map[string]Option
	bindedEnvironmentKeys []string
}

// Initiate registers the builtin providers and switches to provider
// (viper when empty).
func (c *Config) Initiate(ctx context.Context, provider ...string) error {
	if c.options == nil {
		c.options = make(map[string]Option)
	}
	err := Register("viper", NewViperHandler)
	if err != nil {
		return errors.Annotatef(err, errInitiate, "viper")
	}
	name := "viper"
	if len(provider) > 0 && provider[0] != "" {
		name = provider[0]
	}
	err = c.Use(ctx, name)
	if err != nil {
		return errors.Annotatef(err, errInitiate, name)
	}
	return nil
}

func (c *Config) GetProvider() string {
	return c.Provider
}

func (c *Config) Use(ctx context.Context, provider string) error {
	handler, err := Use(provider)
	if err != nil {
		return errors.Annotatef(err, errUse, provider)
	}
	c.Provider = provider
	c.handler = handler()
	err = c.handler.Initiate(ctx)
	if err != nil {
		return errors.Annotatef(err, errInitiate, c.Provider)
	}
	return nil
}

func (c *Config) Options() map[string]Option {
	return c.options
}

// SetOptions declares options; the first declaration of a key wins and its
// default is pushed to the provider.
func (c *Config) SetOptions(options map[string]Option) error {
	if c.handler == nil {
		return errors.Annotate(errors.New("config: provider not initiated"), errSetOptions)
	}
	if c.options == nil {
		c.options = make(map[string]Option)
	}
	for key, option := range options {
		if key == "" {
			return errors.Annotate(errors.NotValidf("empty option key"), errSetOptions)
		}
		if _, ok := c.options[key]; ok {
			continue
		}
		c.options[key] = option
		if option.Default != nil {
			c.handler.SetDefault(key, option.Default)
		}
	}
	return nil
}

func (c *Config) BindedEnvironmentKeys() []string {
	return c.bindedEnvironmentKeys
}

// LoadFromEnv binds every declared option to its environment variable.
func (c *Config) LoadFromEnv() error {
	for key, option := range c.options {
		if option.EnvironmentKey == "" {
			continue
		}
		err := c.handler.BindEnv(key, option.EnvironmentKey)
		if err != nil {
			return errors.Annotatef(err, errLoadFromEnv+": [key:'%s', env_key:'%s']", key, option.EnvironmentKey)
		}
		c.bindedEnvironmentKeys = append(c.bindedEnvironmentKeys, option.EnvironmentKey)
	}
	return nil
}

// LoadFromEnvFile loads a dotenv file into the process environment and
// binds the declared options. A missing file is an error.
func (c *Config) LoadFromEnvFile(dotEnvFile string) error {
	if dotEnvFile == "" {
		return nil
	}
	if _, err := os.Stat(dotEnvFile); err != nil {
		return errors.Annotatef(err, errLoadFromEnvFile, dotEnvFile)
	}
	err := godotenv.Load(dotEnvFile)
	if err != nil {
		return errors.Annotatef(err, errLoadFromEnvFile, dotEnvFile)
	}
	err = c.LoadFromEnv()
	if err != nil {
		return errors.Annotatef(err, errLoadFromEnvFile, dotEnvFile)
	}
	return nil
}

func (c *Config) LoadFromConfigFile(configFile string) error {
	c.handler.SetConfigFile(configFile)
	err := c.handler.ReadInConfig()
	if err != nil {
		return errors.Annotatef(err, errLoadFromConfigFile, configFile)
	}
	return nil
}

func (c *Config) ConfigFileUsed() string {
	return c.handler.ConfigFileUsed()
}

func (c *Config) Set(key string, value interface{}) {
	c.handler.Set(key, value)
}

func (c *Config) Get(key string) interface{} {
	return c.handler.Get(key)
}

// GetString returns the value associated with the key as a string.
func (c *Config) GetString(key string) string {
	return c.handler.GetString(key)
}

// GetBool returns the value associated with the key as a boolean.
func (c *Config) GetBool(key string) bool {
	return c.handler.GetBool(key)
}

// GetInt returns the value associated with the key as an integer.
func (c *Config) GetInt(key string) int {
	return c.handler.GetInt(key)
}

// GetDuration returns the value associated with the key as a duration.
func (c *Config) GetDuration(key string) time.Duration {
	return c.handler.GetDuration(key)
}

type configHandler func() Handler

var (
	configHandlers      = make(map[string]configHandler)
	configHandlersMutex sync.RWMutex
)

func Register(name string, configHandler configHandler) error {
	if configHandler == nil {
		return errors.Annotatef(errors.New("config: Register config is nil"), errRegister, name)
	}
	configHandlersMutex.Lock()
	defer configHandlersMutex.Unlock()
	if _, ok := configHandlers[name]; !ok {
		configHandlers[name] = configHandler
	}
	return nil
}

func Use(name string) (configHandler, error) {
	configHandlersMutex.RLock()
	defer configHandlersMutex.RUnlock()
	handler, exist := configHandlers[name]
	if !exist {
		return nil, errors.NotFoundf("config provider %q", name)
	}
	return handler, nil
}

type Handler interface {
	Initiate(ctx context.Context) error
	SetConfigFile(in string)
	ConfigFileUsed() string
	SetDefault(key string, value interface{})
	BindEnv(input ...string) error
	ReadInConfig() error
	Set(key string, value interface{})
	Get(key string) interface{}
	GetString(key string) string
	GetBool(key string) bool
	GetInt(key string) int
	GetDuration(key string) time.Duration
}
