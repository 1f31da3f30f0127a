package config

import (
	"context"
	"time"

	"github.com/samt42/viper"
)

type ViperHandler struct {
	Viper *viper.Viper
}

func NewViperHandler() Handler {
	return &ViperHandler{
		Viper: viper.New(),
	}
}

func (this *ViperHandler) Initiate(ctx context.Context) error {
	return nil
}

func (this *ViperHandler) SetConfigFile(in string) {
	this.Viper.SetConfigFile(in)
}
func (this *ViperHandler) ConfigFileUsed() string {
	return this.Viper.ConfigFileUsed()
}
func (this *ViperHandler) SetDefault(key string, value interface{}) {
	this.Viper.SetDefault(key, value)
}
func (this *ViperHandler) BindEnv(input ...string) error {
	return this.Viper.BindEnv(input...)
}
func (this *ViperHandler) ReadInConfig() error {
	return this.Viper.ReadInConfig()
}
func (this *ViperHandler) Set(key string, value interface{}) {
	this.Viper.Set(key, value)
}
func (this *ViperHandler) Get(key string) interface{} {
	return this.Viper.Get(key)
}
func (this *ViperHandler) GetString(key string) string {
	return this.Viper.GetString(key)
}
func (this *ViperHandler) GetBool(key string) bool {
	return this.Viper.GetBool(key)
}
func (this *ViperHandler) GetInt(key string) int {
	return this.Viper.GetInt(key)
}
func (this *ViperHandler) GetDuration(key string) time.Duration {
	return this.Viper.GetDuration(key)
}
