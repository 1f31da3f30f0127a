package store

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/juju/errors"

	"github.com/ltick/tick-soa/config"
	"github.com/ltick/tick-soa/utility"
)

var (
	errRedisInitiate = "store(redis): initiate '%s' error"
	errRedisSave     = "store(redis): save '%s' error"
	errRedisLoad     = "store(redis): load '%s' error"
	errRedisDelete   = "store(redis): delete '%s' error"
	errRedisList     = "store(redis): list error"
)

// RedisHandler stores each record as a JSON string under
// "<prefix>:asset:<path>".
type RedisHandler struct {
	*redis.Pool
	Host        string
	Port        string
	Password    string
	Database    int
	KeyPrefix   string
	MaxIdle     int
	MaxActive   int
	IdleTimeout time.Duration
}

func NewRedisHandler() Handler {
	return &RedisHandler{}
}

func (this *RedisHandler) Initiate(ctx context.Context, settings *config.Settings) error {
	if settings.RedisHost == "" {
		return errors.Annotatef(errors.NotValidf("empty redis host"), errRedisInitiate, "")
	}
	this.Host = settings.RedisHost
	this.Port = settings.RedisPort
	if this.Port == "" {
		this.Port = "6379"
	}
	this.Password = settings.RedisPassword
	this.Database = settings.RedisDatabase
	this.KeyPrefix = settings.RedisKeyPrefix
	if this.MaxIdle == 0 {
		this.MaxIdle = 3
	}
	this.IdleTimeout = settings.RedisIdleTimeout
	if this.IdleTimeout == 0 {
		this.IdleTimeout = 240 * time.Second
	}
	address := this.Host + ":" + this.Port
	this.Pool = &redis.Pool{
		MaxIdle:     this.MaxIdle,
		MaxActive:   this.MaxActive,
		IdleTimeout: this.IdleTimeout,
		Dial: func() (redis.Conn, error) {
			c, err := redis.Dial("tcp", address,
				redis.DialPassword(this.Password),
				redis.DialDatabase(this.Database),
			)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
	}
	c := this.Pool.Get()
	defer c.Close()
	if _, err := c.Do("PING"); err != nil {
		return errors.Annotatef(err, errRedisInitiate, address)
	}
	return nil
}

func (this *RedisHandler) generateKey(path string) string {
	if this.KeyPrefix == "" {
		return "asset:" + path
	}
	return this.KeyPrefix + ":asset:" + path
}

func (this *RedisHandler) Save(ctx context.Context, record Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return errors.Annotatef(err, errRedisSave, record.Path)
	}
	c := this.Pool.Get()
	defer c.Close()
	if _, err := c.Do("SET", this.generateKey(record.Path), data); err != nil {
		return errors.Annotatef(err, errRedisSave, record.Path)
	}
	return nil
}

func (this *RedisHandler) Load(ctx context.Context, path string) (Record, error) {
	c := this.Pool.Get()
	defer c.Close()
	data, err := redis.Bytes(c.Do("GET", this.generateKey(path)))
	if err == redis.ErrNil {
		return Record{}, errors.NotFoundf("asset %q", path)
	}
	if err != nil {
		return Record{}, errors.Annotatef(err, errRedisLoad, path)
	}
	return decodeRecord(data, path)
}

func decodeRecord(data []byte, path string) (Record, error) {
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return Record{}, errors.Annotatef(err, errRedisLoad, path)
	}
	if utility.Checksum(record.Data) != record.Checksum {
		return Record{}, errors.Annotatef(errors.NotValidf("checksum of asset %q", path), errRedisLoad, path)
	}
	return record, nil
}

func (this *RedisHandler) Delete(ctx context.Context, path string) error {
	c := this.Pool.Get()
	defer c.Close()
	if _, err := c.Do("DEL", this.generateKey(path)); err != nil {
		return errors.Annotatef(err, errRedisDelete, path)
	}
	return nil
}

func (this *RedisHandler) List(ctx context.Context) ([]Record, error) {
	c := this.Pool.Get()
	defer c.Close()
	keys, err := redis.Strings(c.Do("KEYS", this.generateKey("*")))
	if err != nil {
		return nil, errors.Annotate(err, errRedisList)
	}
	records := make([]Record, 0, len(keys))
	prefix := this.generateKey("")
	for _, key := range keys {
		path := strings.TrimPrefix(key, prefix)
		data, err := redis.Bytes(c.Do("GET", key))
		if err == redis.ErrNil {
			continue
		}
		if err != nil {
			return nil, errors.Annotate(err, errRedisList)
		}
		record, err := decodeRecord(data, path)
		if err != nil {
			return nil, errors.Annotate(err, errRedisList)
		}
		records = append(records, record)
	}
	sortRecords(records)
	return records, nil
}

func (this *RedisHandler) Close() error {
	if this.Pool == nil {
		return nil
	}
	return this.Pool.Close()
}
