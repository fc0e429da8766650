package config

import (
	"strings"

	"github.com/mediocregopher/radix/v3"
	"github.com/sirupsen/logrus"
)

const redisConfigHash = "jim_config"

// RedisConfigStore reads options from the jim_config hash, keys are stored without the "jim." prefix
type RedisConfigStore struct {
	Pool *radix.Pool
}

func (rs *RedisConfigStore) GetValue(key string) interface{} {
	var v string
	err := rs.Pool.Do(radix.Cmd(&v, "HGET", redisConfigHash, strings.TrimPrefix(key, "jim.")))
	if err != nil {
		logrus.WithError(err).WithField("key", key).Error("[redis_config_source] failed retrieving value")
		return nil
	}

	if v == "" {
		return nil
	}

	return v
}

func (rs *RedisConfigStore) SaveValue(key, value string) error {
	return rs.Pool.Do(radix.Cmd(nil, "HSET", redisConfigHash, strings.TrimPrefix(key, "jim."), value))
}

func (rs *RedisConfigStore) Name() string {
	return "redis"
}
