package common

import (
	"emperror.dev/errors"
	"github.com/mediocregopher/radix/v3"
)

var ErrNoRedis = errors.NewPlain("redis is not configured")

// TryLockRedisKey locks the key and if it succeeded sets it to expire after maxDur seconds
// so that if something went wrong it's not locked forever
func TryLockRedisKey(key string, maxDur int) (bool, error) {
	if RedisPool == nil {
		return false, ErrNoRedis
	}

	var resp string
	mn := radix.MaybeNil{Rcv: &resp}
	err := RedisPool.Do(radix.FlatCmd(&mn, "SET", key, "1", "NX", "EX", maxDur))
	if err != nil {
		return false, errors.WithStackIf(err)
	}

	return !mn.Nil, nil
}

func UnlockRedisKey(key string) {
	if RedisPool == nil {
		return
	}

	err := RedisPool.Do(radix.Cmd(nil, "DEL", key))
	LogIgnoreError(err, "failed unlocking redis key", map[string]interface{}{"key": key})
}
