package config

import (
	"os"
	"strings"
)

// EnvSource maps an option like jim.expiry.bans.delay_seconds to JIM_EXPIRY_BANS_DELAY_SECONDS
type EnvSource struct{}

func (e *EnvSource) GetValue(key string) interface{} {
	v := os.Getenv(EnvKey(key))
	if v == "" {
		return nil
	}
	return v
}

func (e *EnvSource) Name() string {
	return "env"
}

func EnvKey(key string) string {
	return strings.ReplaceAll(strings.ToUpper(key), ".", "_")
}
