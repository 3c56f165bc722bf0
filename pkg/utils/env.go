package utils

import (
	"os"
	"strconv"
)

const ENV_PREFIX = "TWEETAPP_"

// EnvString overrides *dst with TWEETAPP_<key> when that variable is set.
func EnvString(dst *string, key string) {
	if v, ok := os.LookupEnv(ENV_PREFIX + key); ok && v != "" {
		*dst = v
	}
}

// EnvInt is EnvString for integers. Values that do not parse are ignored.
func EnvInt(dst *int, key string) {
	v, ok := os.LookupEnv(ENV_PREFIX + key)
	if !ok || v == "" {
		return
	}
	if i, err := strconv.Atoi(v); err == nil {
		*dst = i
	}
}

func EnvBool(dst *bool, key string) {
	v, ok := os.LookupEnv(ENV_PREFIX + key)
	if !ok || v == "" {
		return
	}
	if b, err := strconv.ParseBool(v); err == nil {
		*dst = b
	}
}
