package config

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
)

// InitRedis connects to Redis at addr, which may be a plain host:port or a
// redis:// / rediss:// URL.
func InitRedis(addr string) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		opt, err := redis.ParseURL(addr)
		if err != nil {
			return nil, err
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: addr})
	}

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return client, nil
}
