package storage

import (
	"context"

	"github.com/redis/go-redis/v9"

	"mchat/tools/errs"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func NewRedisClient(ctx context.Context, c RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: c.Addr, Password: c.Password, DB: c.DB})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, errs.WrapMsg(err, "redis ping")
	}
	return rdb, nil
}
