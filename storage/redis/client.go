package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MehulDev0228/aurin-platform-sub001/config"
	pkgredis "github.com/MehulDev0228/aurin-platform-sub001/pkg/redis"
)

var (
	client redis.UniversalClient
	once   sync.Once
	err    error
)

func Init() error {
	once.Do(func() {
		cfg := config.Cfg

		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:        []string{cfg.RedisAddr},
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			MinIdleConns: 5,
			MaxRetries:   3,
		})

		if cfg.OTelEnabled {
			client.AddHook(pkgredis.NewTracingHook(cfg.ServiceName, Prefix(), cfg.RedisDB))
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		err = client.Ping(ctx).Err()
	})

	return err
}

func Client() redis.UniversalClient {
	if client == nil {
		panic("Redis client not init")
	}
	return client
}

func Close(ctx context.Context) error {
	if client == nil {
		return nil
	}

	return client.Close()
}

// Prefix 业务键前缀
func Prefix() string {
	if p := config.Cfg.RedisPrefix; p != "" {
		return p
	}
	return "aurin"
}
