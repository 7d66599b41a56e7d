// Package mongo 证据存储使用 GridFS 时的连接
package mongo

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/MehulDev0228/aurin-platform-sub001/config"
)

var (
	client *mongo.Client
	once   sync.Once
	err    error
)

func Init() error {
	once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		client, err = mongo.Connect(ctx, options.Client().
			ApplyURI(config.Cfg.MongoURI).
			SetServerSelectionTimeout(5*time.Second))
		if err != nil {
			return
		}
		err = client.Ping(ctx, readpref.Primary())
	})
	return err
}

// Database 证据所在的库
func Database() *mongo.Database {
	if client == nil {
		panic("Mongo client not init")
	}
	return client.Database(config.Cfg.MongoDatabase)
}

func Close(ctx context.Context) error {
	if client == nil {
		return nil
	}
	return client.Disconnect(ctx)
}
