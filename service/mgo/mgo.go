package mgo

import (
	"context"
	"sync"
	"time"

	"FreightLink/tools/errs"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Config represents the MongoDB configuration.
type Config struct {
	URI         string
	Database    string
	MaxPoolSize int
}

type MongoManager struct {
	client *mongo.Client
	db     *mongo.Database
}

var (
	mongoOnce sync.Once
	mongoMgr  *MongoManager
)

// Init 初始化 Mongo 管理器（单例）
func Init(ctx context.Context, cfg Config) error {
	var initErr error
	mongoOnce.Do(func() {
		if cfg.URI == "" {
			initErr = errs.New("mongo uri is required")
			return
		}
		opts := options.Client().ApplyURI(cfg.URI)
		if cfg.MaxPoolSize > 0 {
			opts.SetMaxPoolSize(uint64(cfg.MaxPoolSize))
		}

		cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		cli, err := mongo.Connect(cctx, opts)
		if err != nil {
			initErr = errs.WrapMsg(err, "mongo connect", "uri", cfg.URI)
			return
		}
		if err := cli.Ping(cctx, readpref.Primary()); err != nil {
			initErr = errs.WrapMsg(err, "mongo ping", "uri", cfg.URI)
			return
		}
		mongoMgr = &MongoManager{client: cli, db: cli.Database(cfg.Database)}
	})
	return initErr
}

// GetDB 获取数据库句柄
func GetDB() *mongo.Database {
	if mongoMgr == nil {
		panic("mongo not initialized, call mgo.Init first")
	}
	return mongoMgr.db
}

// Close 关闭连接
func Close(ctx context.Context) error {
	if mongoMgr != nil && mongoMgr.client != nil {
		return mongoMgr.client.Disconnect(ctx)
	}
	return nil
}
