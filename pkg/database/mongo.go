package database

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"medidesk-go/pkg/log"
)

var (
	MongoClient *mongo.Client
	MongoDB     *mongo.Database
)

// InitMongo 连接 MongoDB 并选定数据库，集合 chats/appointments 由仓储层按需使用。
func InitMongo(uri, database string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		log.Fatal("failed to connect mongodb", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		log.Fatal("failed to ping mongodb", err)
	}
	MongoClient = client
	MongoDB = client.Database(database)

	log.Infof("MongoDB connected successfully, database=%s", database)
}

// CloseMongo 断开 MongoDB 连接。
func CloseMongo(ctx context.Context) {
	if MongoClient == nil {
		return
	}
	if err := MongoClient.Disconnect(ctx); err != nil {
		log.Error("failed to disconnect mongodb", err)
	}
}
