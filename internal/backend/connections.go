package backend

import (
	"context"
	"fmt"
	"net/url"

	"CatalogBot/internal/config"
	"CatalogBot/internal/database"
	"CatalogBot/internal/storage"

	goredis "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type MongoConnection struct {
	URI      string
	Host     string
	Port     int
	Username string
	Password string
	Database string
}

func NewMongoConnection(cfg config.Mongo) MongoConnection {
	return MongoConnection(cfg)
}

// ConnectionURI prefers an explicit URI and otherwise builds
// mongodb://[user:pass@]host:port, defaulting the host to localhost.
func (c MongoConnection) ConnectionURI() string {
	if c.URI != "" {
		return c.URI
	}

	uri := "mongodb://"
	if c.Username != "" && c.Password != "" {
		uri += url.UserPassword(c.Username, c.Password).String() + "@"
	}
	host := c.Host
	if host == "" {
		host = "localhost"
	}
	return uri + fmt.Sprintf("%s:%d", host, c.Port)
}

func (c MongoConnection) Connect(ctx context.Context) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(c.ConnectionURI()))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", storage.Unavailable(err))
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", storage.Unavailable(err))
	}
	return client, nil
}

type RedisConnection struct {
	Addr     string
	Password string
	DB       int
}

func NewRedisConnection(cfg config.Redis) RedisConnection {
	return RedisConnection(cfg)
}

func (c RedisConnection) Connect(ctx context.Context) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", storage.Unavailable(err))
	}
	return client, nil
}

func NewMySQLConnection(cfg config.MySQL) database.Connection {
	return database.Connection(cfg)
}
