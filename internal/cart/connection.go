package cart

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoOptions configures the cart store connection.
type MongoOptions struct {
	URI            string
	Database       string
	MaxPoolSize    uint64
	MinPoolSize    uint64
	ConnectTimeout time.Duration
}

func (o MongoOptions) clientOptions() (*options.ClientOptions, error) {
	if o.URI == "" || o.Database == "" {
		return nil, fmt.Errorf("mongodb uri and database are required")
	}
	if o.MinPoolSize > o.MaxPoolSize {
		return nil, fmt.Errorf("mongodb min pool size %d exceeds max %d", o.MinPoolSize, o.MaxPoolSize)
	}
	opts := options.Client().
		ApplyURI(o.URI).
		SetAppName("settlement-service").
		SetMaxPoolSize(o.MaxPoolSize).
		SetMinPoolSize(o.MinPoolSize)
	if o.ConnectTimeout > 0 {
		opts.SetConnectTimeout(o.ConnectTimeout).SetServerSelectionTimeout(o.ConnectTimeout)
	}
	return opts, nil
}

// ConnectMongoDB connects and pings, so a bad URI fails at startup rather than on the first checkout.
func ConnectMongoDB(ctx context.Context, o MongoOptions) (*mongo.Database, error) {
	opts, err := o.clientOptions()
	if err != nil {
		return nil, err
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	return client.Database(o.Database), nil
}
