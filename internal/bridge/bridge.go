// Package bridge relays notification payloads between service instances over
// Redis pub/sub, one channel per recipient. A single in-memory hub cannot see
// connections held by another instance; with the bridge enabled every ingest
// is published to Redis and every instance delivers to its own local
// connections, so dispatch on any instance reaches all of a recipient's
// connections fleet-wide.
package bridge

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/divyanshmehta355/aurahub-notify/internal/hub"
	"github.com/divyanshmehta355/aurahub-notify/internal/logger"
	"github.com/divyanshmehta355/aurahub-notify/internal/metrics"
)

const channelPrefix = "notify:"

// ChannelFor returns the pub/sub channel for a recipient.
func ChannelFor(recipientID string) string {
	return channelPrefix + recipientID
}

// RecipientFrom extracts the recipient ID from a channel name. Returns ""
// for channels outside the notify namespace.
func RecipientFrom(channel string) string {
	if !strings.HasPrefix(channel, channelPrefix) {
		return ""
	}
	return strings.TrimPrefix(channel, channelPrefix)
}

// Bridge publishes ingested notifications to Redis and delivers subscribed
// ones to the local hub.
type Bridge struct {
	rdb *redis.Client
	hub *hub.Hub

	metrics *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New connects to Redis and returns a bridge for the given hub.
func New(addr, password string, h *hub.Hub) (*Bridge, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		MaxRetries:   3,
		PoolSize:     10,
		MinIdleConns: 2,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	bctx, bcancel := context.WithCancel(context.Background())
	b := &Bridge{
		rdb:     rdb,
		hub:     h,
		metrics: metrics.Get(),
		ctx:     bctx,
		cancel:  bcancel,
	}

	logger.Log.Info("Redis bridge connected", zap.String("address", addr))
	return b, nil
}

// Start begins delivering bridged notifications to the local hub.
func (b *Bridge) Start() {
	pubsub := b.rdb.PSubscribe(b.ctx, channelPrefix+"*")

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-b.ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				recipientID := RecipientFrom(msg.Channel)
				if recipientID == "" {
					continue
				}
				b.metrics.BridgeDeliveriesTotal.Inc()
				b.hub.Dispatch(recipientID, []byte(msg.Payload))
			}
		}
	}()

	logger.Log.Info("Redis bridge subscriber started")
}

// Push publishes the payload for fleet-wide delivery. The local hub receives
// it back through the subscription like every other instance, so delivery
// count is unknown here and reported as zero.
func (b *Bridge) Push(ctx context.Context, recipientID string, payload []byte) (int, error) {
	if err := b.rdb.Publish(ctx, ChannelFor(recipientID), payload).Err(); err != nil {
		logger.Log.Error("bridge publish failed",
			logger.WithRecipient(recipientID),
			zap.Error(err),
		)
		return 0, err
	}
	b.metrics.BridgePublishesTotal.Inc()
	return 0, nil
}

// Close stops the subscriber and releases the Redis connection.
func (b *Bridge) Close() error {
	b.cancel()
	b.wg.Wait()
	return b.rdb.Close()
}
