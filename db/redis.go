// db/redis.go
package db

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/controlcoreio/control-core-012025-sub001/config"
	logger "github.com/controlcoreio/control-core-012025-sub001/logging"
	"github.com/controlcoreio/control-core-012025-sub001/model"
)

var RedisClient *redis.Client

// InitRedis opens the shared client and pings it.
func InitRedis(cfg config.RedisConfiguration) error {
	RedisClient = redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := RedisClient.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Successfully connected to Redis", zap.String("addr", cfg.Addr))
	return nil
}

func CloseRedis() {
	if RedisClient != nil {
		if err := RedisClient.Close(); err != nil {
			logger.Error("Error closing Redis connection", zap.Error(err))
		}
	}
}

// BagStore keeps mapped attribute bags in Redis, encrypted with AES-GCM,
// so engine replicas can share upstream fetches.
type BagStore struct {
	client *redis.Client
	gcm    cipher.AEAD
	prefix string
	now    func() time.Time
}

// NewBagStore returns a shared cache tier over client. Bags are sealed
// with AES-GCM under encryptionKey before they are written.
func NewBagStore(client *redis.Client, encryptionKey []byte, prefix string) (*BagStore, error) {
	if len(encryptionKey) != 32 {
		return nil, fmt.Errorf("invalid encryption key length: must be 32 bytes")
	}
	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if prefix == "" {
		prefix = "pip"
	}
	return &BagStore{client: client, gcm: gcm, prefix: prefix, now: time.Now}, nil
}

func (s *BagStore) key(connectionID, subject string) string {
	return fmt.Sprintf("%s:bag:%s:%s", s.prefix, connectionID, subject)
}

func (s *BagStore) encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return s.gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func (s *BagStore) decrypt(ciphertext []byte) ([]byte, error) {
	nonceSize := s.gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	return s.gcm.Open(nil, nonce, ciphertext, nil)
}

// Save stores bag until its expiry. Expired bags are not written.
func (s *BagStore) Save(ctx context.Context, connectionID, subject string, bag *model.CachedBag) error {
	ttl := bag.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	bagJSON, err := json.Marshal(bag)
	if err != nil {
		return fmt.Errorf("failed to marshal attribute bag: %w", err)
	}
	encrypted, err := s.encrypt(bagJSON)
	if err != nil {
		return fmt.Errorf("failed to encrypt attribute bag: %w", err)
	}
	key := s.key(connectionID, subject)
	if err := s.client.Set(ctx, key, base64.StdEncoding.EncodeToString(encrypted), ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache attribute bag: %w", err)
	}
	logger.Debug("Attribute bag cached", zap.String("connectionID", connectionID), zap.Duration("ttl", ttl))
	return nil
}

// Load returns nil, nil when nothing is stored.
func (s *BagStore) Load(ctx context.Context, connectionID, subject string) (*model.CachedBag, error) {
	encoded, err := s.client.Get(ctx, s.key(connectionID, subject)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached attribute bag: %w", err)
	}
	encrypted, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode cached attribute bag: %w", err)
	}
	bagJSON, err := s.decrypt(encrypted)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt cached attribute bag: %w", err)
	}
	var bag model.CachedBag
	if err := json.Unmarshal(bagJSON, &bag); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached attribute bag: %w", err)
	}
	return &bag, nil
}

func (s *BagStore) Delete(ctx context.Context, connectionID, subject string) error {
	if err := s.client.Del(ctx, s.key(connectionID, subject)).Err(); err != nil {
		return fmt.Errorf("failed to delete cached attribute bag: %w", err)
	}
	return nil
}

// DeleteConnection removes every bag of a connection.
func (s *BagStore) DeleteConnection(ctx context.Context, connectionID string) error {
	pattern := fmt.Sprintf("%s:bag:%s:*", s.prefix, escapeGlob(connectionID))
	var keys []string
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cached attribute bags: %w", err)
	}
	for start := 0; start < len(keys); start += 100 {
		end := start + 100
		if end > len(keys) {
			end = len(keys)
		}
		if err := s.client.Del(ctx, keys[start:end]...).Err(); err != nil {
			return fmt.Errorf("failed to delete cached attribute bags: %w", err)
		}
	}
	logger.Debug("Shared cache entries deleted", zap.String("connectionID", connectionID), zap.Int("keys", len(keys)))
	return nil
}

var globReplacer = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string {
	return globReplacer.Replace(s)
}

// RateLimit is a sliding-window limiter over a sorted set.
func RateLimit(ctx context.Context, key string, limit int, per time.Duration) (bool, error) {
	if RedisClient == nil {
		return false, fmt.Errorf("redis client is not initialized")
	}
	pipe := RedisClient.Pipeline()
	now := time.Now().UnixNano()
	key = fmt.Sprintf("ratelimit:%s", key)

	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", now-(per.Nanoseconds())))
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now), Member: now})
	pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, per)

	cmds, err := pipe.Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to execute rate limit commands: %w", err)
	}

	count := cmds[2].(*redis.IntCmd).Val()
	allowed := count <= int64(limit)
	logger.Debug("Rate limit check",
		zap.String("key", key),
		zap.Int64("count", count),
		zap.Int("limit", limit),
		zap.Bool("allowed", allowed))
	return allowed, nil
}
