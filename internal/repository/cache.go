package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/models"
)

const (
	bookKeyPrefix   = "checkout:book:"
	orderKeyPrefix  = "checkout:order:"
	defaultCacheTTL = 5 * time.Minute
)

// NewRedisClient builds a client from configuration.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// RedisBookCache implements BookCache using Redis.
type RedisBookCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

func NewRedisBookCache(client *redis.Client, ttl time.Duration) *RedisBookCache {
	if ttl == 0 {
		ttl = defaultCacheTTL
	}
	return &RedisBookCache{
		client: client,
		ttl:    ttl,
		logger: logging.NewLogger("book-cache"),
	}
}

func bookKey(id int64) string {
	return bookKeyPrefix + strconv.FormatInt(id, 10)
}

func (c *RedisBookCache) Get(ctx context.Context, id int64) (*models.Book, error) {
	data, err := c.client.Get(ctx, bookKey(id)).Bytes()
	if err == redis.Nil {
		c.logger.Debug("Cache miss", logging.Fields{"book_id": id})
		return nil, nil
	}
	if err != nil {
		c.logger.Error("Cache get error", logging.Fields{
			"book_id": id,
			"error":   err.Error(),
		})
		return nil, err
	}

	var book models.Book
	if err := json.Unmarshal(data, &book); err != nil {
		return nil, err
	}
	return &book, nil
}

func (c *RedisBookCache) Set(ctx context.Context, book *models.Book) error {
	data, err := json.Marshal(book)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, bookKey(book.ID), data, c.ttl).Err(); err != nil {
		c.logger.Error("Cache set error", logging.Fields{
			"book_id": book.ID,
			"error":   err.Error(),
		})
		return err
	}
	return nil
}

func (c *RedisBookCache) Delete(ctx context.Context, id int64) error {
	if err := c.client.Del(ctx, bookKey(id)).Err(); err != nil {
		c.logger.Error("Cache delete error", logging.Fields{
			"book_id": id,
			"error":   err.Error(),
		})
		return err
	}
	c.logger.Debug("Book evicted from cache", logging.Fields{"book_id": id})
	return nil
}

// RedisOrderCache implements OrderCache using Redis.
type RedisOrderCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

func NewRedisOrderCache(client *redis.Client, ttl time.Duration) *RedisOrderCache {
	if ttl == 0 {
		ttl = defaultCacheTTL
	}
	return &RedisOrderCache{
		client: client,
		ttl:    ttl,
		logger: logging.NewLogger("order-cache"),
	}
}

func (c *RedisOrderCache) Get(ctx context.Context, id string) (*models.Order, error) {
	data, err := c.client.Get(ctx, orderKeyPrefix+id).Bytes()
	if err == redis.Nil {
		c.logger.Debug("Cache miss", logging.Fields{"order_id": id})
		return nil, nil
	}
	if err != nil {
		c.logger.Error("Cache get error", logging.Fields{
			"order_id": id,
			"error":    err.Error(),
		})
		return nil, err
	}

	var order models.Order
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, err
	}
	c.logger.Debug("Cache hit", logging.Fields{"order_id": id})
	return &order, nil
}

// Set stores the order. Orders that can still change are not cached.
func (c *RedisOrderCache) Set(ctx context.Context, order *models.Order) error {
	if !order.Status.IsTerminal() {
		return nil
	}
	data, err := json.Marshal(order)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, orderKeyPrefix+order.ID, data, c.ttl).Err(); err != nil {
		c.logger.Error("Cache set error", logging.Fields{
			"order_id": order.ID,
			"error":    err.Error(),
		})
		return err
	}
	c.logger.Debug("Order cached", logging.Fields{
		"order_id": order.ID,
		"ttl":      c.ttl.String(),
	})
	return nil
}

func (c *RedisOrderCache) Delete(ctx context.Context, id string) error {
	return c.client.Del(ctx, orderKeyPrefix+id).Err()
}

// CachedBookCatalog is a read-through cache in front of a BookCatalog.
// Cache failures fall back to the underlying catalog.
type CachedBookCatalog struct {
	next   BookCatalog
	cache  BookCache
	logger *logging.Logger
}

func NewCachedBookCatalog(next BookCatalog, cache BookCache) *CachedBookCatalog {
	return &CachedBookCatalog{
		next:   next,
		cache:  cache,
		logger: logging.NewLogger("book-catalog"),
	}
}

func (c *CachedBookCatalog) FindBookByID(ctx context.Context, id int64) (*models.Book, error) {
	if book, err := c.cache.Get(ctx, id); err == nil && book != nil {
		return book, nil
	}

	book, err := c.next.FindBookByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Set(ctx, book); err != nil {
		c.logger.Warn("Failed to cache book", logging.Fields{
			"book_id": id,
			"error":   err.Error(),
		})
	}
	return book, nil
}
