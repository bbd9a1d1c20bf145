package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/logging"
)

// CatalogEventType is the type of an event emitted by the catalog service.
type CatalogEventType string

const (
	CatalogEventBookUpdated      CatalogEventType = "book.updated"
	CatalogEventBookPriceChanged CatalogEventType = "book.price_changed"
	CatalogEventBookDeleted      CatalogEventType = "book.deleted"
)

// CatalogEvent is the subset of the catalog envelope the checkout service reads.
type CatalogEvent struct {
	ID        string           `json:"id"`
	Type      CatalogEventType `json:"type"`
	BookID    int64            `json:"book_id"`
	Data      json.RawMessage  `json:"data"`
	Timestamp time.Time        `json:"timestamp"`
}

// BookEvictor drops a book from a cache.
type BookEvictor interface {
	Delete(ctx context.Context, id int64) error
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// CatalogConsumer keeps the book cache coherent with catalog changes so cart
// display and price checks never serve a stale price for long.
type CatalogConsumer struct {
	reader  messageReader
	evictor BookEvictor
	logger  *logging.Logger
	stopCh  chan struct{}
}

func NewCatalogConsumer(cfg config.KafkaConfig, evictor BookEvictor) *CatalogConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.CatalogTopic,
		GroupID:  cfg.ConsumerGroup,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  time.Second,
	})
	return newCatalogConsumer(reader, evictor)
}

func newCatalogConsumer(r messageReader, evictor BookEvictor) *CatalogConsumer {
	return &CatalogConsumer{
		reader:  r,
		evictor: evictor,
		logger:  logging.NewLogger("catalog-consumer"),
		stopCh:  make(chan struct{}),
	}
}

// Start consumes until ctx is cancelled or Stop is called.
func (c *CatalogConsumer) Start(ctx context.Context) error {
	c.logger.Info("Starting catalog consumer")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			c.logger.Info("Catalog consumer stopped")
			return nil
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				select {
				case <-c.stopCh:
					return nil
				default:
				}
				c.logger.Error("Failed to read message", logging.Fields{"error": err.Error()})
				continue
			}

			c.handleMessage(ctx, msg)
		}
	}
}

// Stop stops the consumer and closes the reader.
func (c *CatalogConsumer) Stop() {
	close(c.stopCh)
	if err := c.reader.Close(); err != nil {
		c.logger.Warn("Failed to close catalog reader", logging.Fields{"error": err.Error()})
	}
}

func (c *CatalogConsumer) handleMessage(ctx context.Context, msg kafka.Message) {
	c.logger.Debug("Received message", logging.Fields{
		"topic":     msg.Topic,
		"partition": msg.Partition,
		"offset":    msg.Offset,
	})

	var event CatalogEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.logger.Error("Failed to unmarshal event", logging.Fields{"error": err.Error()})
		return
	}

	switch event.Type {
	case CatalogEventBookUpdated, CatalogEventBookPriceChanged, CatalogEventBookDeleted:
		if err := c.evictor.Delete(ctx, event.BookID); err != nil {
			c.logger.Error("Failed to evict book", logging.Fields{
				"book_id": event.BookID,
				"error":   err.Error(),
			})
			return
		}
		c.logger.Info("Book evicted after catalog change", logging.Fields{
			"book_id":    event.BookID,
			"event_type": event.Type,
		})
	default:
		c.logger.Debug("Ignoring unknown event type", logging.Fields{"type": event.Type})
	}
}
