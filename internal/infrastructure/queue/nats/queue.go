package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/workflow-dashboard/internal/core/domain"
	"github.com/kirillkom/workflow-dashboard/internal/infrastructure/resilience"
)

const consumerGroup = "workflow-log-writers"

// Bus publishes file status events on one subject and lets workers consume
// them as a queue group.
type Bus struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
	handle   time.Duration
}

func New(url, subject string) (*Bus, error) {
	return NewWithOptions(url, subject, Options{})
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	HandlerTimeout       time.Duration
	ResilienceExecutor   *resilience.Executor
}

func NewWithOptions(url, subject string, options Options) (*Bus, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	handlerTimeout := options.HandlerTimeout
	if handlerTimeout <= 0 {
		handlerTimeout = 15 * time.Second
	}

	conn, err := nats.Connect(
		url,
		nats.Name("workflow-dashboard"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Bus{
		conn:     conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
		handle:   handlerTimeout,
	}, nil
}

func (b *Bus) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
}

func (b *Bus) PublishFileStatus(ctx context.Context, event domain.FileStatusEvent) error {
	data, err := encodeEvent(event)
	if err != nil {
		return err
	}
	call := func(_ context.Context) error {
		if err := b.conn.Publish(b.subject, data); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if b.executor != nil {
		err = b.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}

// SubscribeFileStatus blocks until ctx is done, then drains the subscription
// so in-flight events finish before returning.
func (b *Bus) SubscribeFileStatus(ctx context.Context, handler func(context.Context, domain.FileStatusEvent) error) error {
	sub, err := b.conn.QueueSubscribe(b.subject, consumerGroup, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		event, err := decodeEvent(msg.Data)
		if err != nil {
			slog.Warn("file_status_event_dropped", "subject", msg.Subject, "error", err)
			return
		}

		handlerCtx, cancel := context.WithTimeout(ctx, b.handle)
		defer cancel()
		if err := handler(handlerCtx, event); err != nil {
			slog.Error("file_status_handler_failed", "file_id", event.FileID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := b.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := b.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func encodeEvent(event domain.FileStatusEvent) ([]byte, error) {
	if event.FileID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "encode file status event", errors.New("file id is required"))
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal file status event: %w", err)
	}
	return data, nil
}

func decodeEvent(data []byte) (domain.FileStatusEvent, error) {
	var event domain.FileStatusEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return domain.FileStatusEvent{}, fmt.Errorf("decode file status event: %w", err)
	}
	if event.FileID == "" {
		return domain.FileStatusEvent{}, errors.New("decode file status event: missing file id")
	}
	if !event.Status.Terminal() {
		return domain.FileStatusEvent{}, fmt.Errorf("decode file status event: unexpected status %q", event.Status)
	}
	return event, nil
}
