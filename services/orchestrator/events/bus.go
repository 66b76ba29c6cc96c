// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

// Config selects the message bus.
type Config struct {
	// Backend is "none", "gochannel" or "redis". Default: "none"
	Backend string `yaml:"backend" mapstructure:"backend"`

	// Topic is the stream turns are published on. Default: DefaultTopic
	Topic string `yaml:"topic" mapstructure:"topic"`

	RedisAddr     string `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string `yaml:"redis_password" mapstructure:"redis_password"`
	RedisDB       int    `yaml:"redis_db" mapstructure:"redis_db"`

	// ConsumerGroup names the Redis consumer group of the audit log.
	// Default: "debate-audit"
	ConsumerGroup string `yaml:"consumer_group" mapstructure:"consumer_group"`
}

// Enabled reports whether a bus is configured.
func (c Config) Enabled() bool {
	b := strings.ToLower(strings.TrimSpace(c.Backend))
	return b != "" && b != "none"
}

// Bus is an open publisher and subscriber pair.
type Bus struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
	Topic      string

	closers []func() error
}

// Open connects the configured bus.
//
// # Inputs
//
//   - ctx: Bounds the Redis connection check.
//   - cfg: Bus selection. Callers check cfg.Enabled first.
//   - logger: Receives watermill log lines.
//
// # Outputs
//
//   - *Bus: Caller must Close it.
//   - error: Non-nil for an unknown backend or a failed connection.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Bus, error) {
	wmLogger := watermill.NewSlogLogger(logger)
	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "gochannel":
		ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, wmLogger)
		return &Bus{Publisher: ch, Subscriber: ch, Topic: topic, closers: []func() error{ch.Close}}, nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect to redis %s: %w", cfg.RedisAddr, err)
		}
		group := cfg.ConsumerGroup
		if group == "" {
			group = "debate-audit"
		}
		marshaller := redisstream.DefaultMarshallerUnmarshaller{}

		pub, err := redisstream.NewPublisher(redisstream.PublisherConfig{
			Client:     client,
			Marshaller: marshaller,
		}, wmLogger)
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("create redis stream publisher: %w", err)
		}
		sub, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
			Client:        client,
			Unmarshaller:  marshaller,
			ConsumerGroup: group,
		}, wmLogger)
		if err != nil {
			_ = pub.Close()
			_ = client.Close()
			return nil, fmt.Errorf("create redis stream subscriber: %w", err)
		}
		return &Bus{
			Publisher:  pub,
			Subscriber: sub,
			Topic:      topic,
			closers:    []func() error{sub.Close, pub.Close, client.Close},
		}, nil

	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
	}
}

// Close closes the subscriber, the publisher and the connection.
func (b *Bus) Close() error {
	var errs []error
	for _, c := range b.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}
