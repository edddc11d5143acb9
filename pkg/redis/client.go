package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const defaultDialTimeout = 5 * time.Second

// Mode selects the Redis deployment topology.
type Mode string

const (
	ModeSingle   Mode = "single"
	ModeSentinel Mode = "sentinel"
	ModeCluster  Mode = "cluster"
)

// ParseMode maps a config string onto a Mode; unknown values mean single.
func ParseMode(raw string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case ModeSentinel:
		return ModeSentinel
	case ModeCluster:
		return ModeCluster
	default:
		return ModeSingle
	}
}

// Config configures a topology-agnostic Redis connection.
type Config struct {
	Mode         Mode
	Addrs        []string // single: 1 addr, sentinel: sentinel addrs, cluster: seed nodes
	MasterName   string   // sentinel only
	Username     string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func withDefault(d time.Duration) time.Duration {
	if d == 0 {
		return defaultDialTimeout
	}
	return d
}

// NewUniversalClient creates a Redis client that works with single-node,
// Sentinel, or Cluster topologies. go-redis routes internally: MasterName set
// means Sentinel, multiple Addrs means Cluster, a single Addr is standalone.
func NewUniversalClient(ctx context.Context, cfg Config) (goredis.UniversalClient, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("at least one redis address is required")
	}
	if cfg.Mode == ModeSentinel && cfg.MasterName == "" {
		return nil, fmt.Errorf("sentinel mode requires a master name")
	}
	addrs := cfg.Addrs
	if cfg.Mode == ModeSingle && len(addrs) > 1 {
		addrs = addrs[:1]
	}

	opts := &goredis.UniversalOptions{
		Addrs:        addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  withDefault(cfg.DialTimeout),
		ReadTimeout:  withDefault(cfg.ReadTimeout),
		WriteTimeout: withDefault(cfg.WriteTimeout),
	}
	if cfg.Mode == ModeSentinel {
		opts.MasterName = cfg.MasterName
	}

	client := goredis.NewUniversalClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

// NewClientFromURL creates a single-node Redis client from a redis:// URL.
func NewClientFromURL(ctx context.Context, redisURL string) (goredis.UniversalClient, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis url is required")
	}

	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = withDefault(opts.DialTimeout)
	opts.ReadTimeout = withDefault(opts.ReadTimeout)
	opts.WriteTimeout = withDefault(opts.WriteTimeout)

	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}
