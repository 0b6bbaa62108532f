// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package responder

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/luxfi/surety/flight"
)

const (
	URIKey         = "uri"
	OraclesKey     = "oracles"
	SeedKey        = "seed"
	StatusKey      = "status"
	IntervalKey    = "interval"
	ConcurrencyKey = "concurrency"
	CacheSizeKey   = "cache-size"

	// RandomStatus picks a random terminal status per request.
	RandomStatus = -1
)

func AddFlags(flags *pflag.FlagSet) {
	flags.String(URIKey, "http://127.0.0.1:3000/rpc", "JSON-RPC endpoint of the engine")
	flags.Int(OraclesKey, 20, "Number of oracles to register")
	flags.String(SeedKey, "responder", "Seed the oracle identities are derived from")
	flags.Int(StatusKey, RandomStatus, "Status code to report; -1 reports a random status")
	flags.Duration(IntervalKey, time.Second, "How often to poll for open requests")
	flags.Int(ConcurrencyKey, 8, "Maximum number of responses in flight")
	flags.Int(CacheSizeKey, 1024, "Number of request answers to remember")
}

type Config struct {
	URI         string
	Oracles     int
	Seed        string
	Status      int
	Interval    time.Duration
	Concurrency int
	CacheSize   int
}

func ParseFlags(flags *pflag.FlagSet, args []string) (*Config, error) {
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	uri, err := flags.GetString(URIKey)
	if err != nil {
		return nil, err
	}
	oracles, err := flags.GetInt(OraclesKey)
	if err != nil {
		return nil, err
	}
	seed, err := flags.GetString(SeedKey)
	if err != nil {
		return nil, err
	}
	status, err := flags.GetInt(StatusKey)
	if err != nil {
		return nil, err
	}
	interval, err := flags.GetDuration(IntervalKey)
	if err != nil {
		return nil, err
	}
	concurrency, err := flags.GetInt(ConcurrencyKey)
	if err != nil {
		return nil, err
	}
	cacheSize, err := flags.GetInt(CacheSizeKey)
	if err != nil {
		return nil, err
	}

	c := &Config{
		URI:         uri,
		Oracles:     oracles,
		Seed:        seed,
		Status:      status,
		Interval:    interval,
		Concurrency: concurrency,
		CacheSize:   cacheSize,
	}
	return c, c.Verify()
}

func (c *Config) Verify() error {
	switch {
	case c.Oracles < 1:
		return fmt.Errorf("%s must be positive", OraclesKey)
	case c.Status != RandomStatus && (c.Status < 0 || c.Status > 255 || !flight.Status(c.Status).Terminal()):
		return fmt.Errorf("%s %d is not a terminal status", StatusKey, c.Status)
	case c.Interval <= 0:
		return fmt.Errorf("%s must be positive", IntervalKey)
	case c.Concurrency < 1:
		return fmt.Errorf("%s must be positive", ConcurrencyKey)
	case c.CacheSize < 1:
		return fmt.Errorf("%s must be positive", CacheSizeKey)
	default:
		return nil
	}
}
