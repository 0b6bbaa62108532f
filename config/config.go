// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/luxfi/surety/utils/units"
)

var (
	ErrInvalidFunding   = errors.New("invalid airline funding configuration")
	ErrInvalidThreshold = errors.New("invalid consensus threshold configuration")
	ErrInvalidInsurance = errors.New("invalid insurance configuration")
	ErrInvalidOracle    = errors.New("invalid oracle configuration")
	ErrInvalidServer    = errors.New("invalid server configuration")
)

// Config holds the engine configuration.
type Config struct {
	// Airline admission
	MinAirlineFunding  units.Amount `json:"minAirlineFunding"`  // Default: 10 ether
	ConsensusThreshold int          `json:"consensusThreshold"` // Admitted airlines before voting starts

	// Insurance
	InsuranceCap      units.Amount `json:"insuranceCap"`
	PayoutNumerator   uint64       `json:"payoutNumerator"`
	PayoutDenominator uint64       `json:"payoutDenominator"`
	PayoutStatuses    []int        `json:"payoutStatuses"`

	// Oracles
	OracleRegistrationFee       units.Amount  `json:"oracleRegistrationFee"`
	OracleIndexSpace            int           `json:"oracleIndexSpace"`
	OracleIndexCount            int           `json:"oracleIndexCount"`
	ResponseQuorum              int           `json:"responseQuorum"`
	RequestTTL                  time.Duration `json:"requestTTL"` // 0 disables expiry
	RejectUnknownFlightRequests bool          `json:"rejectUnknownFlightRequests"`
	IndexSeed                   string        `json:"indexSeed"`

	// Notifications buffered before new ones are dropped
	NotificationBuffer int `json:"notificationBuffer"`

	// Storage directory; empty keeps state in memory
	DataDir string `json:"dataDir"`

	Server ServerConfig `json:"server"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	HTTPHost          string        `json:"httpHost"`
	HTTPPort          uint16        `json:"httpPort"`
	AllowedOrigins    []string      `json:"allowedOrigins"`
	ReadHeaderTimeout time.Duration `json:"readHeaderTimeout"`
	ShutdownTimeout   time.Duration `json:"shutdownTimeout"`
}

// DefaultConfig returns a config with default values.
func DefaultConfig() Config {
	return Config{
		MinAirlineFunding:           units.NewAmount(units.Ethers(10)),
		ConsensusThreshold:          5,
		InsuranceCap:                units.NewAmount(units.Ethers(1)),
		PayoutNumerator:             3,
		PayoutDenominator:           2,
		PayoutStatuses:              []int{20},
		OracleRegistrationFee:       units.NewAmount(units.Ethers(1)),
		OracleIndexSpace:            10,
		OracleIndexCount:            3,
		ResponseQuorum:              3,
		RejectUnknownFlightRequests: true,
		IndexSeed:                   "surety",
		NotificationBuffer:          256,
		Server: ServerConfig{
			HTTPHost:          "127.0.0.1",
			HTTPPort:          3000,
			AllowedOrigins:    []string{"*"},
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.MinAirlineFunding.Int().IsZero() {
		return fmt.Errorf("%w: minimum funding must be positive", ErrInvalidFunding)
	}
	if c.ConsensusThreshold < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidThreshold, c.ConsensusThreshold)
	}

	if c.InsuranceCap.Int().IsZero() {
		return fmt.Errorf("%w: cap must be positive", ErrInvalidInsurance)
	}
	if c.PayoutNumerator == 0 || c.PayoutDenominator == 0 {
		return fmt.Errorf("%w: payout ratio %d/%d", ErrInvalidInsurance, c.PayoutNumerator, c.PayoutDenominator)
	}
	for _, status := range c.PayoutStatuses {
		// Unknown and OnTime never pay out
		if status < 20 || status > 50 || status%10 != 0 {
			return fmt.Errorf("%w: payout status %d", ErrInvalidInsurance, status)
		}
	}

	if c.OracleIndexSpace < 1 || c.OracleIndexSpace > 256 {
		return fmt.Errorf("%w: index space %d", ErrInvalidOracle, c.OracleIndexSpace)
	}
	if c.OracleIndexCount < 1 {
		return fmt.Errorf("%w: index count %d", ErrInvalidOracle, c.OracleIndexCount)
	}
	if c.ResponseQuorum < 1 {
		return fmt.Errorf("%w: quorum %d", ErrInvalidOracle, c.ResponseQuorum)
	}
	if c.RequestTTL < 0 {
		return fmt.Errorf("%w: negative request TTL", ErrInvalidOracle)
	}
	if c.NotificationBuffer < 0 {
		c.NotificationBuffer = 0
	}

	if c.Server.HTTPPort == 0 {
		return fmt.Errorf("%w: port must be set", ErrInvalidServer)
	}
	return nil
}

// IsPayoutStatus reports whether policies are credited when a flight
// finalizes with status.
func (c *Config) IsPayoutStatus(status uint8) bool {
	for _, s := range c.PayoutStatuses {
		if s == int(status) {
			return true
		}
	}
	return false
}

// ParseConfig parses configuration from JSON bytes on top of the defaults.
func ParseConfig(data []byte) (Config, error) {
	config := DefaultConfig()
	if len(data) == 0 {
		return config, nil
	}
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, err
	}
	return config, config.Validate()
}
