// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/surety/utils/units"
)

func TestDefaultConfigValid(t *testing.T) {
	require := require.New(t)

	cfg := DefaultConfig()
	require.NoError(cfg.Validate())
	require.Equal(units.Ethers(10), cfg.MinAirlineFunding.Int())
	require.Equal(units.Ethers(1), cfg.InsuranceCap.Int())
	require.True(cfg.IsPayoutStatus(20))
	require.False(cfg.IsPayoutStatus(30))
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{
			name:   "defaults",
			modify: func(*Config) {},
		},
		{
			name:    "zero funding",
			modify:  func(c *Config) { c.MinAirlineFunding = units.Amount{} },
			wantErr: ErrInvalidFunding,
		},
		{
			name:    "zero threshold",
			modify:  func(c *Config) { c.ConsensusThreshold = 0 },
			wantErr: ErrInvalidThreshold,
		},
		{
			name:    "zero payout denominator",
			modify:  func(c *Config) { c.PayoutDenominator = 0 },
			wantErr: ErrInvalidInsurance,
		},
		{
			name:    "on time payout",
			modify:  func(c *Config) { c.PayoutStatuses = []int{10} },
			wantErr: ErrInvalidInsurance,
		},
		{
			name:    "odd payout status",
			modify:  func(c *Config) { c.PayoutStatuses = []int{25} },
			wantErr: ErrInvalidInsurance,
		},
		{
			name:   "all late statuses",
			modify: func(c *Config) { c.PayoutStatuses = []int{20, 30, 40, 50} },
		},
		{
			name:    "index space too large",
			modify:  func(c *Config) { c.OracleIndexSpace = 300 },
			wantErr: ErrInvalidOracle,
		},
		{
			name:    "zero quorum",
			modify:  func(c *Config) { c.ResponseQuorum = 0 },
			wantErr: ErrInvalidOracle,
		},
		{
			name:    "negative ttl",
			modify:  func(c *Config) { c.RequestTTL = -time.Second },
			wantErr: ErrInvalidOracle,
		},
		{
			name:    "no port",
			modify:  func(c *Config) { c.Server.HTTPPort = 0 },
			wantErr: ErrInvalidServer,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			require.ErrorIs(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestParseConfig(t *testing.T) {
	require := require.New(t)

	cfg, err := ParseConfig(nil)
	require.NoError(err)
	require.Equal(DefaultConfig(), cfg)

	cfg, err = ParseConfig([]byte(`{
		"minAirlineFunding": "20 ether",
		"insuranceCap": "500000000gwei",
		"requestTTL": 60000000000,
		"server": {"httpPort": 8080}
	}`))
	require.NoError(err)
	require.Equal(units.Ethers(20), cfg.MinAirlineFunding.Int())
	require.Equal(units.Gwei(500_000_000), cfg.InsuranceCap.Int())
	require.Equal(time.Minute, cfg.RequestTTL)
	require.Equal(uint16(8080), cfg.Server.HTTPPort)
	require.Equal(5, cfg.ConsensusThreshold)

	_, err = ParseConfig([]byte(`{"responseQuorum": 0}`))
	require.ErrorIs(err, ErrInvalidOracle)

	_, err = ParseConfig([]byte(`{"insuranceCap": "a lot"}`))
	require.ErrorIs(err, units.ErrInvalidAmount)
}
