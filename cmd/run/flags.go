// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package run

import (
	"fmt"
	"os"

	"github.com/luxfi/ids"
	"github.com/spf13/pflag"

	"github.com/luxfi/surety/config"
)

const (
	ConfigFileKey       = "config-file"
	DataDirKey          = "data-dir"
	HTTPHostKey         = "http-host"
	HTTPPortKey         = "http-port"
	RequestTTLKey       = "request-ttl"
	BootstrapOwnerKey   = "bootstrap-owner"
	BootstrapAirlineKey = "bootstrap-airline"
	BootstrapNameKey    = "bootstrap-name"
	ProfileDirKey       = "profile-dir"
)

func AddFlags(flags *pflag.FlagSet) {
	defaults := config.DefaultConfig()
	flags.String(ConfigFileKey, "", "JSON config file; flags override its values")
	flags.String(DataDirKey, "", "Directory to persist state in; empty keeps state in memory")
	flags.String(HTTPHostKey, defaults.Server.HTTPHost, "Address of the HTTP API")
	flags.Uint16(HTTPPortKey, defaults.Server.HTTPPort, "Port of the HTTP API")
	flags.Duration(RequestTTLKey, defaults.RequestTTL, "How long status requests stay open; 0 never expires them")
	flags.String(BootstrapOwnerKey, "", "Owner to bootstrap a fresh engine with")
	flags.String(BootstrapAirlineKey, "", "First airline to bootstrap a fresh engine with")
	flags.String(BootstrapNameKey, "First Airline", "Name of the first airline")
	flags.String(ProfileDirKey, "", "Directory to write CPU and heap profiles to; empty disables profiling")
}

type Config struct {
	Engine     config.Config
	ProfileDir string

	// Bootstrap is set when both bootstrap flags were given.
	Bootstrap   bool
	Owner       ids.ShortID
	Airline     ids.ShortID
	AirlineName string
}

func ParseFlags(flags *pflag.FlagSet, args []string) (*Config, error) {
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	configFile, err := flags.GetString(ConfigFileKey)
	if err != nil {
		return nil, err
	}
	var configBytes []byte
	if configFile != "" {
		configBytes, err = os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	engine, err := config.ParseConfig(configBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if flags.Changed(DataDirKey) {
		if engine.DataDir, err = flags.GetString(DataDirKey); err != nil {
			return nil, err
		}
	}
	if flags.Changed(HTTPHostKey) {
		if engine.Server.HTTPHost, err = flags.GetString(HTTPHostKey); err != nil {
			return nil, err
		}
	}
	if flags.Changed(HTTPPortKey) {
		if engine.Server.HTTPPort, err = flags.GetUint16(HTTPPortKey); err != nil {
			return nil, err
		}
	}
	if flags.Changed(RequestTTLKey) {
		if engine.RequestTTL, err = flags.GetDuration(RequestTTLKey); err != nil {
			return nil, err
		}
	}
	if err := engine.Validate(); err != nil {
		return nil, err
	}

	profileDir, err := flags.GetString(ProfileDirKey)
	if err != nil {
		return nil, err
	}

	c := &Config{
		Engine:     engine,
		ProfileDir: profileDir,
	}
	ownerStr, err := flags.GetString(BootstrapOwnerKey)
	if err != nil {
		return nil, err
	}
	airlineStr, err := flags.GetString(BootstrapAirlineKey)
	if err != nil {
		return nil, err
	}
	if ownerStr == "" || airlineStr == "" {
		return c, nil
	}

	if c.Owner, err = ids.ShortFromString(ownerStr); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", BootstrapOwnerKey, err)
	}
	if c.Airline, err = ids.ShortFromString(airlineStr); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", BootstrapAirlineKey, err)
	}
	if c.AirlineName, err = flags.GetString(BootstrapNameKey); err != nil {
		return nil, err
	}
	c.Bootstrap = true
	return c, nil
}
