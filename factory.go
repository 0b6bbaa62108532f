// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package surety

import (
	"github.com/luxfi/log"

	"github.com/luxfi/surety/config"
)

// Factory creates new VM instances.
type Factory struct {
	config.Config
}

// New returns an uninitialized VM. The config is validated by Initialize.
func (f *Factory) New(logger log.Logger) (interface{}, error) {
	return &VM{
		Config: f.Config,
		log:    logger,
	}, nil
}
