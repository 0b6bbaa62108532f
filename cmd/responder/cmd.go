// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package responder

import (
	"github.com/luxfi/log"
	"github.com/spf13/cobra"

	"github.com/luxfi/surety/api"
)

func Command() *cobra.Command {
	c := &cobra.Command{
		Use:   "responder",
		Short: "Runs simulated oracles against a surety engine",
		RunE:  responderFunc,
	}
	AddFlags(c.Flags())
	return c
}

func responderFunc(c *cobra.Command, args []string) error {
	config, err := ParseFlags(c.Flags(), args)
	if err != nil {
		return err
	}

	r, err := New(api.NewClient(config.URI), log.NewLogger("responder"), *config)
	if err != nil {
		return err
	}
	return r.Run(c.Context())
}
