package main

import (
	"strings"

	"github.com/cleaver/open-dev-coach/internal/client"
	"github.com/cleaver/open-dev-coach/internal/config"
)

// resolveAPIAddr returns --api, or the configured listen address.
func resolveAPIAddr() string {
	if apiAddr != "" {
		return apiAddr
	}
	addr := config.DefaultSettings().Listen
	if cfg, err := config.Load(configPath); err == nil {
		if v, ok := cfg.Get("listen"); ok {
			addr = v
		}
	}
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr
	}
	return addr
}

func newAPIClient() *client.Client {
	return client.New(resolveAPIAddr())
}

