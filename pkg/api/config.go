package api

import (
	srHttp "github.com/carverauto/vmready/pkg/http"
)

const defaultListenAddr = ":495"

// Config is the HTTP listener.
type Config struct {
	ListenAddr string            `json:"listen_addr"`
	APIKey     string            `json:"api_key" sensitive:"true"`
	CORS       srHttp.CORSConfig `json:"cors"`
}

// Validate implements config.Validator interface.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		c.ListenAddr = defaultListenAddr
	}

	return nil
}
