package main

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"syscall"

	"github.com/moodlens/moodlens-backend/internal/client"
	"github.com/moodlens/moodlens-backend/internal/config"
)

type globalOptions struct {
	configPath string
	apiURL     string
	json       bool
}

type commandContext struct {
	opts *globalOptions

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(opts *globalOptions) *commandContext {
	return &commandContext{opts: opts}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		path := strings.TrimSpace(c.opts.configPath)
		if path == "" {
			c.config, c.configErr = config.Load()
			return
		}
		c.config, c.configErr = config.LoadFile(path)
	})
	return c.config, c.configErr
}

func (c *commandContext) apiURL() string {
	if url := strings.TrimSpace(c.opts.apiURL); url != "" {
		return url
	}
	if cfg, err := c.ensureConfig(); err == nil && cfg.Monitor.APIURL != "" {
		return cfg.Monitor.APIURL
	}
	return "http://localhost:5000"
}

func (c *commandContext) client() *client.Client {
	return client.New(c.apiURL(), nil)
}

func (c *commandContext) jsonOutput() bool {
	return c.opts.json
}

// wrapRequestError turns connection failures into a hint about the server
func wrapRequestError(err error, baseURL string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("connect to %s: connection refused; is the MoodLens server running?", baseURL)
	}
	return err
}
