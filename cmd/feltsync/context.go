package main

import (
	"strings"
	"sync"

	"feltsync/internal/config"
	"feltsync/internal/metadata"
	"feltsync/internal/queue"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// withQueue opens the queue store for the duration of fn.
func (c *commandContext) withQueue(fn func(*config.Config, *queue.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(cfg, store)
}

// withMetadata opens the metadata store for the duration of fn.
func (c *commandContext) withMetadata(fn func(*config.Config, *metadata.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := metadata.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(cfg, store)
}
