package config

import (
	"time"

	"github.com/imdario/mergo"
)

type (
	// Configuration marks a type as a configuration and
	// provides an opportunity to initialize after configured.
	Configuration interface {
		ConfigurationReady()
	}

	// PoolConfig configures a pool of handler targets.
	// A zero WaitTimeout waits until the caller gives up.
	PoolConfig struct {
		Size        int           `path:"size" validate:"gte=0"`
		WaitTimeout time.Duration `path:"waitTimeout" validate:"gte=0"`
	}

	// ChannelConfig configures a queue channel.
	ChannelConfig struct {
		Name        string        `path:"name" validate:"required"`
		Capacity    int           `path:"capacity" validate:"gte=0"`
		SendTimeout time.Duration `path:"sendTimeout"`
	}

	// ActivatorConfig configures a service activator invoking
	// a registered target for each message.
	ActivatorConfig struct {
		Name         string         `path:"name" validate:"required"`
		Target       string         `path:"target" validate:"required"`
		Method       string         `path:"method"`
		Annotated    bool           `path:"annotated"`
		MessageList  bool           `path:"messageList"`
		Pooled       bool           `path:"pooled"`
		Pool         PoolConfig     `path:"pool"`
		Output       *ChannelConfig `path:"output"`
		RequireReply bool           `path:"requireReply"`
	}

	// CourierConfig is the root configuration of the activators.
	CourierConfig struct {
		Activators []ActivatorConfig `path:"activators" validate:"dive"`
	}
)


// PoolConfig

func (c PoolConfig) Defaults() PoolConfig {
	return PoolConfig{Size: 10}
}


// ChannelConfig

func (c ChannelConfig) Defaults() ChannelConfig {
	return ChannelConfig{Capacity: 100, SendTimeout: time.Second}
}


// ActivatorConfig

// ConfigurationReady applies the pool and output defaults.
func (c *ActivatorConfig) ConfigurationReady() {
	_ = mergo.Merge(&c.Pool, PoolConfig{}.Defaults())
	if c.Output != nil {
		_ = mergo.Merge(c.Output, ChannelConfig{}.Defaults())
	}
}


// CourierConfig

func (c *CourierConfig) ConfigurationReady() {
	for i := range c.Activators {
		c.Activators[i].ConfigurationReady()
	}
}
