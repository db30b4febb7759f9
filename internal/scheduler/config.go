// Package scheduler arms and fires one-shot check-ins.
package scheduler

// Config defines the scheduler configuration.
type Config struct {
	// InboxSize is the number of queued commands and timer fires the loop buffers.
	InboxSize int `yaml:"inbox_size" mapstructure:"inbox_size"`
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() *Config {
	return &Config{
		InboxSize: 64,
	}
}

func (c *Config) inboxSize() int {
	if c.InboxSize <= 0 {
		return DefaultConfig().InboxSize
	}
	return c.InboxSize
}
