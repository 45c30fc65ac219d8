package pager

// DefaultPrefetchRadius is how many sub-items on each side of the current
// offset are prefetched.
const DefaultPrefetchRadius = 3

// Config is an immutable settings snapshot taken at session start.
// Replace it with Pager.Reconfigure; never mutate a shared copy.
type Config struct {
	PrefetchRadius   int
	ReadingDirection ReadingDirection
	AutoAdvance      bool
}

// DefaultConfig returns left-to-right reading with the default radius.
func DefaultConfig() Config {
	return Config{
		PrefetchRadius:   DefaultPrefetchRadius,
		ReadingDirection: LeftToRight,
		AutoAdvance:      true,
	}
}

func (c Config) normalized() Config {
	if c.PrefetchRadius < 0 {
		c.PrefetchRadius = 0
	}
	if c.ReadingDirection == "" {
		c.ReadingDirection = LeftToRight
	}
	return c
}
