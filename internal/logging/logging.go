package logging

import "go.uber.org/zap"

type Cfg struct {
	Level string
	JSON  bool
}

// New builds the process logger. Console encoding is the default since the
// backend usually runs next to a desktop session, not under a log collector.
func New(c Cfg) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if !c.JSON {
		cfg.Encoding = "console"
	}
	if c.Level != "" {
		if err := cfg.Level.UnmarshalText([]byte(c.Level)); err != nil {
			cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
		}
	}
	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l.Named("lumina")
}
