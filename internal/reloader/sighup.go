package reloader

import (
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

// OnSIGHUP runs fn on every SIGHUP for the life of the process.
func OnSIGHUP(log *zap.Logger, fn func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGHUP)
	go func() {
		for range ch {
			log.Info("reload signal received")
			fn()
		}
	}()
}
