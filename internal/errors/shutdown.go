package errors

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// GracefulShutdownHandler runs registered cleanup functions, most recent
// first, when SIGINT or SIGTERM arrives.
type GracefulShutdownHandler struct {
	funcs   []func() error
	signals chan os.Signal
	done    chan struct{}
}

// NewGracefulShutdownHandler creates a shutdown handler
func NewGracefulShutdownHandler() *GracefulShutdownHandler {
	return &GracefulShutdownHandler{
		signals: make(chan os.Signal, 1),
		done:    make(chan struct{}),
	}
}

// RegisterShutdownFunc adds a cleanup function. Register before Start.
func (h *GracefulShutdownHandler) RegisterShutdownFunc(fn func() error) {
	h.funcs = append(h.funcs, fn)
}

// Start begins listening for termination signals
func (h *GracefulShutdownHandler) Start() {
	signal.Notify(h.signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-h.signals
		h.shutdown()
	}()
}

// Stop detaches the handler from signal delivery
func (h *GracefulShutdownHandler) Stop() {
	signal.Stop(h.signals)
	close(h.signals)
}

// WaitForShutdown blocks until the cleanup functions have run
func (h *GracefulShutdownHandler) WaitForShutdown() {
	<-h.done
}

func (h *GracefulShutdownHandler) shutdown() {
	defer close(h.done)

	for i := len(h.funcs) - 1; i >= 0; i-- {
		if err := h.funcs[i](); err != nil {
			fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
		}
	}
}
