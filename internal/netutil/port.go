package netutil

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
)

// Listen binds the preferred address, or when it is taken and fallback is
// enabled, the first free candidate. The returned listener is already bound,
// so the chosen address cannot be lost to another process.
func Listen(preferred string, candidates []string, fallback bool) (net.Listener, error) {
	if preferred != "" {
		ln, err := net.Listen("tcp", preferred)
		if err == nil {
			return ln, nil
		}
		if !fallback {
			return nil, fmt.Errorf("preferred bind address in use: %s: %w", preferred, err)
		}
		slog.Warn("preferred bind address unavailable, trying candidates", "addr", preferred, "error", err)
	}

	for _, addr := range candidates {
		if addr == preferred {
			continue
		}
		if ln, err := net.Listen("tcp", addr); err == nil {
			return ln, nil
		}
	}
	return nil, errors.New("no available bind addresses")
}
