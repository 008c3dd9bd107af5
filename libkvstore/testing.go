package libkvstore

import (
	"context"
	"net/url"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcvalkey "github.com/testcontainers/testcontainers-go/modules/valkey"
)

// SetupLocalInstance starts a valkey container and returns its host:port.
func SetupLocalInstance(ctx context.Context) (string, testcontainers.Container, func(), error) {
	cleanup := func() {}
	container, err := tcvalkey.Run(ctx, "docker.io/valkey/valkey:7.2.5")
	if err != nil {
		return "", nil, cleanup, err
	}
	cleanup = func() {
		timeout := time.Second
		_ = container.Stop(ctx, &timeout)
	}
	connStr, err := container.ConnectionString(ctx)
	if err != nil {
		return "", nil, cleanup, err
	}
	u, err := url.Parse(connStr)
	if err != nil {
		return "", nil, cleanup, err
	}
	return u.Host, container, cleanup, nil
}
