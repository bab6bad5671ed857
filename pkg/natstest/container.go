package natstest

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/sirupsen/logrus"
)

const (
	imageName = "nats"
	imageTag  = "2.10-alpine"

	containerAutoKill = 120 * time.Second
)

// StartNats runs a single JetStream enabled NATS server and returns a
// connection to it. teardown is always safe to call, even when err is non-nil.
func StartNats(pool *dockertest.Pool) (conn *nats.Conn, teardown func(), err error) {
	teardown = func() {}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: imageName,
		Tag:        imageTag,
		Cmd:        []string{"-js"},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		return nil, teardown, fmt.Errorf("failed to start nats: %w", err)
	}

	// Expire() never returns an error
	_ = resource.Expire(uint(containerAutoKill.Seconds()))

	log := logrus.StandardLogger().WithField("method", "StartNats")

	teardown = func() {
		if err := pool.Purge(resource); err != nil {
			log.WithError(err).Errorf("failed to cleanup nats resource")
		}
	}

	url := fmt.Sprintf("nats://localhost:%s", resource.GetPort("4222/tcp"))
	err = pool.Retry(func() error {
		conn, err = nats.Connect(url, nats.Timeout(time.Second))
		return err
	})
	if err != nil {
		return nil, teardown, fmt.Errorf("failed waiting for stable connection: %w", err)
	}

	return conn, teardown, nil
}
