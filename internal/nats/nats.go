package nats

import (
	"context"
	"log/slog"
	"time"

	"skyreach/internal/config"

	libnats "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	appName = "skyreach"

	// ApprovalsSubject carries verified approval resolutions from the
	// callback server to the executor.
	ApprovalsSubject = "skyreach.approvals"

	// ExecutorConsumer is the durable consumer the executor fetches from.
	ExecutorConsumer = "approval-executor"
)

type NATS struct {
	Logger *slog.Logger
	Config *config.Config

	JS jetstream.JetStream
	KV jetstream.KeyValue
}

func (n *NATS) Init(ctx context.Context) error {
	n.Logger = n.Logger.With("component", "nats")

	nc, err := libnats.Connect(n.Config.NATSURL)
	if err != nil {
		return err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return err
	}

	n.JS = js

	if n.Config.NATSInit {
		if err := n.initNATS(ctx); err != nil {
			return err
		}
	}

	kv, err := js.KeyValue(ctx, appName)
	if err != nil {
		return err
	}
	n.KV = kv

	return nil
}

func (n *NATS) HealthCheck(context.Context) error {
	_, err := n.JS.Conn().RTT()
	return err
}

func (n *NATS) Shutdown(context.Context) error {
	return n.JS.Conn().Drain()
}

func (n *NATS) Consumer(ctx context.Context) (jetstream.Consumer, error) {
	return n.JS.Consumer(ctx, appName, ExecutorConsumer)
}

func (n *NATS) initNATS(ctx context.Context) error {
	n.Logger.Info("Initializing NATS")
	_, err := n.JS.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     appName,
		Subjects: []string{appName + ".*"},
		MaxAge:   7 * 24 * time.Hour,
	})
	if err != nil {
		return err
	}
	n.Logger.Info("Stream created or updated", "name", appName)

	stream, err := n.JS.Stream(ctx, appName)
	if err != nil {
		return err
	}
	_, err = stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:       ExecutorConsumer,
		FilterSubject: ApprovalsSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return err
	}
	n.Logger.Info("Consumer created or updated", "name", ExecutorConsumer)

	_, err = n.JS.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket: appName,
	})
	if err != nil {
		return err
	}
	n.Logger.Info("KeyValue created or updated", "name", appName)

	return nil
}
