package bluesky

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	bsky "github.com/bluesky-social/jetstream/pkg/client"
	"github.com/bluesky-social/jetstream/pkg/client/schedulers/sequential"
	"github.com/bluesky-social/jetstream/pkg/models"
	"github.com/nats-io/nats.go/jetstream"

	"skyreach/internal/core"
	inats "skyreach/internal/nats"

	"github.com/zhulik/pips"
)

const (
	jetstreamURL = "wss://jetstream2.us-east.bsky.network/subscribe?wantedCollections=app.bsky.feed.post"

	cursorKey = "firehose_cursor"
)

// Firehose subscribes to the Bluesky jetstream and exposes the raw event
// stream. The matcher downstream turns matching post commits into
// candidates. The cursor is checkpointed in NATS KV so a restart resumes
// where it left off.
type Firehose struct {
	Logger *slog.Logger
	NATS   *inats.NATS

	ch     chan pips.D[*core.BlueskyEvent]
	client *bsky.Client
}

func (f *Firehose) Init(_ context.Context) error {
	var err error

	f.ch = make(chan pips.D[*core.BlueskyEvent])
	f.Logger = f.Logger.With("component", "bluesky.Firehose")

	handler := sequential.NewScheduler("skyreach", f.Logger, func(_ context.Context, event *models.Event) error {
		f.ch <- pips.NewD(event)

		return nil
	})

	f.client, err = bsky.NewClient(
		&bsky.ClientConfig{
			Compress:     true,
			WebsocketURL: jetstreamURL,
			ExtraHeaders: map[string]string{},
		}, f.Logger, handler,
	)

	return err
}

func (f *Firehose) Shutdown(_ context.Context) error {
	defer close(f.ch)
	return nil
}

func (f *Firehose) C() <-chan pips.D[*core.BlueskyEvent] {
	return f.ch
}

func (f *Firehose) Run(ctx context.Context) error {
	cursorBytes, err := f.NATS.KV.Get(ctx, cursorKey)
	if err != nil {
		if !errors.Is(err, jetstream.ErrKeyNotFound) {
			return err
		}
	}

	var lastEventTimestamp int64
	if cursorBytes != nil {
		lastEventTimestamp, err = strconv.ParseInt(string(cursorBytes.Value()), 10, 64)
		if err != nil {
			lastEventTimestamp = 0
		}
	}

	cursor := &lastEventTimestamp

	f.Logger.Info("subscribing to the Bluesky firehose", "cursor", *cursor)

	err = f.client.ConnectAndRead(ctx, cursor)

	// A separate context because the original one is canceled for shutdown.
	putCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	return errors.Join(err, f.checkpoint(putCtx, *cursor))
}

func (f *Firehose) checkpoint(ctx context.Context, cursor int64) error {
	_, err := f.NATS.KV.Put(ctx, cursorKey, []byte(fmt.Sprintf("%d", cursor)))
	return err
}
