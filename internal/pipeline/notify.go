package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"go.uber.org/multierr"
)

// GenerationCounter names the redis counter bumped after every run with output.
const GenerationCounter = "facts-generation"

// ReloadMessage is published on the reload channel.
type ReloadMessage struct {
	RunID      string `json:"run_id"`
	Generation int64  `json:"generation"`
}

type reloadPublisher interface {
	Incr(ctx context.Context, key string) (int64, error)
	Publish(ctx context.Context, channel string, payload any) error
	CounterKey(name string) string
}

// ReloadNotifier bumps the facts generation and tells API replicas to reload.
type ReloadNotifier struct {
	client  reloadPublisher
	channel string
}

func NewReloadNotifier(client reloadPublisher, channel string) (*ReloadNotifier, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if channel == "" {
		return nil, fmt.Errorf("reload channel required")
	}
	return &ReloadNotifier{client: client, channel: channel}, nil
}

func (n *ReloadNotifier) Notify(ctx context.Context, summary Summary) error {
	gen, err := n.client.Incr(ctx, n.client.CounterKey(GenerationCounter))
	if err != nil {
		return fmt.Errorf("bump facts generation: %w", err)
	}
	payload, err := json.Marshal(ReloadMessage{RunID: summary.RunID, Generation: gen})
	if err != nil {
		return err
	}
	if err := n.client.Publish(ctx, n.channel, string(payload)); err != nil {
		return fmt.Errorf("publish reload: %w", err)
	}
	return nil
}

// RunCompletedEvent is the payload of the run event topic.
const RunCompletedEvent = "ltv.pipeline.run_completed"

type eventPublisher interface {
	Publish(ctx context.Context, data []byte, attributes map[string]string) (string, error)
}

// EventNotifier publishes run summaries for downstream consumers.
type EventNotifier struct {
	publisher eventPublisher
}

func NewEventNotifier(publisher eventPublisher) (*EventNotifier, error) {
	if publisher == nil {
		return nil, fmt.Errorf("publisher required")
	}
	return &EventNotifier{publisher: publisher}, nil
}

func (n *EventNotifier) Notify(ctx context.Context, summary Summary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal run summary: %w", err)
	}
	_, err = n.publisher.Publish(ctx, data, map[string]string{
		"event_type":  RunCompletedEvent,
		"run_id":      summary.RunID,
		"status":      summary.Status.String(),
		"records_out": strconv.Itoa(summary.Records),
	})
	return err
}

// LatestArchive is overwritten on every archived run.
const LatestArchive = "latest.csv"

type objectUploader interface {
	Upload(ctx context.Context, object, contentType string, body io.Reader) error
	ObjectName(name string) string
}

// ArchiveNotifier copies the snapshot file to object storage, once under the
// run id and once as the latest copy.
type ArchiveNotifier struct {
	uploader objectUploader
	path     string
	open     func(string) (io.ReadCloser, error)
}

func NewArchiveNotifier(uploader objectUploader, snapshotPath string) (*ArchiveNotifier, error) {
	if uploader == nil {
		return nil, fmt.Errorf("uploader required")
	}
	if snapshotPath == "" {
		return nil, fmt.Errorf("snapshot path required")
	}
	return &ArchiveNotifier{
		uploader: uploader,
		path:     snapshotPath,
		open:     func(p string) (io.ReadCloser, error) { return os.Open(p) },
	}, nil
}

func (n *ArchiveNotifier) Notify(ctx context.Context, summary Summary) error {
	var err error
	for _, name := range []string{summary.RunID + ".csv", LatestArchive} {
		err = multierr.Append(err, n.upload(ctx, n.uploader.ObjectName(name)))
	}
	return err
}

func (n *ArchiveNotifier) upload(ctx context.Context, object string) error {
	f, err := n.open(n.path)
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()
	return n.uploader.Upload(ctx, object, "text/csv", f)
}
