package topicservice

import (
	"context"

	"github.com/contenox/chatstate/chattypes"
	"github.com/contenox/chatstate/libtracker"
)

type activityTrackerDecorator struct {
	service Service
	tracker libtracker.ActivityTracker
}

func (d *activityTrackerDecorator) CreateTopic(ctx context.Context, sessionID, title string) (*chattypes.Topic, error) {
	reportErr, reportChange, end := d.tracker.Start(ctx, "create", "topic", "session_id", sessionID)
	defer end()

	topic, err := d.service.CreateTopic(ctx, sessionID, title)
	if err != nil {
		reportErr(err)
		return nil, err
	}
	reportChange(topic.ID, topic)
	return topic, nil
}

func (d *activityTrackerDecorator) RemoveTopic(ctx context.Context, id string) error {
	reportErr, reportChange, end := d.tracker.Start(ctx, "delete", "topic", "topic_id", id)
	defer end()

	if err := d.service.RemoveTopic(ctx, id); err != nil {
		reportErr(err)
		return err
	}
	reportChange(id, nil)
	return nil
}

func (d *activityTrackerDecorator) ListTopics(ctx context.Context, sessionID string) ([]chattypes.Topic, error) {
	reportErr, _, end := d.tracker.Start(ctx, "list", "topics", "session_id", sessionID)
	defer end()

	topics, err := d.service.ListTopics(ctx, sessionID)
	if err != nil {
		reportErr(err)
	}
	return topics, err
}

// WithActivityTracker wraps a topic Service with activity tracking.
func WithActivityTracker(service Service, tracker libtracker.ActivityTracker) Service {
	return &activityTrackerDecorator{
		service: service,
		tracker: tracker,
	}
}

var _ Service = (*activityTrackerDecorator)(nil)
