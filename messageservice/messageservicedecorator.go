package messageservice

import (
	"context"

	"github.com/contenox/chatstate/chattypes"
	"github.com/contenox/chatstate/libtracker"
)

type activityTrackerDecorator struct {
	service Service
	tracker libtracker.ActivityTracker
}

func (d *activityTrackerDecorator) CreateMessage(ctx context.Context, params chattypes.CreateMessageParams) (*CreateResult, error) {
	reportErr, reportChange, end := d.tracker.Start(ctx, "create", "message",
		"role", string(params.Role), "scope", params.Context().Key())
	defer end()

	res, err := d.service.CreateMessage(ctx, params)
	if err != nil {
		reportErr(err)
		return nil, err
	}
	reportChange(res.ID, params.Role)
	return res, nil
}

func (d *activityTrackerDecorator) UpdateMessage(ctx context.Context, id string, patch chattypes.Patch, scope chattypes.Context) (*MutationResult, error) {
	reportErr, reportChange, end := d.tracker.Start(ctx, "update", "message", "message_id", id, "scope", scope.Key())
	defer end()

	res, err := d.service.UpdateMessage(ctx, id, patch, scope)
	if err != nil {
		reportErr(err)
		return nil, err
	}
	reportChange(id, patch)
	return res, nil
}

func (d *activityTrackerDecorator) RemoveMessage(ctx context.Context, id string, scope chattypes.Context) (*MutationResult, error) {
	reportErr, reportChange, end := d.tracker.Start(ctx, "delete", "message", "message_id", id, "scope", scope.Key())
	defer end()

	res, err := d.service.RemoveMessage(ctx, id, scope)
	if err != nil {
		reportErr(err)
		return nil, err
	}
	reportChange(id, nil)
	return res, nil
}

func (d *activityTrackerDecorator) RemoveMessages(ctx context.Context, ids []string, scope chattypes.Context) (*MutationResult, error) {
	reportErr, reportChange, end := d.tracker.Start(ctx, "delete", "messages", "count", len(ids), "scope", scope.Key())
	defer end()

	res, err := d.service.RemoveMessages(ctx, ids, scope)
	if err != nil {
		reportErr(err)
		return nil, err
	}
	reportChange(scope.Key(), ids)
	return res, nil
}

func (d *activityTrackerDecorator) RemoveMessagesByScope(ctx context.Context, scope chattypes.Context) error {
	reportErr, reportChange, end := d.tracker.Start(ctx, "delete", "scope", "scope", scope.Key())
	defer end()

	if err := d.service.RemoveMessagesByScope(ctx, scope); err != nil {
		reportErr(err)
		return err
	}
	reportChange(scope.Key(), nil)
	return nil
}

func (d *activityTrackerDecorator) RemoveAllMessages(ctx context.Context) error {
	reportErr, reportChange, end := d.tracker.Start(ctx, "delete", "messages")
	defer end()

	if err := d.service.RemoveAllMessages(ctx); err != nil {
		reportErr(err)
		return err
	}
	reportChange("*", nil)
	return nil
}

func (d *activityTrackerDecorator) GetMessages(ctx context.Context, scope chattypes.Context) ([]chattypes.Message, error) {
	reportErr, _, end := d.tracker.Start(ctx, "list", "messages", "scope", scope.Key())
	defer end()

	msgs, err := d.service.GetMessages(ctx, scope)
	if err != nil {
		reportErr(err)
	}
	return msgs, err
}

// WithActivityTracker wraps a message Service with activity tracking.
func WithActivityTracker(service Service, tracker libtracker.ActivityTracker) Service {
	return &activityTrackerDecorator{
		service: service,
		tracker: tracker,
	}
}

var _ Service = (*activityTrackerDecorator)(nil)
