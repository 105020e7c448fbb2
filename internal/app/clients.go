package app

import (
	"context"

	types "github.com/edubridge/campusconnect/internal/domain"
	"github.com/edubridge/campusconnect/internal/ecs"
	"github.com/edubridge/campusconnect/internal/platform/logger"
)

// NewClientFactory builds broker clients from stored settings.
func NewClientFactory(log *logger.Logger) func(broker *types.BrokerSettings) ecs.Client {
	return func(broker *types.BrokerSettings) ecs.Client {
		client, err := ecs.NewClient(log, ecs.Options{
			BaseURL:     broker.URL,
			AuthToken:   broker.AuthToken,
			TokenSecret: broker.TokenSecret,
		})
		if err != nil {
			// Misconfigured broker row, the pass fails loudly instead
			// of panicking the scheduler.
			log.Error("Broker client init failed", "error", err, "broker_id", broker.BrokerID)
			return brokenClient{err: err}
		}
		return client
	}
}

// brokenClient fails every call with the construction error.
type brokenClient struct {
	err error
}

func (b brokenClient) ListResourceIDs(context.Context, types.ResourceKind) ([]int64, error) {
	return nil, b.err
}

func (b brokenClient) GetResource(context.Context, types.ResourceKind, int64, any) (bool, error) {
	return false, b.err
}

func (b brokenClient) GetResourceMeta(context.Context, types.ResourceKind, int64) (*ecs.TransferMeta, error) {
	return nil, b.err
}

func (b brokenClient) AddResource(context.Context, types.ResourceKind, any, []int, []int) (int64, error) {
	return 0, b.err
}

func (b brokenClient) UpdateResource(context.Context, types.ResourceKind, int64, any, []int, []int) error {
	return b.err
}

func (b brokenClient) DeleteResource(context.Context, types.ResourceKind, int64) error {
	return b.err
}

func (b brokenClient) ReadEventFifo(context.Context, int, bool) ([]ecs.Event, error) {
	return nil, b.err
}

func (b brokenClient) GetMemberships(context.Context) ([]ecs.Community, error) {
	return nil, b.err
}

func (b brokenClient) AddAuthToken(context.Context, ecs.AuthTokenPayload, int) (string, error) {
	return "", b.err
}
