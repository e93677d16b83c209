package products

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/awsomestore/storefront/pkg/storefront/event"
	"github.com/awsomestore/storefront/pkg/storefront/records"
)

type capturePublisher struct {
	envelopes []event.Envelope
	err       error
}

func (p *capturePublisher) Publish(ctx context.Context, env event.Envelope) (event.Receipt, error) {
	if p.err != nil {
		return event.Receipt{}, p.err
	}
	p.envelopes = append(p.envelopes, env)
	return event.Receipt{MessageID: "m1"}, nil
}

func newService(t *testing.T, pub Publisher) (*Service, records.ProductStore) {
	t.Helper()
	store := records.NewMemoryProductStore()
	t.Cleanup(func() { store.Close() })
	return NewService(store, event.NewStoreRegistry(), pub, slog.Default()), store
}

func TestBuildEventIsDeterministic(t *testing.T) {
	p := records.Product{ID: "p1", Code: "WID-1", Price: 9.99}

	first := BuildEvent(p, event.ProductCreated, "admin@b.com", "req-1")
	second := BuildEvent(p, event.ProductCreated, "admin@b.com", "req-1")

	assert.Equal(t, first, second)
	assert.Equal(t, event.ProductCreated, first.EventType)
	assert.Equal(t, "p1", first.ProductID)
	assert.Equal(t, "WID-1", first.ProductCode)
	assert.Equal(t, 9.99, first.ProductPrice)
}

func TestCreatePublishesProductCreated(t *testing.T) {
	pub := &capturePublisher{}
	svc, _ := newService(t, pub)
	ctx := context.Background()

	created, err := svc.Create(ctx, records.Product{Name: "Widget", Code: "WID-1", Price: 9.99, Model: "A1"}, "admin@b.com", "req-1")
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	require.Len(t, pub.envelopes, 1)
	env := pub.envelopes[0]
	assert.Equal(t, event.ProductCreated, env.EventType)

	decoded, err := event.NewStoreRegistry().Decode(env)
	require.NoError(t, err)
	pe := decoded.(*event.ProductEvent)
	assert.Equal(t, created.ID, pe.ProductID)
	assert.Equal(t, "admin@b.com", pe.Email)
	assert.Equal(t, "req-1", pe.RequestID)
}

func TestUpdateAndDeletePublish(t *testing.T) {
	pub := &capturePublisher{}
	svc, _ := newService(t, pub)
	ctx := context.Background()

	created, err := svc.Create(ctx, records.Product{Name: "Widget", Code: "WID-1", Price: 9.99, Model: "A1"}, "admin@b.com", "req-1")
	require.NoError(t, err)

	created.Price = 12.50
	_, err = svc.Update(ctx, created, "admin@b.com", "req-2")
	require.NoError(t, err)

	_, err = svc.Delete(ctx, created.ID, "admin@b.com", "req-3")
	require.NoError(t, err)

	require.Len(t, pub.envelopes, 3)
	assert.Equal(t, event.ProductCreated, pub.envelopes[0].EventType)
	assert.Equal(t, event.ProductUpdated, pub.envelopes[1].EventType)
	assert.Equal(t, event.ProductDeleted, pub.envelopes[2].EventType)
}

func TestMutationSurvivesPublishFailure(t *testing.T) {
	pub := &capturePublisher{err: errors.New("bus unavailable")}
	svc, store := newService(t, pub)
	ctx := context.Background()

	created, err := svc.Create(ctx, records.Product{Name: "Widget", Code: "WID-1", Price: 9.99, Model: "A1"}, "admin@b.com", "req-1")
	require.NoError(t, err)

	// The mutation committed even though the publish failed.
	got, err := store.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)
}

func TestMutationFailureDoesNotPublish(t *testing.T) {
	pub := &capturePublisher{}
	svc, _ := newService(t, pub)

	_, err := svc.Update(context.Background(), records.Product{ID: "missing", Name: "X"}, "admin@b.com", "req-1")
	assert.ErrorIs(t, err, records.ErrNotFound)
	assert.Empty(t, pub.envelopes)
}
