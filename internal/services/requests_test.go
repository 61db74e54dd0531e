package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esgportal/apiserver/types"
)

func TestSubmitRecordsAndNotifies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.requests.Submit(ctx, session(f.alice), "acme corp", " please ")
	require.NoError(t, err)
	assert.Equal(t, types.AccessRequestPending, req.Status)
	assert.Equal(t, "please", req.Note)
	assert.Equal(t, f.acme.ISIN, req.ISIN)
	assert.NotEmpty(t, req.CorrelationID)

	require.Len(t, f.publisher.events, 1)
	event, ok := f.publisher.events[0].(types.AccessRequestEvent)
	require.True(t, ok)
	assert.Equal(t, req.CorrelationID, event.CorrelationID)
	assert.Equal(t, "alice", event.Username)

	ok, err = f.ledger.HasAccess(ctx, f.alice.ID, f.acme.ID)
	require.NoError(t, err)
	assert.False(t, ok, "a request alone never grants access")

	pending, err := f.requests.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "Acme Corp", pending[0].CompanyName)
}

func TestSubmitSurvivesPublishFailure(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("broker down")

	_, err := f.requests.Submit(context.Background(), session(f.alice), f.acme.ISIN, "")
	require.NoError(t, err)

	pending, err := f.requests.ListPending(context.Background())
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestSubmitRejectsAlreadyEntitledAndUnknown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Grant(ctx, f.alice.ID, f.acme.ISIN, nil, "")
	require.NoError(t, err)

	_, err = f.requests.Submit(ctx, session(f.alice), f.acme.ISIN, "")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = f.requests.Submit(ctx, session(f.alice), "NOPE", "")
	requireNotFound(t, err, "company")
}

func TestApproveGrantsAndRejectCloses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := session(f.staff)

	first, err := f.requests.Submit(ctx, session(f.alice), f.acme.ISIN, "for diligence")
	require.NoError(t, err)
	second, err := f.requests.Submit(ctx, session(f.bob), f.beta.ISIN, "")
	require.NoError(t, err)

	result, err := f.requests.Approve(ctx, admin, first.ID)
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.Equal(t, "for diligence", result.Entitlement.Note)
	require.NotNil(t, result.Entitlement.GrantedBy)
	assert.Equal(t, f.staff.ID, *result.Entitlement.GrantedBy)

	ok, err := f.ledger.HasAccess(ctx, f.alice.ID, f.acme.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = f.requests.Approve(ctx, admin, first.ID)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	require.NoError(t, f.requests.Reject(ctx, admin, second.ID))
	ok, err = f.ledger.HasAccess(ctx, f.bob.ID, f.beta.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	pending, err := f.requests.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	err = f.requests.Reject(ctx, admin, 9999)
	requireNotFound(t, err, "access request")
}
