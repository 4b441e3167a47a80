package ratelimit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentuse/agentuse/model"
)

type stubClient struct {
	err  error
	resp *model.Response
}

func (s *stubClient) Complete(ctx context.Context, req *model.Request) (*model.Response, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

func TestMiddlewareBacksOffOnRateLimit(t *testing.T) {
	l := New(6000, 6000)
	client := l.Middleware()(&stubClient{err: model.ErrRateLimited})

	_, err := client.Complete(context.Background(), &model.Request{})
	require.ErrorIs(t, err, model.ErrRateLimited)
	assert.Less(t, l.CurrentTPM(), 6000.0)
}

func TestMiddlewareRecoversTowardsMax(t *testing.T) {
	l := New(1000, 6000)
	client := l.Middleware()(&stubClient{resp: &model.Response{}})

	before := l.CurrentTPM()
	_, err := client.Complete(context.Background(), &model.Request{})
	require.NoError(t, err)
	assert.Greater(t, l.CurrentTPM(), before)
}

func TestMiddlewarePassesThroughNilClient(t *testing.T) {
	l := New(1000, 1000)
	assert.Nil(t, l.Middleware()(nil))
}
