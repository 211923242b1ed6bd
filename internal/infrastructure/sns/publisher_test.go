package sns

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/guardian-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAPI struct{ mock.Mock }

func (m *mockAPI) Publish(ctx context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*sns.PublishOutput)
	return out, args.Error(1)
}

func TestPublish(t *testing.T) {
	api := &mockAPI{}
	api.On("Publish", mock.Anything, mock.MatchedBy(func(in *sns.PublishInput) bool {
		var e domain.Event
		if err := json.Unmarshal([]byte(*in.Message), &e); err != nil {
			return false
		}
		return *in.TopicArn == "arn:aws:sns:us-east-1:000000000000:identity" &&
			e.Type == domain.EventIdentityDeleted && e.IdentityID == "id-1" &&
			*in.MessageAttributes["eventType"].StringValue == domain.EventIdentityDeleted
	})).Return(&sns.PublishOutput{}, nil)

	p := NewPublisher(api, "arn:aws:sns:us-east-1:000000000000:identity")
	require.NoError(t, p.Publish(context.Background(), domain.NewEvent(domain.EventIdentityDeleted, "id-1")))
	api.AssertExpectations(t)
}

func TestPublish_Error(t *testing.T) {
	api := &mockAPI{}
	boom := errors.New("throttled")
	api.On("Publish", mock.Anything, mock.Anything).Return(nil, boom)

	err := NewPublisher(api, "arn").Publish(context.Background(), domain.NewEvent(domain.EventIdentityRegistered, "id-1"))
	assert.ErrorIs(t, err, boom)
}
