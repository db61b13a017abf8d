package paramstore

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/require"
)

// fakeAPI is a simple fake implementing ssmAPI for tests.
type fakeAPI struct {
	getOut *ssm.GetParameterOutput
	getErr error
	calls  int
	lastIn *ssm.GetParameterInput
}

func (f *fakeAPI) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.calls++
	f.lastIn = in
	return f.getOut, f.getErr
}

func valueOut(v string) *ssm.GetParameterOutput {
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{Name: aws.String("p"), Value: aws.String(v)}}
}

func TestGetParameter_HappyPath(t *testing.T) {
	api := &fakeAPI{getOut: valueOut(`{"token":"v"}`)}
	client, err := New(api)
	require.NoError(t, err)

	v, err := client.GetParameter(context.Background(), " /travel-agent/rasp-token ")
	require.NoError(t, err)
	require.Equal(t, `{"token":"v"}`, v)
	require.Equal(t, "/travel-agent/rasp-token", aws.ToString(api.lastIn.Name))
	require.True(t, aws.ToBool(api.lastIn.WithDecryption))
}

func TestGetParameter_CachesValues(t *testing.T) {
	api := &fakeAPI{getOut: valueOut("v")}
	client, err := New(api)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := client.GetParameter(context.Background(), "p")
		require.NoError(t, err)
	}
	require.Equal(t, 1, api.calls)
}

func TestGetParameter_CacheDisabled(t *testing.T) {
	api := &fakeAPI{getOut: valueOut("v")}
	client, err := New(api, WithCacheTTL(0))
	require.NoError(t, err)

	_, _ = client.GetParameter(context.Background(), "p")
	_, _ = client.GetParameter(context.Background(), "p")
	require.Equal(t, 2, api.calls)
}

func TestGetParameter_ErrorsAreNotCached(t *testing.T) {
	api := &fakeAPI{getErr: errors.New("throttled")}
	client, err := New(api)
	require.NoError(t, err)

	_, err = client.GetParameter(context.Background(), "p")
	require.ErrorContains(t, err, "throttled")

	api.getErr = nil
	api.getOut = valueOut("v")
	v, err := client.GetParameter(context.Background(), "p")
	require.NoError(t, err)
	require.Equal(t, "v", v)
}

func TestGetParameter_NotFound(t *testing.T) {
	api := &fakeAPI{getErr: &types.ParameterNotFound{Message: aws.String("nope")}}
	client, err := New(api)
	require.NoError(t, err)

	_, err = client.GetParameter(context.Background(), "p")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetParameter_MissingValue(t *testing.T) {
	api := &fakeAPI{getOut: &ssm.GetParameterOutput{Parameter: &types.Parameter{Name: aws.String("p")}}}
	client, err := New(api)
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "p")
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing value")
}

func TestGetParameter_ClientNotInitialized(t *testing.T) {
	_, err := (&Client{}).GetParameter(context.Background(), "p")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not initialized")
}

func TestGetParameter_EmptyName(t *testing.T) {
	client, err := New(&fakeAPI{})
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "  ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "required")
}

func TestNew_NilAPI(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be nil")
}

func TestToken(t *testing.T) {
	client, err := New(&fakeAPI{getOut: valueOut(`{"token":" abc "}`)})
	require.NoError(t, err)
	tok, err := Token(context.Background(), client, "p")
	require.NoError(t, err)
	require.Equal(t, "abc", tok)

	client, _ = New(&fakeAPI{getOut: valueOut(`{"token":""}`)})
	_, err = Token(context.Background(), client, "p")
	require.ErrorContains(t, err, "empty")

	client, _ = New(&fakeAPI{getOut: valueOut(`plain`)})
	_, err = Token(context.Background(), client, "p")
	require.ErrorContains(t, err, "unmarshal")

	_, err = Token(context.Background(), nil, "p")
	require.Error(t, err)
}
