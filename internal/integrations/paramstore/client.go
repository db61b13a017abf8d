// Package paramstore reads secrets and settings from AWS SSM Parameter Store.
package paramstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/patrickmn/go-cache"
)

// DefaultCacheTTL bounds how long a fetched value is reused. Lambda
// containers live for hours, so rotated secrets are picked up eventually.
const DefaultCacheTTL = 15 * time.Minute

// ErrNotFound is returned when the parameter does not exist.
var ErrNotFound = errors.New("paramstore: parameter not found")

// ssmAPI is the minimal AWS SSM interface required by Client.
// *ssm.Client from aws-sdk-go-v2 satisfies this interface.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Getter is the interface that wraps GetParameter. The Mistral client and
// the Lambda wiring depend on it rather than on *Client.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// Client wraps an AWS SSM API with a small TTL cache of decrypted values.
type Client struct {
	api   ssmAPI
	cache *cache.Cache
}

type Option func(*Client)

// WithCacheTTL sets the value cache lifetime. Zero or negative disables
// caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		if ttl <= 0 {
			c.cache = nil
			return
		}
		c.cache = cache.New(ttl, 2*ttl)
	}
}

// New creates a Client with the given SSM API implementation.
func New(api ssmAPI, opts ...Option) (*Client, error) {
	if api == nil {
		return nil, errors.New("paramstore: api must not be nil")
	}
	c := &Client{api: api, cache: cache.New(DefaultCacheTTL, 2*DefaultCacheTTL)}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) GetParameter(ctx context.Context, name string) (string, error) {
	if c.api == nil {
		return "", errors.New("paramstore: client not initialized")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("paramstore: name is required")
	}
	if c.cache != nil {
		if v, ok := c.cache.Get(name); ok {
			return v.(string), nil
		}
	}

	out, err := c.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		var notFound *types.ParameterNotFound
		if errors.As(err, &notFound) {
			return "", fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		return "", fmt.Errorf("paramstore: get parameter %q: %w", name, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", errors.New("paramstore: parameter missing value")
	}

	value := *out.Parameter.Value
	if c.cache != nil {
		c.cache.Set(name, value, cache.DefaultExpiration)
	}
	return value, nil
}

// tokenPayload is the JSON shape secrets are stored in.
type tokenPayload struct {
	Token string `json:"token"`
}

// Token reads a {"token": "..."} secret through g.
func Token(ctx context.Context, g Getter, name string) (string, error) {
	if g == nil {
		return "", errors.New("paramstore: getter is nil")
	}
	raw, err := g.GetParameter(ctx, name)
	if err != nil {
		return "", err
	}
	var tp tokenPayload
	if err := json.Unmarshal([]byte(raw), &tp); err != nil {
		return "", fmt.Errorf("paramstore: unmarshal %q as token JSON: %w", name, err)
	}
	if strings.TrimSpace(tp.Token) == "" {
		return "", fmt.Errorf("paramstore: token in %q is empty", name)
	}
	return strings.TrimSpace(tp.Token), nil
}
