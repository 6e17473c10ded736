package azure

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"

	"cloudtally/internal/azure/ratelimit"
	"cloudtally/internal/logging"
	"cloudtally/internal/version"
)

const (
	// DefaultManagementURL is the public cloud Service Management endpoint
	DefaultManagementURL = "https://management.core.windows.net"
	// DefaultAPIVersion is sent as x-ms-version
	DefaultAPIVersion = "2014-06-01"
	// DefaultTimeout bounds a single HTTP request
	DefaultTimeout = 30 * time.Second

	moduleName = "cloudtally"
)

// ClientConfig configures a management API client
type ClientConfig struct {
	SubscriptionID string
	ManagementURL  string
	APIVersion     string
	Timeout        time.Duration
	Credential     Credential
	RateLimit      ratelimit.Config
	// HTTPClient replaces the default transport; Credential transport
	// settings are not applied to it.
	HTTPClient *http.Client
}

// Client reads hosted services and deployments from the Service Management API
type Client struct {
	subscriptionID string
	baseURL        string
	apiVersion     string
	pipeline       runtime.Pipeline
	limiter        *ratelimit.Limiter
}

// Verify that Client implements InventoryClient
var _ InventoryClient = (*Client)(nil)

// NewClient creates a management API client
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.SubscriptionID == "" {
		return nil, fmt.Errorf("subscription ID is required")
	}
	if cfg.Credential == nil {
		return nil, fmt.Errorf("credential is required")
	}
	if cfg.ManagementURL == "" {
		cfg.ManagementURL = DefaultManagementURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		cfg.Credential.configureTransport(transport)
		httpClient = &http.Client{Transport: transport, Timeout: cfg.Timeout}
	}

	baseURL := strings.TrimRight(cfg.ManagementURL, "/")
	allowHTTP := strings.HasPrefix(strings.ToLower(baseURL), "http://")

	// Retries belong to the rate limiter, the pipeline tries once.
	pipeline := runtime.NewPipeline(moduleName, version.Version, runtime.PipelineOptions{
		PerCall:  []policy.Policy{&versionPolicy{apiVersion: cfg.APIVersion}},
		PerRetry: cfg.Credential.policies(allowHTTP),
	}, &policy.ClientOptions{
		Transport: httpClient,
		Retry:     policy.RetryOptions{MaxRetries: -1},
	})

	return &Client{
		subscriptionID: cfg.SubscriptionID,
		baseURL:        baseURL,
		apiVersion:     cfg.APIVersion,
		pipeline:       pipeline,
		limiter:        ratelimit.New(cfg.RateLimit),
	}, nil
}

// SubscriptionID returns the subscription the client reads
func (c *Client) SubscriptionID() string {
	return c.subscriptionID
}

// ListHostedServices lists every hosted service in the subscription
func (c *Client) ListHostedServices(ctx context.Context) ([]HostedService, error) {
	var list HostedServiceList
	path := fmt.Sprintf("/%s/services/hostedservices", url.PathEscape(c.subscriptionID))

	err := c.limiter.Execute(ctx, "ListHostedServices", func() error {
		return c.get(ctx, "ListHostedServices", path, &list)
	})
	if err != nil {
		return nil, err
	}

	logging.Debug("Listed hosted services", map[string]interface{}{
		"subscription": c.subscriptionID,
		"count":        len(list.Services),
	})
	return list.Services, nil
}

// GetDeployment reads the deployment in slot. A missing deployment is
// reported as nil with no error.
func (c *Client) GetDeployment(ctx context.Context, serviceName string, slot Slot) (*Deployment, error) {
	var deployment Deployment
	path := fmt.Sprintf("/%s/services/hostedservices/%s/deploymentslots/%s",
		url.PathEscape(c.subscriptionID), url.PathEscape(serviceName), url.PathEscape(string(slot)))

	err := c.limiter.Execute(ctx, "GetDeployment", func() error {
		return c.get(ctx, "GetDeployment", path, &deployment)
	})
	if IsNotFound(err) {
		logging.Debug("No deployment in slot", map[string]interface{}{
			"service": serviceName,
			"slot":    string(slot),
		})
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &deployment, nil
}

// get performs one GET and decodes the XML body into out
func (c *Client) get(ctx context.Context, operation, path string, out interface{}) error {
	req, err := runtime.NewRequest(ctx, http.MethodGet, c.baseURL+path)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", operation, err)
	}

	resp, err := c.pipeline.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", operation, err)
	}

	if !runtime.HasStatusCode(resp, http.StatusOK) {
		return decodeError(operation, resp)
	}

	if err := runtime.UnmarshalAsXML(resp, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", operation, err)
	}
	return nil
}

func decodeError(operation string, resp *http.Response) error {
	pe := &ProviderError{Operation: operation, StatusCode: resp.StatusCode}

	body, err := runtime.Payload(resp)
	if err != nil || len(body) == 0 {
		return pe
	}

	var se serviceError
	if xml.Unmarshal(body, &se) == nil {
		pe.Code = se.Code
		pe.Message = se.Message
	} else {
		pe.Message = strings.TrimSpace(string(body))
	}
	return pe
}

// versionPolicy stamps the Service Management headers on every request
type versionPolicy struct {
	apiVersion string
}

func (p *versionPolicy) Do(req *policy.Request) (*http.Response, error) {
	req.Raw().Header.Set("x-ms-version", p.apiVersion)
	req.Raw().Header.Set("Accept", "application/xml")
	return req.Next()
}
