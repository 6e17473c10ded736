package azure

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloudtally/internal/azure/ratelimit"
)

const hostedServicesXML = `<?xml version="1.0" encoding="utf-8"?>
<HostedServices xmlns="http://schemas.microsoft.com/windowsazure" xmlns:i="http://www.w3.org/2001/XMLSchema-instance">
  <HostedService>
    <Url>https://management.core.windows.net/sub-1/services/hostedservices/svc1</Url>
    <ServiceName>svc1</ServiceName>
  </HostedService>
  <HostedService>
    <Url>https://management.core.windows.net/sub-1/services/hostedservices/svc2</Url>
    <ServiceName>svc2</ServiceName>
  </HostedService>
</HostedServices>`

const deploymentXML = `<?xml version="1.0" encoding="utf-8"?>
<Deployment xmlns="http://schemas.microsoft.com/windowsazure" xmlns:i="http://www.w3.org/2001/XMLSchema-instance">
  <Name>svc1-prod</Name>
  <DeploymentSlot>Production</DeploymentSlot>
  <Status>Running</Status>
  <RoleInstanceList>
    <RoleInstance>
      <RoleName>WebRole1</RoleName>
      <InstanceName>WebRole1_IN_0</InstanceName>
      <InstanceStatus>ReadyRole</InstanceStatus>
      <InstanceSize>Small</InstanceSize>
    </RoleInstance>
  </RoleInstanceList>
  <RoleList>
    <Role i:type="PersistentVMRole">
      <RoleName>web1</RoleName>
      <OsVersion>WA-GUEST-OS-4.1</OsVersion>
      <RoleType>PersistentVMRole</RoleType>
      <OSVirtualHardDisk>
        <OS>Windows</OS>
        <SourceImageName>img1</SourceImageName>
      </OSVirtualHardDisk>
      <RoleSize>Small</RoleSize>
    </Role>
  </RoleList>
</Deployment>`

const notFoundXML = `<Error xmlns="http://schemas.microsoft.com/windowsazure"><Code>ResourceNotFound</Code><Message>No deployments were found.</Message></Error>`

type staticToken struct {
	token string
	err   error
	calls atomic.Int32
}

func (s *staticToken) GetToken(ctx context.Context, opts policy.TokenRequestOptions) (azcore.AccessToken, error) {
	s.calls.Add(1)
	if s.err != nil {
		return azcore.AccessToken{}, s.err
	}
	return azcore.AccessToken{Token: s.token, ExpiresOn: time.Now().Add(time.Hour)}, nil
}

func newTestClient(t *testing.T, handler http.Handler, cred Credential) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(ClientConfig{
		SubscriptionID: "sub-1",
		ManagementURL:  server.URL + "/",
		Credential:     cred,
		HTTPClient:     server.Client(),
		RateLimit: ratelimit.Config{
			RequestsPerSecond: 10000,
			APILimits:         map[string]float64{},
			MaxRetries:        3,
			BaseDelay:         time.Millisecond,
			MaxDelay:          2 * time.Millisecond,
		},
	})
	require.NoError(t, err)
	return client
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(ClientConfig{Credential: &TokenCredential{Source: &staticToken{}}})
	assert.EqualError(t, err, "subscription ID is required")

	_, err = NewClient(ClientConfig{SubscriptionID: "sub-1"})
	assert.EqualError(t, err, "credential is required")

	c, err := NewClient(ClientConfig{SubscriptionID: "sub-1", Credential: &TokenCredential{Source: &staticToken{}}})
	require.NoError(t, err)
	assert.Equal(t, DefaultManagementURL, c.baseURL)
	assert.Equal(t, DefaultAPIVersion, c.apiVersion)
	assert.Equal(t, "sub-1", c.SubscriptionID())
}

func TestListHostedServices(t *testing.T) {
	token := &staticToken{token: "tok"}
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sub-1/services/hostedservices", r.URL.Path)
		assert.Equal(t, DefaultAPIVersion, r.Header.Get("x-ms-version"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(hostedServicesXML))
	}), &TokenCredential{Source: token})

	services, err := client.ListHostedServices(context.Background())
	require.NoError(t, err)
	require.Len(t, services, 2)
	assert.Equal(t, "svc1", services[0].ServiceName)
	assert.Equal(t, "https://management.core.windows.net/sub-1/services/hostedservices/svc1", services[0].URL)
	assert.Equal(t, "svc2", services[1].ServiceName)
	assert.Equal(t, int32(1), token.calls.Load())
}

func TestGetDeployment(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sub-1/services/hostedservices/svc1/deploymentslots/production", r.URL.Path)
		_, _ = w.Write([]byte(deploymentXML))
	}), &TokenCredential{Source: &staticToken{token: "tok"}})

	d, err := client.GetDeployment(context.Background(), "svc1", SlotProduction)
	require.NoError(t, err)
	require.NotNil(t, d)

	assert.Equal(t, "svc1-prod", d.Name)
	require.Len(t, d.Roles, 1)
	role := d.Roles[0]
	assert.Equal(t, "web1", role.RoleName)
	assert.Equal(t, PersistentVMRole, role.RoleType)
	assert.Equal(t, "Small", role.RoleSize)
	assert.Equal(t, "WA-GUEST-OS-4.1", role.OSVersion)
	require.NotNil(t, role.OSVirtualHardDisk)
	assert.Equal(t, "Windows", role.OSVirtualHardDisk.OS)
	assert.Equal(t, "img1", role.OSVirtualHardDisk.SourceImageName)

	require.Len(t, d.RoleInstances, 1)
	assert.Equal(t, RoleInstance{
		RoleName:       "WebRole1",
		InstanceName:   "WebRole1_IN_0",
		InstanceStatus: "ReadyRole",
		InstanceSize:   "Small",
	}, d.RoleInstances[0])
}

func TestGetDeployment_NotFoundIsAbsent(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(notFoundXML))
	}), &TokenCredential{Source: &staticToken{token: "tok"}})

	d, err := client.GetDeployment(context.Background(), "empty", SlotProduction)
	assert.NoError(t, err)
	assert.Nil(t, d)
}

func TestGetDeployment_RetriesServerBusy(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`<Error><Code>ServerBusy</Code><Message>busy</Message></Error>`))
			return
		}
		_, _ = w.Write([]byte(deploymentXML))
	}), &TokenCredential{Source: &staticToken{token: "tok"}})

	d, err := client.GetDeployment(context.Background(), "svc1", SlotProduction)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetDeployment_PipelineDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`<Error><Code>ServerBusy</Code><Message>busy</Message></Error>`))
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{
		SubscriptionID: "sub-1",
		ManagementURL:  server.URL,
		Credential:     &TokenCredential{Source: &staticToken{token: "tok"}},
		RateLimit: ratelimit.Config{
			RequestsPerSecond: 10000,
			MaxRetries:        0,
			BaseDelay:         time.Millisecond,
			MaxDelay:          time.Millisecond,
		},
	})
	require.NoError(t, err)

	_, err = client.GetDeployment(context.Background(), "svc1", SlotProduction)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "ServerBusy", pe.Code)
}

func TestListHostedServices_ProviderError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`<Error><Code>ForbiddenError</Code><Message>The server failed to authenticate the request.</Message></Error>`))
	}), &TokenCredential{Source: &staticToken{token: "tok"}})

	_, err := client.ListHostedServices(context.Background())
	require.Error(t, err)

	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, http.StatusForbidden, pe.StatusCode)
	assert.Equal(t, "ForbiddenError", pe.Code)
	assert.False(t, pe.IsRetryable())
	assert.Contains(t, err.Error(), "ListHostedServices: HTTP 403 ForbiddenError")
}

func TestListHostedServices_TokenFailure(t *testing.T) {
	var hits atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}), &TokenCredential{Source: &staticToken{err: errors.New("no identity")}})

	_, err := client.ListHostedServices(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ListHostedServices request failed")
	assert.Contains(t, err.Error(), "no identity")
	assert.Equal(t, int32(0), hits.Load())
}

func TestDecodeError_PlainBody(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.WriteHeader(http.StatusBadGateway)
	_, _ = rec.WriteString("upstream down\n")

	err := decodeError("GetDeployment", rec.Result())
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "upstream down", pe.Message)
	assert.Empty(t, pe.Code)
	assert.Equal(t, "GetDeployment: HTTP 502", pe.Error())
}

func TestProviderError_IsRetryable(t *testing.T) {
	tests := []struct {
		err  ProviderError
		want bool
	}{
		{ProviderError{StatusCode: 429}, true},
		{ProviderError{StatusCode: 500}, true},
		{ProviderError{StatusCode: 503}, true},
		{ProviderError{StatusCode: 400, Code: "TooManyRequests"}, true},
		{ProviderError{StatusCode: 404}, false},
		{ProviderError{StatusCode: 403, Code: "ForbiddenError"}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.IsRetryable(), tt.err.Error())
	}
}
