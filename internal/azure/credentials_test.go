package azure

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const publishSettingsV2 = `<?xml version="1.0" encoding="utf-8"?>
<PublishData>
  <PublishProfile SchemaVersion="2.0" PublishMethod="AzureServiceManagementAPI">
    <Subscription ServiceManagementUrl="https://management.core.windows.net" Id="sub-1" Name="Production" ManagementCertificate="Y2VydDE=" />
    <Subscription ServiceManagementUrl="https://management.core.windows.net" Id="sub-2" Name="Development" ManagementCertificate="Y2VydDI=" />
  </PublishProfile>
</PublishData>`

const publishSettingsV1 = `<?xml version="1.0" encoding="utf-8"?>
<PublishData>
  <PublishProfile PublishMethod="AzureServiceManagementAPI" Url="https://management.core.chinacloudapi.cn/" ManagementCertificate="bGVnYWN5">
    <Subscription Id="legacy-sub" Name="Legacy" />
  </PublishProfile>
</PublishData>`

func TestParsePublishSettings(t *testing.T) {
	tests := []struct {
		name           string
		data           string
		subscriptionID string
		want           *PublishSettings
		wantErr        string
	}{
		{
			name: "first subscription by default",
			data: publishSettingsV2,
			want: &PublishSettings{
				SubscriptionID:        "sub-1",
				SubscriptionName:      "Production",
				ManagementURL:         "https://management.core.windows.net",
				ManagementCertificate: "Y2VydDE=",
			},
		},
		{
			name:           "explicit subscription",
			data:           publishSettingsV2,
			subscriptionID: "SUB-2",
			want: &PublishSettings{
				SubscriptionID:        "sub-2",
				SubscriptionName:      "Development",
				ManagementURL:         "https://management.core.windows.net",
				ManagementCertificate: "Y2VydDI=",
			},
		},
		{
			name: "schema 1.0 profile-level certificate",
			data: publishSettingsV1,
			want: &PublishSettings{
				SubscriptionID:        "legacy-sub",
				SubscriptionName:      "Legacy",
				ManagementURL:         "https://management.core.chinacloudapi.cn/",
				ManagementCertificate: "bGVnYWN5",
			},
		},
		{
			name:           "unknown subscription",
			data:           publishSettingsV2,
			subscriptionID: "sub-9",
			wantErr:        "subscription sub-9 not found in publish settings",
		},
		{
			name:    "no subscriptions",
			data:    `<PublishData><PublishProfile/></PublishData>`,
			wantErr: "publish settings contain no subscriptions",
		},
		{
			name:    "missing certificate",
			data:    `<PublishData><PublishProfile><Subscription Id="s" Name="n"/></PublishProfile></PublishData>`,
			wantErr: "subscription s has no management certificate",
		},
		{
			name:    "not xml",
			data:    `{"json": true}`,
			wantErr: "failed to parse publish settings",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePublishSettings([]byte(tt.data), tt.subscriptionID)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadPublishSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub.publishsettings")
	require.NoError(t, os.WriteFile(path, []byte(publishSettingsV2), 0600))

	settings, err := ReadPublishSettings(path, "sub-2")
	require.NoError(t, err)
	assert.Equal(t, "Development", settings.SubscriptionName)

	_, err = ReadPublishSettings(filepath.Join(t.TempDir(), "missing"), "")
	assert.Error(t, err)
}

func TestDecodeManagementCertificate_Errors(t *testing.T) {
	_, err := DecodeManagementCertificate("not base64!!", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid base64")

	// valid base64, not a PKCS#12 container
	_, err = DecodeManagementCertificate("Y2VydDE=", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode management certificate")

	settings := &PublishSettings{ManagementCertificate: "Y2VydDE="}
	_, err = settings.Credential()
	assert.Error(t, err)
}

func TestTokenCredential_Policies(t *testing.T) {
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
	}))
	defer server.Close()

	cred := &TokenCredential{Source: &staticToken{token: "abc"}}

	pl := runtime.NewPipeline("cloudtally", "test", runtime.PipelineOptions{PerRetry: cred.policies(true)},
		&policy.ClientOptions{Transport: server.Client()})
	req, err := runtime.NewRequest(context.Background(), http.MethodGet, server.URL)
	require.NoError(t, err)
	resp, err := pl.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, "Bearer abc", auth)

	// plain http refuses to send the token unless allowed
	pl = runtime.NewPipeline("cloudtally", "test", runtime.PipelineOptions{PerRetry: cred.policies(false)},
		&policy.ClientOptions{Transport: server.Client()})
	req, err = runtime.NewRequest(context.Background(), http.MethodGet, server.URL)
	require.NoError(t, err)
	_, err = pl.Do(req)
	assert.Error(t, err)
}

func TestCertificateCredential_Policies(t *testing.T) {
	assert.Empty(t, (&CertificateCredential{}).policies(true))
}

func TestCertificateCredential_ConfigureTransport(t *testing.T) {
	cred := &CertificateCredential{}
	transport := &http.Transport{}
	cred.configureTransport(transport)

	require.NotNil(t, transport.TLSClientConfig)
	assert.Len(t, transport.TLSClientConfig.Certificates, 1)
}
