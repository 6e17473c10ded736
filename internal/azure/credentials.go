package azure

import (
	"crypto/tls"
	"encoding/base64"
	"encoding/pem"
	"encoding/xml"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"golang.org/x/crypto/pkcs12"
)

// ManagementScope is the AAD scope of the classic management endpoint
const ManagementScope = "https://management.core.windows.net//.default"

// Credential authenticates requests to the management API
type Credential interface {
	// configureTransport lets the credential attach client certificates
	configureTransport(t *http.Transport)
	// policies returns the per-retry pipeline policies that authorize a request.
	// allowHTTP permits credentials on plain http endpoints.
	policies(allowHTTP bool) []policy.Policy
}

// CertificateCredential authenticates with a management certificate
type CertificateCredential struct {
	Certificate tls.Certificate
}

func (c *CertificateCredential) configureTransport(t *http.Transport) {
	if t.TLSClientConfig == nil {
		t.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	t.TLSClientConfig.Certificates = []tls.Certificate{c.Certificate}
}

func (c *CertificateCredential) policies(bool) []policy.Policy {
	return nil
}

// TokenCredential authenticates with AAD bearer tokens
type TokenCredential struct {
	Source azcore.TokenCredential
}

func (c *TokenCredential) configureTransport(*http.Transport) {}

func (c *TokenCredential) policies(allowHTTP bool) []policy.Policy {
	return []policy.Policy{
		runtime.NewBearerTokenPolicy(c.Source, []string{ManagementScope}, &policy.BearerTokenOptions{
			InsecureAllowCredentialWithHTTP: allowHTTP,
		}),
	}
}

// NewDefaultTokenCredential uses the Azure default credential chain
// (environment, workload identity, managed identity, Azure CLI).
func NewDefaultTokenCredential() (*TokenCredential, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}
	return &TokenCredential{Source: cred}, nil
}

// PublishSettings is the subscription entry of a .publishsettings file
type PublishSettings struct {
	SubscriptionID        string
	SubscriptionName      string
	ManagementURL         string
	ManagementCertificate string
}

type publishData struct {
	XMLName  xml.Name         `xml:"PublishData"`
	Profiles []publishProfile `xml:"PublishProfile"`
}

type publishProfile struct {
	SchemaVersion         string                `xml:"SchemaVersion,attr"`
	ManagementCertificate string                `xml:"ManagementCertificate,attr"`
	URL                   string                `xml:"Url,attr"`
	Subscriptions         []publishSubscription `xml:"Subscription"`
}

type publishSubscription struct {
	ID                    string `xml:"Id,attr"`
	Name                  string `xml:"Name,attr"`
	ServiceManagementURL  string `xml:"ServiceManagementUrl,attr"`
	ManagementCertificate string `xml:"ManagementCertificate,attr"`
}

// ReadPublishSettings loads a .publishsettings file. When subscriptionID is
// empty the first subscription in the file is used.
func ReadPublishSettings(path, subscriptionID string) (*PublishSettings, error) {
	// #nosec G304 -- path is provided by the operator via config or flag
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read publish settings: %w", err)
	}
	return ParsePublishSettings(data, subscriptionID)
}

// ParsePublishSettings parses publish settings content. Both the 1.0 layout
// (certificate on the profile) and 2.0 layout (certificate per subscription)
// are accepted.
func ParsePublishSettings(data []byte, subscriptionID string) (*PublishSettings, error) {
	var doc publishData
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse publish settings: %w", err)
	}

	for _, profile := range doc.Profiles {
		for _, sub := range profile.Subscriptions {
			if subscriptionID != "" && !strings.EqualFold(sub.ID, subscriptionID) {
				continue
			}
			settings := &PublishSettings{
				SubscriptionID:        sub.ID,
				SubscriptionName:      sub.Name,
				ManagementURL:         sub.ServiceManagementURL,
				ManagementCertificate: sub.ManagementCertificate,
			}
			if settings.ManagementURL == "" {
				settings.ManagementURL = profile.URL
			}
			if settings.ManagementCertificate == "" {
				settings.ManagementCertificate = profile.ManagementCertificate
			}
			if settings.ManagementCertificate == "" {
				return nil, fmt.Errorf("subscription %s has no management certificate", sub.ID)
			}
			return settings, nil
		}
	}

	if subscriptionID != "" {
		return nil, fmt.Errorf("subscription %s not found in publish settings", subscriptionID)
	}
	return nil, fmt.Errorf("publish settings contain no subscriptions")
}

// Credential decodes the base64 PKCS#12 management certificate
func (p *PublishSettings) Credential() (*CertificateCredential, error) {
	cert, err := DecodeManagementCertificate(p.ManagementCertificate, "")
	if err != nil {
		return nil, err
	}
	return &CertificateCredential{Certificate: cert}, nil
}

// DecodeManagementCertificate turns a base64 PKCS#12 blob into a TLS client certificate
func DecodeManagementCertificate(encoded, password string) (tls.Certificate, error) {
	pfx, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("management certificate is not valid base64: %w", err)
	}

	blocks, err := pkcs12.ToPEM(pfx, password)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to decode management certificate: %w", err)
	}

	var pemData []byte
	for _, b := range blocks {
		pemData = append(pemData, pem.EncodeToMemory(b)...)
	}

	cert, err := tls.X509KeyPair(pemData, pemData)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to load management certificate: %w", err)
	}
	return cert, nil
}
