package config

import (
	"fmt"

	"cloudtally/internal/azure"
	"cloudtally/internal/logging"
)

// ClientConfig resolves the credential of the configured auth mode and
// returns the management client configuration. With certificate auth the
// subscription and management URL default to the publish settings file.
func (s *Settings) ClientConfig() (azure.ClientConfig, error) {
	cfg := azure.ClientConfig{
		SubscriptionID: s.Azure.SubscriptionID,
		ManagementURL:  s.Azure.ManagementURL,
		APIVersion:     s.Azure.APIVersion,
		Timeout:        s.Azure.Timeout,
		RateLimit:      s.Azure.RateLimit.Limiter(),
	}

	switch s.Azure.Auth {
	case AuthCertificate:
		publish, err := azure.ReadPublishSettings(s.Azure.PublishSettings, s.Azure.SubscriptionID)
		if err != nil {
			return azure.ClientConfig{}, err
		}
		cred, err := publish.Credential()
		if err != nil {
			return azure.ClientConfig{}, err
		}
		cfg.Credential = cred
		cfg.SubscriptionID = publish.SubscriptionID
		if publish.ManagementURL != "" && (cfg.ManagementURL == "" || cfg.ManagementURL == azure.DefaultManagementURL) {
			cfg.ManagementURL = publish.ManagementURL
		}
		logging.Debug("Using management certificate", map[string]interface{}{
			"subscription_id":   publish.SubscriptionID,
			"subscription_name": publish.SubscriptionName,
		})
	case AuthAzureAD:
		cred, err := azure.NewDefaultTokenCredential()
		if err != nil {
			return azure.ClientConfig{}, err
		}
		cfg.Credential = cred
		logging.Debug("Using Azure AD token credential", map[string]interface{}{
			"subscription_id": cfg.SubscriptionID,
		})
	default:
		return azure.ClientConfig{}, fmt.Errorf("unsupported auth mode %q", s.Azure.Auth)
	}

	if cfg.SubscriptionID == "" {
		return azure.ClientConfig{}, fmt.Errorf("no subscription ID configured")
	}
	return cfg, nil
}
