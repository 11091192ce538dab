package vault

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"

	vault "github.com/hashicorp/vault/api"

	"github.com/mia-platform/crud-service-sub002/internal/pkg/logger"
)

// Client는 Vault 클라이언트 래퍼입니다.
// Transit 엔진을 통한 필드 단위 암복호화에 사용됩니다.
type Client struct {
	client *vault.Client
	config *Config
}

// NewClient는 새로운 Vault 클라이언트를 생성합니다
func NewClient(cfg *Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid vault config: %w", err)
	}

	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = cfg.Address

	if cfg.TLSEnabled {
		tlsConfig := &tls.Config{
			InsecureSkipVerify: cfg.TLSSkipVerify,
		}

		if cfg.CACert != "" {
			caCert, err := os.ReadFile(cfg.CACert)
			if err != nil {
				return nil, fmt.Errorf("failed to read CA cert: %w", err)
			}
			caCertPool := x509.NewCertPool()
			caCertPool.AppendCertsFromPEM(caCert)
			tlsConfig.RootCAs = caCertPool
		}

		vaultConfig.HttpClient.Transport = &http.Transport{
			TLSClientConfig: tlsConfig,
		}
	}

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}

	vaultClient := &Client{
		client: client,
		config: cfg,
	}

	if err := vaultClient.authenticate(); err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}

	logger.Info(context.Background(), "vault client initialized successfully",
		logger.Field("address", cfg.Address),
		logger.Field("auth_method", cfg.AuthMethod),
	)

	return vaultClient, nil
}

// authenticate는 Vault에 인증합니다
func (c *Client) authenticate() error {
	switch c.config.AuthMethod {
	case "token":
		c.client.SetToken(c.config.Token)
		// 토큰 유효성 확인
		if _, err := c.client.Auth().Token().LookupSelf(); err != nil {
			return fmt.Errorf("invalid token: %w", err)
		}

	case "approle":
		data := map[string]interface{}{
			"role_id":   c.config.RoleID,
			"secret_id": c.config.SecretID,
		}
		secret, err := c.client.Logical().Write("auth/approle/login", data)
		if err != nil {
			return fmt.Errorf("approle login failed: %w", err)
		}
		if secret == nil || secret.Auth == nil {
			return fmt.Errorf("approle login returned no auth info")
		}
		c.client.SetToken(secret.Auth.ClientToken)

	default:
		return fmt.Errorf("unsupported auth method: %s", c.config.AuthMethod)
	}

	return nil
}

// HealthCheck는 Vault 연결 상태를 확인합니다
func (c *Client) HealthCheck(ctx context.Context) error {
	health, err := c.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}

	if health.Sealed {
		return fmt.Errorf("vault is sealed")
	}

	return nil
}

// DefaultKeyName은 설정된 기본 암호화 키 이름을 반환합니다
func (c *Client) DefaultKeyName() string {
	return c.config.DefaultKeyName
}
