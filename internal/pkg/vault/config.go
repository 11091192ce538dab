package vault

import "fmt"

// Config는 Vault 클라이언트 설정입니다
type Config struct {
	// Vault 서버 주소
	Address string

	// 인증 토큰
	Token string

	// 인증 방법 (token, approle)
	AuthMethod string

	// AppRole 설정
	RoleID   string
	SecretID string

	// 네임스페이스
	Namespace string

	// TLS 설정
	TLSEnabled    bool
	TLSSkipVerify bool
	CACert        string

	// Transit 암호화 경로
	TransitPath string

	// 필드 암호화에 사용할 기본 키 이름. 컬렉션 정의가 키를 지정하지
	// 않으면 이 키를 사용합니다.
	DefaultKeyName string
}

// DefaultConfig는 기본 Vault 설정을 반환합니다
func DefaultConfig() *Config {
	return &Config{
		Address:        "http://localhost:8200",
		AuthMethod:     "token",
		TransitPath:    "transit",
		DefaultKeyName: "crud-service",
	}
}

// Validate는 설정을 검증합니다
func (c *Config) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("vault address is required")
	}

	switch c.AuthMethod {
	case "token":
		if c.Token == "" {
			return fmt.Errorf("vault token is required for token auth")
		}
	case "approle":
		if c.RoleID == "" || c.SecretID == "" {
			return fmt.Errorf("role_id and secret_id are required for approle auth")
		}
	default:
		return fmt.Errorf("unsupported auth method: %s", c.AuthMethod)
	}

	if c.TransitPath == "" {
		c.TransitPath = "transit"
	}

	return nil
}
