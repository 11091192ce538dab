package vault

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	vaultapi "github.com/hashicorp/vault/api"
	"go.uber.org/zap"

	"github.com/mia-platform/crud-service-sub002/internal/domain/definition"
	"github.com/mia-platform/crud-service-sub002/internal/pkg/logger"
)

// 암호문 접두사. Transit 엔진이 붙이는 형태를 그대로 사용하여
// 이미 암호화된 값을 식별합니다.
const ciphertextPrefix = "vault:"

// Encrypt는 데이터를 암호화합니다 (Transit Engine).
// searchable이 true이면 convergent 모드로 암호화하여 동일한 평문이
// 동일한 암호문을 생성하도록 합니다. 이렇게 해야 암호화된 필드에
// 동등 질의가 가능합니다.
func (c *Client) Encrypt(ctx context.Context, keyName string, plaintext []byte, searchable bool) (string, error) {
	if keyName == "" {
		return "", fmt.Errorf("key name is required")
	}

	path := fmt.Sprintf("%s/encrypt/%s", c.config.TransitPath, keyName)
	data := map[string]interface{}{
		"plaintext": base64.StdEncoding.EncodeToString(plaintext),
	}
	if searchable {
		// convergent 키는 파생 컨텍스트가 필요합니다
		data["context"] = base64.StdEncoding.EncodeToString([]byte(keyName))
		data["convergent_encryption"] = true
	}

	secret, err := c.client.Logical().WriteWithContext(ctx, path, data)
	if err != nil {
		logger.Error(ctx, "failed to encrypt data",
			logger.Field("key_name", keyName),
			zap.Error(err),
		)
		return "", fmt.Errorf("failed to encrypt data: %w", err)
	}

	ciphertext, ok := secretString(secret, "ciphertext")
	if !ok {
		return "", fmt.Errorf("encryption returned no ciphertext")
	}
	return ciphertext, nil
}

// Decrypt는 데이터를 복호화합니다 (Transit Engine)
func (c *Client) Decrypt(ctx context.Context, keyName string, ciphertext string, searchable bool) ([]byte, error) {
	if keyName == "" {
		return nil, fmt.Errorf("key name is required")
	}
	if ciphertext == "" {
		return nil, fmt.Errorf("ciphertext is required")
	}

	path := fmt.Sprintf("%s/decrypt/%s", c.config.TransitPath, keyName)
	data := map[string]interface{}{
		"ciphertext": ciphertext,
	}
	if searchable {
		data["context"] = base64.StdEncoding.EncodeToString([]byte(keyName))
	}

	secret, err := c.client.Logical().WriteWithContext(ctx, path, data)
	if err != nil {
		logger.Error(ctx, "failed to decrypt data",
			logger.Field("key_name", keyName),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to decrypt data: %w", err)
	}

	encoded, ok := secretString(secret, "plaintext")
	if !ok {
		return nil, fmt.Errorf("decryption returned no plaintext")
	}

	plaintext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode plaintext: %w", err)
	}
	return plaintext, nil
}

func secretString(secret *vaultapi.Secret, key string) (string, bool) {
	if secret == nil || secret.Data == nil {
		return "", false
	}
	value, ok := secret.Data[key].(string)
	return value, ok
}

// FieldCipher는 컬렉션 정의의 암호화 설정에 따라 문서의 필드를
// 암복호화합니다. Vault가 구성되지 않은 경우 nil 클라이언트로 생성할 수
// 있으며, 그 경우 모든 연산은 무시됩니다.
type FieldCipher struct {
	client *Client
}

// NewFieldCipher는 새로운 필드 암호화기를 생성합니다
func NewFieldCipher(client *Client) *FieldCipher {
	return &FieldCipher{client: client}
}

// Enabled는 실제 Vault 클라이언트가 연결되어 있는지 반환합니다
func (f *FieldCipher) Enabled() bool {
	return f != nil && f.client != nil
}

// EncryptDocument는 암호화 대상 필드의 값을 암호문으로 치환합니다
func (f *FieldCipher) EncryptDocument(ctx context.Context, coll *definition.Collection, doc map[string]interface{}) error {
	if !f.Enabled() {
		return nil
	}

	for name, enc := range coll.EncryptedFields() {
		raw, ok := doc[name]
		if !ok || raw == nil {
			continue
		}
		value, ok := raw.(string)
		if !ok {
			return fmt.Errorf("encrypted field %q must be a string", name)
		}
		if strings.HasPrefix(value, ciphertextPrefix) {
			continue
		}

		ciphertext, err := f.client.Encrypt(ctx, f.client.DefaultKeyName(), []byte(value), enc.Searchable)
		if err != nil {
			return err
		}
		doc[name] = ciphertext
	}
	return nil
}

// DecryptDocument는 암호화된 필드의 암호문을 평문으로 치환합니다
func (f *FieldCipher) DecryptDocument(ctx context.Context, coll *definition.Collection, doc map[string]interface{}) error {
	if !f.Enabled() {
		return nil
	}

	for name, enc := range coll.EncryptedFields() {
		raw, ok := doc[name]
		if !ok || raw == nil {
			continue
		}
		value, ok := raw.(string)
		if !ok || !strings.HasPrefix(value, ciphertextPrefix) {
			continue
		}

		plaintext, err := f.client.Decrypt(ctx, f.client.DefaultKeyName(), value, enc.Searchable)
		if err != nil {
			return err
		}
		doc[name] = string(plaintext)
	}
	return nil
}

// EncryptQueryValue는 검색 가능한 암호화 필드의 질의 값을 암호문으로
// 변환합니다. convergent 모드에서만 동등 비교가 성립합니다.
func (f *FieldCipher) EncryptQueryValue(ctx context.Context, value string) (string, error) {
	if !f.Enabled() {
		return value, nil
	}
	return f.client.Encrypt(ctx, f.client.DefaultKeyName(), []byte(value), true)
}
