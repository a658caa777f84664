package sshd

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	gossh "golang.org/x/crypto/ssh"
)

// DefaultHostKeyBits is the RSA key size for generated host keys.
const DefaultHostKeyBits = 4096

// LoadOrCreateHostKey returns the server host key signer, generating
// and persisting a new RSA key at path on first start so clients see a
// stable host identity across restarts.
func LoadOrCreateHostKey(path string, bits int) (gossh.Signer, error) {
	if bits <= 0 {
		bits = DefaultHostKeyBits
	}

	pemBytes, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read host key: %w", err)
		}

		key, err := rsa.GenerateKey(rand.Reader, bits)
		if err != nil {
			return nil, fmt.Errorf("generate host key: %w", err)
		}
		if err := key.Validate(); err != nil {
			return nil, fmt.Errorf("generate host key: %w", err)
		}

		pemBytes = pem.EncodeToMemory(&pem.Block{
			Type:  "RSA PRIVATE KEY",
			Bytes: x509.MarshalPKCS1PrivateKey(key),
		})
		if err := os.WriteFile(path, pemBytes, 0600); err != nil {
			return nil, fmt.Errorf("save host key: %w", err)
		}
	}

	signer, err := gossh.ParsePrivateKey(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("parse host key: %w", err)
	}
	return signer, nil
}
