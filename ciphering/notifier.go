package ciphering

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"slices"

	"github.com/cybroslabs/dlms-session-go/base"
)

// CertificateType as used by security setup certificate handling.
type CertificateType byte

const (
	CertificateDigitalSignature CertificateType = 0
	CertificateKeyAgreement     CertificateType = 1
	CertificateTLS              CertificateType = 2
	CertificateOther            CertificateType = 3
)

// KeyKind tells which key material is requested.
type KeyKind byte

const (
	KeyBlockCipher KeyKind = iota
	KeyAuthentication
	KeyBroadcastBlockCipher
	KeyDedicated
	KeyPrivate // private key of this station, CertificateType tells the usage
	KeyPublic  // public key of SystemTitle, CertificateType tells the usage
)

var keyKindNames = [...]string{"block cipher", "authentication", "broadcast block cipher", "dedicated", "private", "public"}

func (k KeyKind) String() string {
	if int(k) < len(keyKindNames) {
		return keyKindNames[k]
	}
	return "unknown"
}

// CryptoOperation is an operation performed outside of this process, typically by HSM.
type CryptoOperation byte

const (
	OperationSign CryptoOperation = iota
	OperationAgree
)

func (o CryptoOperation) String() string {
	switch o {
	case OperationSign:
		return "sign"
	case OperationAgree:
		return "agree"
	default:
		return "unknown"
	}
}

// KeyRequest asks for key material which isn't held locally.
type KeyRequest struct {
	Kind            KeyKind
	Encrypt         bool
	Suite           base.SecuritySuite
	CertificateType CertificateType
	SystemTitle     []byte
}

// KeyMaterial answers KeyRequest, only the field matching the requested kind is consumed.
type KeyMaterial struct {
	Key        []byte
	PrivateKey *ecdsa.PrivateKey
	PublicKey  *ecdsa.PublicKey
}

// CryptoRequest asks to perform operation with a key which never leaves the notifier.
type CryptoRequest struct {
	Operation       CryptoOperation
	Encrypt         bool
	Suite           base.SecuritySuite
	CertificateType CertificateType
	SystemTitle     []byte
	Data            []byte           // data to sign
	PublicKey       *ecdsa.PublicKey // peer key to agree with
}

// Notifier supplies keys and crypto operations, calls may block and only block the calling session.
type Notifier interface {
	OnKey(ctx context.Context, req KeyRequest) (KeyMaterial, error)
	OnCrypto(ctx context.Context, req CryptoRequest) ([]byte, error)
}

func unavailable(format string, v ...any) error {
	return base.NewSecurityError(fmt.Errorf("%w: %s", ErrKeyUnavailable, fmt.Sprintf(format, v...)))
}

// symmetric resolves symmetric key, falling back to the notifier.
func (c *Cipher) symmetric(ctx context.Context, kind KeyKind, local []byte, encrypt bool, title []byte) ([]byte, error) {
	if local != nil {
		return local, nil
	}
	if c.notifier == nil {
		return nil, unavailable("%s key not set", kind)
	}
	km, err := c.notifier.OnKey(ctx, KeyRequest{
		Kind:        kind,
		Encrypt:     encrypt,
		Suite:       c.suite,
		SystemTitle: slices.Clone(title),
	})
	if err != nil {
		return nil, base.NewSecurityError(fmt.Errorf("%w: notifier: %w", ErrKeyUnavailable, err))
	}
	if km.Key == nil {
		return nil, unavailable("notifier returned no %s key", kind)
	}
	if err = checkkey(c.suite, km.Key); err != nil {
		return nil, base.NewSecurityError(fmt.Errorf("%w: notifier returned %s key: %w", ErrSuiteMismatch, kind, err))
	}
	c.dlogf("ciphering: %s key supplied by notifier", kind)
	return km.Key, nil
}

// publickey resolves peer public key from trusted certificates or the notifier.
func (c *Cipher) publickey(ctx context.Context, title []byte, ct CertificateType) (*ecdsa.PublicKey, error) {
	if cert := c.Certificate(title); cert != nil {
		if pub, ok := cert.PublicKey.(*ecdsa.PublicKey); ok {
			return pub, nil
		}
	}
	if c.notifier == nil {
		return nil, base.NewSecurityError(fmt.Errorf("%w: system title %X", ErrCertificateUnavailable, title))
	}
	km, err := c.notifier.OnKey(ctx, KeyRequest{
		Kind:            KeyPublic,
		Suite:           c.suite,
		CertificateType: ct,
		SystemTitle:     slices.Clone(title),
	})
	if err != nil {
		return nil, base.NewSecurityError(fmt.Errorf("%w: notifier: %w", ErrCertificateUnavailable, err))
	}
	if km.PublicKey == nil {
		return nil, base.NewSecurityError(fmt.Errorf("%w: notifier returned no public key for %X", ErrCertificateUnavailable, title))
	}
	return km.PublicKey, nil
}
