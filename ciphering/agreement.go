package ciphering

import (
	"context"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"hash"
	"math/big"
	"slices"

	"github.com/cybroslabs/dlms-session-go/base"
)

var (
	algorithmAESGCM128 = []byte{0x60, 0x85, 0x74, 0x05, 0x08, 0x03, 0x00}
	algorithmAESGCM256 = []byte{0x60, 0x85, 0x74, 0x05, 0x08, 0x03, 0x01}
)

func suitehash(suite base.SecuritySuite) func() hash.Hash {
	if suite == base.SecuritySuite2 {
		return sha512.New384
	}
	return sha256.New
}

func (c *Cipher) publicsuite() error {
	if curveOf(c.suite) == nil {
		return base.NewSecurityError(fmt.Errorf("%w: suite %d has no public key algorithms", ErrSuiteMismatch, c.suite))
	}
	return nil
}

func (c *Cipher) checkpeer(peer *ecdsa.PublicKey) error {
	if peer == nil {
		return fmt.Errorf("%w: nil public key", base.ErrInvalidArgument)
	}
	if peer.Curve != curveOf(c.suite) {
		return base.NewSecurityError(fmt.Errorf("%w: public key curve %s", ErrSuiteMismatch, peer.Curve.Params().Name))
	}
	return nil
}

// GenerateEphemeralKeyPair creates ephemeral key pair of the association and returns its public part.
func (c *Cipher) GenerateEphemeralKeyPair() (*ecdsa.PublicKey, error) {
	if err := c.publicsuite(); err != nil {
		return nil, err
	}
	k, err := ecdsa.GenerateKey(curveOf(c.suite), rand.Reader)
	if err != nil {
		return nil, err
	}
	c.ephemeral = k
	return &k.PublicKey, nil
}

// Agree derives a key with the peer's public key using the configured key agreement scheme.
// Initiator is party U of the key derivation. The derived key becomes the dedicated key.
func (c *Cipher) Agree(ctx context.Context, peer *ecdsa.PublicKey, initiator bool) ([]byte, error) {
	if err := c.publicsuite(); err != nil {
		return nil, err
	}
	if err := c.checkpeer(peer); err != nil {
		return nil, err
	}
	if c.recipient == nil {
		return nil, base.NewSecurityError(ErrSystemTitleUnknown)
	}

	local := c.keyAgreement
	ct := CertificateKeyAgreement
	if c.scheme == KeyAgreementEphemeralUnified {
		local = c.ephemeral
		ct = CertificateOther
	}

	var z []byte
	if local != nil {
		priv, err := local.ECDH()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", base.ErrInvalidArgument, err)
		}
		pub, err := peer.ECDH()
		if err != nil {
			return nil, base.NewSecurityError(fmt.Errorf("%w: %w", ErrSuiteMismatch, err))
		}
		if z, err = priv.ECDH(pub); err != nil {
			return nil, base.NewSecurityError(fmt.Errorf("%w: %w", ErrAuthenticationFailed, err))
		}
	} else {
		if c.notifier == nil {
			return nil, unavailable("no private key for key agreement")
		}
		var err error
		z, err = c.notifier.OnCrypto(ctx, CryptoRequest{
			Operation:       OperationAgree,
			Suite:           c.suite,
			CertificateType: ct,
			SystemTitle:     slices.Clone(c.title),
			PublicKey:       peer,
		})
		if err != nil {
			return nil, base.NewSecurityError(fmt.Errorf("%w: notifier: %w", ErrKeyUnavailable, err))
		}
		if len(z) == 0 {
			return nil, unavailable("notifier returned no shared secret")
		}
	}

	alg := algorithmAESGCM128
	if c.suite == base.SecuritySuite2 {
		alg = algorithmAESGCM256
	}
	u, v := c.title, c.recipient
	if !initiator {
		u, v = v, u
	}
	other := append(append(append(make([]byte, 0, len(alg)+len(u)+len(v)), alg...), u...), v...)
	key := concatkdf(suitehash(c.suite), z, c.suite.KeyLength(), other)
	c.dedicatedKey = key
	c.logf("ciphering: dedicated key agreed with %X", c.recipient)
	return slices.Clone(key), nil
}

// concatkdf is the single step key derivation function of NIST SP 800-56A.
func concatkdf(h func() hash.Hash, z []byte, keylen int, otherinfo []byte) []byte {
	var out []byte
	var cnt [4]byte
	for i := uint32(1); len(out) < keylen; i++ {
		d := h()
		binary.BigEndian.PutUint32(cnt[:], i)
		d.Write(cnt[:])
		d.Write(z)
		d.Write(otherinfo)
		out = d.Sum(out)
	}
	return out[:keylen]
}

func (c *Cipher) scalarsize() int {
	return (curveOf(c.suite).Params().BitSize + 7) / 8
}

// Sign signs data with the signing key, the signature is r | s of fixed width.
func (c *Cipher) Sign(ctx context.Context, data []byte) ([]byte, error) {
	if err := c.publicsuite(); err != nil {
		return nil, err
	}
	if c.signing == nil {
		if c.notifier == nil {
			return nil, unavailable("no signing key")
		}
		sig, err := c.notifier.OnCrypto(ctx, CryptoRequest{
			Operation:       OperationSign,
			Encrypt:         true,
			Suite:           c.suite,
			CertificateType: CertificateDigitalSignature,
			SystemTitle:     slices.Clone(c.title),
			Data:            slices.Clone(data),
		})
		if err != nil {
			return nil, base.NewSecurityError(fmt.Errorf("%w: notifier: %w", ErrKeyUnavailable, err))
		}
		if len(sig) != 2*c.scalarsize() {
			return nil, unavailable("notifier returned signature of %d bytes", len(sig))
		}
		return sig, nil
	}

	d := suitehash(c.suite)()
	d.Write(data)
	r, s, err := ecdsa.Sign(rand.Reader, c.signing, d.Sum(nil))
	if err != nil {
		return nil, fmt.Errorf("unable to sign with ecdsa: %w", err)
	}
	n := c.scalarsize()
	sig := make([]byte, 2*n)
	r.FillBytes(sig[:n])
	s.FillBytes(sig[n:])
	return sig, nil
}

// Verify checks r | s signature of data.
func (c *Cipher) Verify(pub *ecdsa.PublicKey, data []byte, sig []byte) error {
	if err := c.publicsuite(); err != nil {
		return err
	}
	if err := c.checkpeer(pub); err != nil {
		return err
	}
	n := c.scalarsize()
	if len(sig) != 2*n {
		return base.NewSecurityError(fmt.Errorf("%w: invalid signature length %d", ErrAuthenticationFailed, len(sig)))
	}
	d := suitehash(c.suite)()
	d.Write(data)
	var r, s big.Int
	r.SetBytes(sig[:n])
	s.SetBytes(sig[n:])
	if !ecdsa.Verify(pub, d.Sum(nil), &r, &s) {
		return base.NewSecurityError(fmt.Errorf("%w: signature mismatch", ErrAuthenticationFailed))
	}
	return nil
}

// VerifyFrom checks signature made by the owner of the system title, using trusted certificates or the notifier.
func (c *Cipher) VerifyFrom(ctx context.Context, systemtitle []byte, data []byte, sig []byte) error {
	if err := c.publicsuite(); err != nil {
		return err
	}
	pub, err := c.publickey(ctx, systemtitle, CertificateDigitalSignature)
	if err != nil {
		return err
	}
	return c.Verify(pub, data, sig)
}
