// Package ciphering holds per-association security material of a DLMS session
// and performs the transform of APDUs into glo/ded and general ciphered APDUs.
package ciphering

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/cybroslabs/dlms-session-go/base"
	"go.uber.org/zap"
)

const GCM_TAG_LENGTH = 12

type KeyAgreementScheme byte

const (
	KeyAgreementEphemeralUnified KeyAgreementScheme = 0
	KeyAgreementOnePassDH        KeyAgreementScheme = 1
	KeyAgreementStaticUnified    KeyAgreementScheme = 2
)

// SecurityPolicy bits as in security setup version 1.
type SecurityPolicy byte

const (
	PolicyAuthenticatedRequest    SecurityPolicy = 0x04
	PolicyEncryptedRequest        SecurityPolicy = 0x08
	PolicyDigitallySignedRequest  SecurityPolicy = 0x10
	PolicyAuthenticatedResponse   SecurityPolicy = 0x20
	PolicyEncryptedResponse       SecurityPolicy = 0x40
	PolicyDigitallySignedResponse SecurityPolicy = 0x80
)

var broadcastTitle = bytes.Repeat([]byte{0xff}, base.SystemTitleLength)

// IsBroadcast reports the broadcast/multicast system title.
func IsBroadcast(systemtitle []byte) bool {
	return bytes.Equal(systemtitle, broadcastTitle)
}

type CipheringSettings struct {
	Security                base.DlmsSecurity
	Suite                   base.SecuritySuite
	Policy                  SecurityPolicy
	SystemTitle             []byte
	RecipientSystemTitle    []byte // optional, learnt from AARE otherwise
	BlockCipherKey          []byte
	AuthenticationKey       []byte
	BroadcastBlockCipherKey []byte
	InvocationCounter       *uint32 // nil means start from zero
	KeyAgreementScheme      KeyAgreementScheme
	KeyAgreementKey         *ecdsa.PrivateKey
	SigningKey              *ecdsa.PrivateKey
	Notifier                Notifier
	ReplayGuard             *ReplayGuard // shared between sessions if set
	Logger                  *zap.SugaredLogger
}

func (s *CipheringSettings) Validate() error {
	if !s.Suite.Valid() {
		return fmt.Errorf("%w: unsupported security suite %d", base.ErrInvalidArgument, s.Suite)
	}
	if s.Security&^base.SecurityMask != 0 {
		return fmt.Errorf("%w: invalid security %02x", base.ErrInvalidArgument, byte(s.Security))
	}
	if len(s.SystemTitle) != base.SystemTitleLength {
		return fmt.Errorf("%w: systitle has to be 8 bytes long", base.ErrInvalidArgument)
	}
	if s.RecipientSystemTitle != nil && len(s.RecipientSystemTitle) != base.SystemTitleLength {
		return fmt.Errorf("%w: recipient systitle has to be 8 bytes long", base.ErrInvalidArgument)
	}
	for _, k := range []struct {
		name string
		key  []byte
	}{
		{"block cipher key", s.BlockCipherKey},
		{"authentication key", s.AuthenticationKey},
		{"broadcast block cipher key", s.BroadcastBlockCipherKey},
	} {
		if err := checkkey(s.Suite, k.key); err != nil {
			return fmt.Errorf("%s: %w", k.name, err)
		}
	}
	if err := checkcurve(s.Suite, s.KeyAgreementKey); err != nil {
		return fmt.Errorf("key agreement key: %w", err)
	}
	if err := checkcurve(s.Suite, s.SigningKey); err != nil {
		return fmt.Errorf("signing key: %w", err)
	}
	return nil
}

func checkkey(suite base.SecuritySuite, key []byte) error {
	if key == nil {
		return nil
	}
	if len(key) != suite.KeyLength() {
		return fmt.Errorf("%w: key has to be %d bytes long for suite %d", base.ErrInvalidArgument, suite.KeyLength(), suite)
	}
	return nil
}

func checkcurve(suite base.SecuritySuite, key *ecdsa.PrivateKey) error {
	if key == nil {
		return nil
	}
	c := curveOf(suite)
	if c == nil {
		return fmt.Errorf("%w: suite %d has no public key algorithms", base.ErrInvalidArgument, suite)
	}
	if key.Curve != c {
		return fmt.Errorf("%w: curve %s does not fit suite %d", base.ErrInvalidArgument, key.Curve.Params().Name, suite)
	}
	return nil
}

func curveOf(suite base.SecuritySuite) elliptic.Curve {
	switch suite {
	case base.SecuritySuite1:
		return elliptic.P256()
	case base.SecuritySuite2:
		return elliptic.P384()
	default:
		return nil
	}
}

// Cipher is the security state of one association. It is not safe for concurrent use,
// except for the replay guard which may be shared.
type Cipher struct {
	logger     *zap.SugaredLogger
	security   base.DlmsSecurity
	suite      base.SecuritySuite
	policy     SecurityPolicy
	title      []byte
	recipient  []byte
	configured []byte // recipient title given in settings, it survives Reset

	blockCipherKey    []byte
	authenticationKey []byte
	broadcastKey      []byte
	dedicatedKey      []byte
	ic                uint32

	scheme       KeyAgreementScheme
	keyAgreement *ecdsa.PrivateKey
	ephemeral    *ecdsa.PrivateKey
	signing      *ecdsa.PrivateKey
	certificates map[string]*x509.Certificate

	notifier Notifier
	replay   *ReplayGuard
}

// New returns cipher with security none and zero system title.
func New() *Cipher {
	return &Cipher{
		title:        make([]byte, base.SystemTitleLength),
		certificates: make(map[string]*x509.Certificate),
		replay:       NewReplayGuard(),
	}
}

func NewCipher(settings *CipheringSettings) (*Cipher, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	c := &Cipher{
		logger:            settings.Logger,
		security:          settings.Security,
		suite:             settings.Suite,
		policy:            settings.Policy,
		title:             slices.Clone(settings.SystemTitle),
		recipient:         slices.Clone(settings.RecipientSystemTitle),
		configured:        slices.Clone(settings.RecipientSystemTitle),
		blockCipherKey:    slices.Clone(settings.BlockCipherKey),
		authenticationKey: slices.Clone(settings.AuthenticationKey),
		broadcastKey:      slices.Clone(settings.BroadcastBlockCipherKey),
		scheme:            settings.KeyAgreementScheme,
		keyAgreement:      settings.KeyAgreementKey,
		signing:           settings.SigningKey,
		certificates:      make(map[string]*x509.Certificate),
		notifier:          settings.Notifier,
		replay:            settings.ReplayGuard,
	}
	if settings.InvocationCounter != nil {
		c.ic = *settings.InvocationCounter
	}
	if c.replay == nil {
		c.replay = NewReplayGuard()
	}
	return c, nil
}

func (c *Cipher) SetLogger(logger *zap.SugaredLogger) {
	c.logger = logger
}

func (c *Cipher) logf(format string, v ...any) {
	if c.logger != nil {
		c.logger.Infof(format, v...)
	}
}

func (c *Cipher) dlogf(format string, v ...any) {
	if c.logger != nil {
		c.logger.Debugf(format, v...)
	}
}

func (c *Cipher) IsCiphered() bool {
	return c.security != base.SecurityNone
}

func (c *Cipher) Security() base.DlmsSecurity {
	return c.security
}

func (c *Cipher) SetSecurity(s base.DlmsSecurity) error {
	if s&^base.SecurityMask != 0 {
		return fmt.Errorf("%w: invalid security %02x", base.ErrInvalidArgument, byte(s))
	}
	c.security = s
	return nil
}

func (c *Cipher) SecuritySuite() base.SecuritySuite {
	return c.suite
}

// SetSecuritySuite changes the suite, keys which do not fit the new suite are dropped.
func (c *Cipher) SetSecuritySuite(s base.SecuritySuite) error {
	if !s.Valid() {
		return fmt.Errorf("%w: unsupported security suite %d", base.ErrInvalidArgument, s)
	}
	c.suite = s
	for _, k := range []*[]byte{&c.blockCipherKey, &c.authenticationKey, &c.broadcastKey, &c.dedicatedKey} {
		if checkkey(s, *k) != nil {
			*k = nil
		}
	}
	return nil
}

func (c *Cipher) SecurityPolicy() SecurityPolicy {
	return c.policy
}

func (c *Cipher) SetSecurityPolicy(p SecurityPolicy) {
	c.policy = p
}

func (c *Cipher) SystemTitle() []byte {
	return slices.Clone(c.title)
}

func (c *Cipher) SetSystemTitle(title []byte) error {
	if len(title) != base.SystemTitleLength {
		return fmt.Errorf("%w: systitle has to be 8 bytes long", base.ErrInvalidArgument)
	}
	c.title = slices.Clone(title)
	return nil
}

// RecipientSystemTitle returns the peer's system title, nil if not known yet.
func (c *Cipher) RecipientSystemTitle() []byte {
	return slices.Clone(c.recipient)
}

func (c *Cipher) SetRecipientSystemTitle(title []byte) error {
	if title != nil && len(title) != base.SystemTitleLength {
		return fmt.Errorf("%w: recipient systitle has to be 8 bytes long", base.ErrInvalidArgument)
	}
	c.recipient = slices.Clone(title)
	return nil
}

func (c *Cipher) BlockCipherKey() []byte {
	return slices.Clone(c.blockCipherKey)
}

func (c *Cipher) SetBlockCipherKey(key []byte) error {
	return c.setkey(&c.blockCipherKey, key)
}

func (c *Cipher) AuthenticationKey() []byte {
	return slices.Clone(c.authenticationKey)
}

func (c *Cipher) SetAuthenticationKey(key []byte) error {
	return c.setkey(&c.authenticationKey, key)
}

func (c *Cipher) BroadcastBlockCipherKey() []byte {
	return slices.Clone(c.broadcastKey)
}

func (c *Cipher) SetBroadcastBlockCipherKey(key []byte) error {
	return c.setkey(&c.broadcastKey, key)
}

func (c *Cipher) DedicatedKey() []byte {
	return slices.Clone(c.dedicatedKey)
}

func (c *Cipher) SetDedicatedKey(key []byte) error {
	return c.setkey(&c.dedicatedKey, key)
}

func (c *Cipher) setkey(dst *[]byte, key []byte) error {
	if err := checkkey(c.suite, key); err != nil {
		return err
	}
	*dst = slices.Clone(key)
	return nil
}

// InvocationCounter returns the last used outgoing counter.
func (c *Cipher) InvocationCounter() uint32 {
	return c.ic
}

// SetInvocationCounter sets the outgoing counter, it can't be decreased.
func (c *Cipher) SetInvocationCounter(v uint32) error {
	if v < c.ic {
		return fmt.Errorf("%w: invocation counter can't be decreased from %d to %d", base.ErrInvalidArgument, c.ic, v)
	}
	c.ic = v
	return nil
}

func (c *Cipher) nextcounter() (uint32, error) {
	if c.ic == math.MaxUint32 {
		return 0, base.NewSecurityError(ErrCounterExhausted)
	}
	c.ic++
	return c.ic, nil
}

func (c *Cipher) KeyAgreementScheme() KeyAgreementScheme {
	return c.scheme
}

func (c *Cipher) SetKeyAgreementScheme(s KeyAgreementScheme) error {
	if s > KeyAgreementStaticUnified {
		return fmt.Errorf("%w: invalid key agreement scheme %d", base.ErrInvalidArgument, s)
	}
	c.scheme = s
	return nil
}

func (c *Cipher) KeyAgreementKeyPair() *ecdsa.PrivateKey {
	return c.keyAgreement
}

func (c *Cipher) SetKeyAgreementKeyPair(key *ecdsa.PrivateKey) error {
	if err := checkcurve(c.suite, key); err != nil {
		return err
	}
	c.keyAgreement = key
	return nil
}

func (c *Cipher) EphemeralKeyPair() *ecdsa.PrivateKey {
	return c.ephemeral
}

func (c *Cipher) SetEphemeralKeyPair(key *ecdsa.PrivateKey) error {
	if err := checkcurve(c.suite, key); err != nil {
		return err
	}
	c.ephemeral = key
	return nil
}

func (c *Cipher) SigningKeyPair() *ecdsa.PrivateKey {
	return c.signing
}

func (c *Cipher) SetSigningKeyPair(key *ecdsa.PrivateKey) error {
	if err := checkcurve(c.suite, key); err != nil {
		return err
	}
	c.signing = key
	return nil
}

// AddCertificate trusts the certificate, its subject common name has to be hex encoded system title.
func (c *Cipher) AddCertificate(cert *x509.Certificate) error {
	if cert == nil {
		return fmt.Errorf("%w: nil certificate", base.ErrInvalidArgument)
	}
	if _, ok := cert.PublicKey.(*ecdsa.PublicKey); !ok {
		return fmt.Errorf("%w: certificate public key is not ecdsa", base.ErrInvalidArgument)
	}
	title, err := hex.DecodeString(cert.Subject.CommonName)
	if err != nil || len(title) != base.SystemTitleLength {
		return fmt.Errorf("%w: certificate common name %q is not a system title", base.ErrInvalidArgument, cert.Subject.CommonName)
	}
	c.certificates[titlekey(title)] = cert
	return nil
}

// Certificate returns trusted certificate of the system title, nil if unknown.
func (c *Cipher) Certificate(systemtitle []byte) *x509.Certificate {
	return c.certificates[titlekey(systemtitle)]
}

func titlekey(title []byte) string {
	return strings.ToUpper(hex.EncodeToString(title))
}

func (c *Cipher) SetNotifier(n Notifier) {
	c.notifier = n
}

// ReplayGuard returns the anti-replay state used by Decrypt.
func (c *Cipher) ReplayGuard() *ReplayGuard {
	return c.replay
}

// Reset drops per-association material, long-lived keys and counters are kept.
// Recipient title learnt during the association falls back to the configured one.
func (c *Cipher) Reset() {
	c.dedicatedKey = nil
	c.recipient = slices.Clone(c.configured)
	c.ephemeral = nil
	c.dlogf("ciphering: association material cleared")
}
