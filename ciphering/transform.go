package ciphering

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/cybroslabs/dlms-session-go/base"
	"golang.org/x/crypto/cryptobyte"
)

// Encrypt increments the invocation counter and returns the ciphered APDU
// tag | [08 title] | length | SC | IC | ciphered content [| auth tag].
// Tag has to be glo/ded ciphered service tag or general glo/ded ciphering.
// With dedicated key set glo tags are sent as ded ones, glo-initiate has no ded form and stays global.
func (c *Cipher) Encrypt(ctx context.Context, tag base.CosemTag, apdu []byte) ([]byte, error) {
	if !c.IsCiphered() {
		return nil, fmt.Errorf("%w: security none, nothing to cipher", base.ErrInvalidArgument)
	}
	general := tag.IsGeneral()
	if tag == base.TagGeneralCiphering || !tag.IsCiphered() {
		return nil, fmt.Errorf("%w: tag %v is not a ciphering tag", base.ErrInvalidArgument, tag)
	}
	if apdu == nil {
		return nil, fmt.Errorf("%w: apdu is nil", base.ErrInvalidArgument)
	}
	if c.dedicatedKey != nil {
		tag = dedicatedtag(tag)
	}

	key, err := c.resolvekey(ctx, tag.IsDedicated(), true, c.recipient)
	if err != nil {
		return nil, err
	}
	var ak []byte
	if c.security&base.SecurityAuthentication != 0 {
		if ak, err = c.symmetric(ctx, KeyAuthentication, c.authenticationKey, true, c.recipient); err != nil {
			return nil, err
		}
	}
	ic, err := c.nextcounter()
	if err != nil {
		return nil, err
	}

	sc := byte(c.security) | byte(c.suite)
	content, err := seal(key, ak, sc, nonce(c.title, ic), apdu)
	if err != nil {
		return nil, err
	}

	b := cryptobyte.NewBuilder(make([]byte, 0, len(content)+20))
	b.AddUint8(byte(tag))
	if general {
		b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
			b.AddBytes(c.title)
		})
	}
	b.AddBytes(base.AppendLength(nil, uint(5+len(content))))
	b.AddUint8(sc)
	b.AddUint32(ic)
	b.AddBytes(content)
	ret, err := b.Bytes()
	if err != nil {
		return nil, err
	}
	c.dlogf("ciphering: %s", base.LogHex(fmt.Sprintf("encrypted %v ic %d", tag, ic), ret))
	return ret, nil
}

// Decrypt verifies and deciphers an APDU produced by the peer, returned tag is the ciphered tag of the frame.
// Anti-replay state is updated only when the content is authentic, encryption only frames are checked against it
// but never update it.
func (c *Cipher) Decrypt(ctx context.Context, frame []byte) (base.CosemTag, []byte, error) {
	h, err := parseheader(frame)
	if err != nil {
		return 0, nil, err
	}
	title := h.title
	if title == nil {
		if c.recipient == nil {
			return h.tag, nil, base.NewSecurityError(ErrSystemTitleUnknown)
		}
		title = c.recipient
	}

	if base.SecuritySuite(h.sc&base.SecuritySuiteIdMask) != c.suite {
		return h.tag, nil, base.NewSecurityError(fmt.Errorf("%w: frame suite %d, expected %d", ErrSuiteMismatch, h.sc&base.SecuritySuiteIdMask, c.suite))
	}
	sec := base.DlmsSecurity(h.sc & base.SecurityMask)
	if sec == base.SecurityNone || sec != c.security {
		return h.tag, nil, base.NewSecurityError(fmt.Errorf("%w: frame security %v, expected %v", ErrSecurityMismatch, sec, c.security))
	}
	if err = c.replay.Check(title, h.ic); err != nil {
		c.logf("ciphering: replay rejected: %v", err)
		return h.tag, nil, err
	}

	key, err := c.resolvekey(ctx, h.tag.IsDedicated(), false, title)
	if err != nil {
		return h.tag, nil, err
	}
	var ak []byte
	if sec&base.SecurityAuthentication != 0 {
		if ak, err = c.symmetric(ctx, KeyAuthentication, c.authenticationKey, false, title); err != nil {
			return h.tag, nil, err
		}
	}
	plain, err := open(key, ak, h.sc, nonce(title, h.ic), h.content)
	if err != nil {
		return h.tag, nil, err
	}
	if sec&base.SecurityAuthentication == 0 {
		// counter of unauthenticated content can't move the replay state
		c.dlogf("ciphering: %s", base.LogHex(fmt.Sprintf("decrypted unauthenticated %v ic %d", h.tag, h.ic), plain))
		return h.tag, plain, nil
	}
	if err = c.replay.Accept(title, h.ic); err != nil {
		c.logf("ciphering: replay rejected: %v", err)
		return h.tag, nil, err
	}
	c.dlogf("ciphering: %s", base.LogHex(fmt.Sprintf("decrypted %v ic %d", h.tag, h.ic), plain))
	return h.tag, plain, nil
}

// resolvekey picks dedicated, broadcast or block cipher key in this order.
func (c *Cipher) resolvekey(ctx context.Context, dedicated bool, encrypt bool, title []byte) ([]byte, error) {
	var key []byte
	var err error
	switch {
	case dedicated:
		key, err = c.symmetric(ctx, KeyDedicated, c.dedicatedKey, encrypt, title)
	case IsBroadcast(c.recipient):
		key, err = c.symmetric(ctx, KeyBroadcastBlockCipher, c.broadcastKey, encrypt, title)
	default:
		key, err = c.symmetric(ctx, KeyBlockCipher, c.blockCipherKey, encrypt, title)
	}
	if err != nil {
		return nil, err
	}
	if len(key) != c.suite.KeyLength() {
		return nil, base.NewSecurityError(fmt.Errorf("%w: key length %d", ErrSuiteMismatch, len(key)))
	}
	return key, nil
}

// dedicatedtag maps glo service tag to its ded form, other tags are returned as they are.
func dedicatedtag(tag base.CosemTag) base.CosemTag {
	if tag == base.TagGeneralGloCiphering {
		return base.TagGeneralDedCiphering
	}
	if p, ok := base.PlainTag(tag); ok {
		if d, ok := base.CipheredTag(p, true); ok {
			return d
		}
	}
	return tag
}

type header struct {
	tag     base.CosemTag
	title   []byte
	sc      byte
	ic      uint32
	content []byte
}

func malformed(format string, v ...any) error {
	return base.NewFramingError(fmt.Errorf("%w: %s", ErrMalformedCipheredAPDU, fmt.Sprintf(format, v...)))
}

func parseheader(frame []byte) (h header, err error) {
	s := cryptobyte.String(frame)
	var t uint8
	if !s.ReadUint8(&t) {
		return h, malformed("empty apdu")
	}
	h.tag = base.CosemTag(t)
	switch {
	case h.tag.IsGeneral():
		var title cryptobyte.String
		if !s.ReadUint8LengthPrefixed(&title) {
			return h, malformed("no space for system title")
		}
		if len(title) != base.SystemTitleLength {
			return h, malformed("invalid system title length %d", len(title))
		}
		h.title = slices.Clone([]byte(title))
	case h.tag.IsCiphered() && h.tag != base.TagGeneralCiphering:
	default:
		return h, malformed("tag %v is not ciphered", h.tag)
	}
	n, ok := base.ReadLength(&s)
	if !ok {
		return h, malformed("invalid length")
	}
	if uint(len(s)) < n {
		return h, malformed("announced %d bytes, have %d", n, len(s))
	}
	if n < 5 {
		return h, malformed("no space for security header")
	}
	var raw []byte
	s.ReadBytes(&raw, int(n))
	body := cryptobyte.String(raw)
	if !body.ReadUint8(&h.sc) || !body.ReadUint32(&h.ic) {
		return h, malformed("no space for security header")
	}
	h.content = []byte(body)
	return h, nil
}

func nonce(title []byte, ic uint32) []byte {
	iv := make([]byte, 12)
	copy(iv, title)
	binary.BigEndian.PutUint32(iv[8:], ic)
	return iv
}

func newaead(key []byte) (cipher.AEAD, cipher.Block, error) {
	blk, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", base.ErrInvalidArgument, err)
	}
	aead, err := cipher.NewGCMWithTagSize(blk, GCM_TAG_LENGTH)
	if err != nil {
		return nil, nil, err
	}
	return aead, blk, nil
}

// ctr is GCM keystream without authentication, counter starts at 2 as in GCM.
func ctr(blk cipher.Block, iv []byte, dst []byte, src []byte) {
	icb := make([]byte, aes.BlockSize)
	copy(icb, iv)
	icb[15] = 2
	cipher.NewCTR(blk, icb).XORKeyStream(dst, src)
}

func seal(key, ak []byte, sc byte, iv []byte, apdu []byte) ([]byte, error) {
	aead, blk, err := newaead(key)
	if err != nil {
		return nil, err
	}
	switch base.DlmsSecurity(sc & base.SecurityMask) {
	case base.SecurityAuthentication:
		aad := make([]byte, 0, 1+len(ak)+len(apdu))
		aad = append(aad, sc)
		aad = append(aad, ak...)
		aad = append(aad, apdu...)
		tag := aead.Seal(nil, iv, nil, aad)
		return append(slices.Clone(apdu), tag...), nil
	case base.SecurityEncryption:
		ret := make([]byte, len(apdu))
		ctr(blk, iv, ret, apdu)
		return ret, nil
	case base.SecurityAuthenticationEncryption:
		aad := append([]byte{sc}, ak...)
		return aead.Seal(nil, iv, apdu, aad), nil
	}
	return nil, fmt.Errorf("%w: unsupported security control byte: %02X", base.ErrInvalidArgument, sc)
}

func open(key, ak []byte, sc byte, iv []byte, content []byte) ([]byte, error) {
	aead, blk, err := newaead(key)
	if err != nil {
		return nil, err
	}
	switch base.DlmsSecurity(sc & base.SecurityMask) {
	case base.SecurityAuthentication:
		if len(content) < GCM_TAG_LENGTH {
			return nil, malformed("too short ciphered data, no space for tag")
		}
		apdu := content[:len(content)-GCM_TAG_LENGTH]
		aad := make([]byte, 0, 1+len(ak)+len(apdu))
		aad = append(aad, sc)
		aad = append(aad, ak...)
		aad = append(aad, apdu...)
		if _, err = aead.Open(nil, iv, content[len(apdu):], aad); err != nil {
			return nil, base.NewSecurityError(fmt.Errorf("%w: %w", ErrAuthenticationFailed, err))
		}
		return slices.Clone(apdu), nil
	case base.SecurityEncryption:
		ret := make([]byte, len(content))
		ctr(blk, iv, ret, content)
		return ret, nil
	case base.SecurityAuthenticationEncryption:
		if len(content) < GCM_TAG_LENGTH {
			return nil, malformed("too short ciphered data, no space for tag")
		}
		aad := append([]byte{sc}, ak...)
		ret, err := aead.Open(nil, iv, content, aad)
		if err != nil {
			return nil, base.NewSecurityError(fmt.Errorf("%w: %w", ErrAuthenticationFailed, err))
		}
		return ret, nil
	}
	return nil, malformed("unsupported security control byte: %02X", sc)
}
