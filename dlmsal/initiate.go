package dlmsal

import (
	"context"
	"fmt"

	"github.com/cybroslabs/dlms-session-go/base"
	"golang.org/x/crypto/cryptobyte"
	"k8s.io/utils/ptr"
)

// InitiateResponse is the xDLMS part of AARE user information.
type InitiateResponse struct {
	QualityOfService *byte
	Conformance      uint32
	MaxPduSize       uint16 // server max receive pdu size
	VAAddress        uint16
}

// ConfirmedServiceError is returned when the peer refused the initiate request.
type ConfirmedServiceError struct {
	Service byte
	Err     byte
	Value   byte
}

func (e *ConfirmedServiceError) Error() string {
	return fmt.Sprintf("confirmed service error: service %d, error %d, value %d", e.Service, e.Err, e.Value)
}

// InitiateRequest encodes xDLMS InitiateRequest carrying the live conformance block and max receive pdu size.
// Dedicated key of the cipher is sent along, ciphered security wraps the request into glo-initiate-request.
func (s *Settings) InitiateRequest(ctx context.Context) ([]byte, error) {
	if !s.associated {
		return nil, ErrNotAssociated
	}
	conf := s.conformancebits()
	b := cryptobyte.NewBuilder(make([]byte, 0, 40))
	b.AddUint8(byte(base.TagInitiateRequest))
	if dk := s.cipher.DedicatedKey(); dk != nil {
		b.AddUint8(1)
		b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
			b.AddBytes(dk)
		})
	} else {
		b.AddUint8(0)
	}
	b.AddUint8(0) // response-allowed default
	b.AddUint8(0) // no proposed quality of service
	b.AddUint8(base.DlmsVersion)
	b.AddBytes([]byte{0x5f, 0x1f, 0x04, 0x00, byte(conf >> 16), byte(conf >> 8), byte(conf)})
	b.AddUint16(s.MaxPduSize())
	ret, err := b.Bytes()
	if err != nil {
		return nil, err
	}
	s.dlogf("dlmsal: initiate request conformance %06X max pdu %d", conf, s.MaxPduSize())
	if !s.cipher.IsCiphered() {
		return ret, nil
	}
	return s.cipher.Encrypt(ctx, base.TagGloInitiateRequest, ret)
}

// ApplyInitiateResponse decodes the user information of AARE and applies negotiated conformance and max pdu size.
func (s *Settings) ApplyInitiateResponse(ctx context.Context, src []byte) (ir InitiateResponse, err error) {
	if !s.associated {
		return ir, ErrNotAssociated
	}
	if len(src) == 0 {
		return ir, base.NewFramingError(fmt.Errorf("empty user information"))
	}
	switch base.CosemTag(src[0]) {
	case base.TagGloInitiateResponse, base.TagGloConfirmedServiceError:
		tag, plain, err := s.cipher.Decrypt(ctx, src)
		if err != nil {
			return ir, err
		}
		if len(plain) == 0 {
			return ir, base.NewFramingError(fmt.Errorf("ciphered %v carries no content", tag))
		}
		if g, ok := base.CipheredTag(base.CosemTag(plain[0]), false); !ok || g != tag {
			return ir, base.NewFramingError(fmt.Errorf("ciphered %v carries unexpected content", tag))
		}
		return s.ApplyInitiateResponse(ctx, plain)
	case base.TagConfirmedServiceError:
		if len(src) < 4 {
			return ir, base.NewFramingError(fmt.Errorf("invalid service error length"))
		}
		return ir, &ConfirmedServiceError{Service: src[1], Err: src[2], Value: src[3]}
	case base.TagInitiateResponse:
	default:
		return ir, base.NewFramingError(fmt.Errorf("unexpected user information tag %02x", src[0]))
	}

	ir, err = decodeInitiateResponse(src[1:])
	if err != nil {
		return
	}
	if err = s.NegotiateConformance([]byte{byte(ir.Conformance >> 16), byte(ir.Conformance >> 8), byte(ir.Conformance)}); err != nil {
		return
	}
	if err = s.SetMaxPduSize(ir.MaxPduSize); err != nil {
		return ir, base.NewFramingError(err)
	}
	s.logf("dlmsal: association accepted, conformance %06X, max pdu %d", s.conformancebits(), ir.MaxPduSize)
	return
}

func decodeInitiateResponse(src []byte) (out InitiateResponse, err error) {
	s := cryptobyte.String(src)
	var qos, version uint8
	if !s.ReadUint8(&qos) {
		return out, base.NewFramingError(fmt.Errorf("invalid initiate response length"))
	}
	if qos != 0 {
		var q uint8
		if !s.ReadUint8(&q) {
			return out, base.NewFramingError(fmt.Errorf("invalid initiate response length"))
		}
		out.QualityOfService = ptr.To(q)
	}
	if !s.ReadUint8(&version) {
		return out, base.NewFramingError(fmt.Errorf("invalid initiate response length"))
	}
	if version != base.DlmsVersion {
		return out, base.NewFramingError(fmt.Errorf("wrong dlms version %d", version))
	}
	var hdr []byte
	var conf uint32
	if !s.ReadBytes(&hdr, 3) || !s.ReadUint32(&conf) || !s.ReadUint16(&out.MaxPduSize) || !s.ReadUint16(&out.VAAddress) {
		return out, base.NewFramingError(fmt.Errorf("invalid initiate response length"))
	}
	if hdr[0] != 0x5f || hdr[1] != 0x1f || hdr[2] != 0x04 || conf>>24 != 0 {
		return out, base.NewFramingError(fmt.Errorf("invalid initiate response content"))
	}
	out.Conformance = conf
	return
}
