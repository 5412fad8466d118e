// Package dlmsal keeps the DLMS/COSEM application layer session state.
//
// It tracks what was negotiated for one connection and frames service apdus around it:
//   - Logical Name (LN) and Short Name (SN) referencing with their conformance blocks
//   - block index, invoke id and count/index pair used by block transfer
//   - per message parameter builders taken from an immutable settings snapshot
//   - long transactions reassembling block transferred payloads
//
// Ciphering of the framed apdus is done by the ciphering package, HDLC link state by the hdlc package.
//
// Basic usage:
//
//	s := dlmsal.NewSettingsLN()
//	err := s.BeginAssociation(base.ReferencingLN, hdlc.DefaultLimits(), cipher)
//
//	s.NextInvokeID()
//	p := dlmsal.NewLNParameters(s.Snapshot(), base.TagGetRequest, dlmsal.TagGetRequestNormal,
//		dlmsal.EncodeLNDescriptor(3, dlmsal.DlmsObis{A: 1, B: 0, C: 1, D: 8, E: 0, F: 255}, 2), nil, 0)
//	var pdu bytes.Buffer
//	err = p.Encode(&pdu)
package dlmsal

import (
	"fmt"

	"github.com/cybroslabs/dlms-session-go/base"
	"github.com/cybroslabs/dlms-session-go/ciphering"
	"github.com/cybroslabs/dlms-session-go/hdlc"
	"go.uber.org/zap"
	"k8s.io/utils/ptr"
)

const (
	DefaultMaxPduSize = 0xffff
	minPduSize        = 12

	maxSNBlockIndex = 0xffff
	invokeIDMask    = 0x0f
)

// Settings is the negotiated state of one connection. It is not safe for concurrent use,
// the session owning it processes requests one by one.
type Settings struct {
	ConformanceBlock  uint32 // proposed in AARQ, becomes the live block on BeginAssociation
	HighPriority      bool
	ConfirmedRequests bool

	logger      *zap.SugaredLogger
	referencing base.Referencing
	associated  bool
	ln          *LNConformance
	sn          *SNConformance
	blockindex  uint32
	count       uint32
	index       uint32
	invokeid    byte
	cipher      *ciphering.Cipher
	limits      hdlc.Limits
	maxpdu      *uint16
	transaction *LongTransaction
}

// NewSettingsLN creates settings for Logical Name (LN) referencing.
func NewSettingsLN() *Settings {
	s := &Settings{
		HighPriority:      true,
		ConfirmedRequests: true,
		ConformanceBlock: base.ConformanceBlockBlockTransferWithGetOrRead | base.ConformanceBlockBlockTransferWithSetOrWrite |
			base.ConformanceBlockBlockTransferWithAction | base.ConformanceBlockAction | base.ConformanceBlockGet | base.ConformanceBlockSet |
			base.ConformanceBlockSelectiveAccess | base.ConformanceBlockMultipleReferences | base.ConformanceBlockAttribute0SupportedWithGet,
	}
	s.init(base.ReferencingLN)
	return s
}

// NewSettingsSN creates settings for Short Name (SN) referencing.
func NewSettingsSN() *Settings {
	s := &Settings{
		ConformanceBlock: base.ConformanceBlockBlockTransferWithGetOrRead | base.ConformanceBlockBlockTransferWithSetOrWrite |
			base.ConformanceBlockRead | base.ConformanceBlockWrite | base.ConformanceBlockParametrizedAccess | base.ConformanceBlockMultipleReferences,
	}
	s.init(base.ReferencingSN)
	return s
}

func (s *Settings) init(ref base.Referencing) {
	s.referencing = ref
	s.ln = nil
	s.sn = nil
	if ref == base.ReferencingSN {
		s.sn = NewSNConformance(s.ConformanceBlock)
	} else {
		s.ln = NewLNConformance(s.ConformanceBlock)
	}
	s.blockindex = 1
	s.count = 0
	s.index = 0
	s.invokeid = 0
	s.limits = hdlc.DefaultLimits()
	s.maxpdu = nil
	s.transaction = nil
	if s.cipher == nil {
		s.cipher = ciphering.New()
	}
}

func (s *Settings) SetLogger(logger *zap.SugaredLogger) {
	s.logger = logger
}

func (s *Settings) logf(format string, v ...any) {
	if s.logger != nil {
		s.logger.Infof(format, v...)
	}
}

func (s *Settings) dlogf(format string, v ...any) {
	if s.logger != nil {
		s.logger.Debugf(format, v...)
	}
}

// BeginAssociation starts an association, referencing can't change until Reset.
// Nil cipher means no security.
func (s *Settings) BeginAssociation(ref base.Referencing, limits hdlc.Limits, cipher *ciphering.Cipher) error {
	if s.associated {
		return ErrAssociated
	}
	if ref != base.ReferencingLN && ref != base.ReferencingSN {
		return fmt.Errorf("%w: unknown referencing %d", base.ErrInvalidArgument, ref)
	}
	if err := limits.Validate(); err != nil {
		return err
	}
	if cipher == nil {
		cipher = ciphering.New()
	}
	s.cipher = cipher
	s.init(ref)
	s.limits = limits
	s.associated = true
	s.logf("dlmsal: association started, %v referencing, conformance %06X, security %v", ref, s.conformancebits(), cipher.Security())
	return nil
}

func (s *Settings) IsAssociated() bool {
	return s.associated
}

func (s *Settings) Referencing() base.Referencing {
	return s.referencing
}

func (s *Settings) Cipher() *ciphering.Cipher {
	return s.cipher
}

func (s *Settings) Limits() hdlc.Limits {
	return s.limits
}

// NegotiateLimits applies parameters of the received UA frame.
func (s *Settings) NegotiateLimits(ua []byte) error {
	l, err := s.limits.Negotiate(ua)
	if err != nil {
		return err
	}
	s.limits = l
	s.dlogf("dlmsal: limits negotiated %+v", l)
	return nil
}

// AttachLink resets the settings whenever the link disconnects.
func (s *Settings) AttachLink(l *hdlc.Link) {
	l.OnDisconnect(s.Reset)
}

func (s *Settings) conformancebits() uint32 {
	if s.sn != nil {
		return s.sn.Uint32()
	}
	return s.ln.Uint32()
}

// Conformance returns the live 3 byte conformance block.
func (s *Settings) Conformance() []byte {
	if s.sn != nil {
		return s.sn.Bytes()
	}
	return s.ln.Bytes()
}

func (s *Settings) SetConformance(b []byte) error {
	if s.sn != nil {
		return s.sn.SetBytes(b)
	}
	return s.ln.SetBytes(b)
}

// NegotiateConformance intersects the live block with the one returned in AARE.
func (s *Settings) NegotiateConformance(returned []byte) error {
	var err error
	if s.sn != nil {
		err = s.sn.Negotiate(returned)
	} else {
		err = s.ln.Negotiate(returned)
	}
	if err != nil {
		return err
	}
	s.dlogf("dlmsal: negotiated conformance %06X", s.conformancebits())
	return nil
}

// LN returns the conformance block when LN referencing is used, nil otherwise.
func (s *Settings) LN() *LNConformance {
	return s.ln
}

// SN returns the conformance block when SN referencing is used, nil otherwise.
func (s *Settings) SN() *SNConformance {
	return s.sn
}

func (s *Settings) BlockIndex() uint32 {
	return s.blockindex
}

// SetBlockIndex is used when the block numbering continues from the peer's side.
func (s *Settings) SetBlockIndex(v uint32) error {
	if s.referencing == base.ReferencingSN && v > maxSNBlockIndex {
		return fmt.Errorf("%w: SN block index %d above %d", base.ErrInvalidArgument, v, maxSNBlockIndex)
	}
	s.blockindex = v
	return nil
}

// NextBlockIndex increments and returns the block index.
// LN index is 32 bit and wraps, SN index is 16 bit and gets exhausted instead of wrapping.
func (s *Settings) NextBlockIndex() (uint32, error) {
	if s.referencing == base.ReferencingSN && s.blockindex >= maxSNBlockIndex {
		return s.blockindex, base.NewSegmentationError(fmt.Errorf("%w: SN block index reached %d", ErrBlockIndexExhausted, maxSNBlockIndex))
	}
	s.blockindex++
	return s.blockindex, nil
}

func (s *Settings) ResetBlockIndex() {
	s.blockindex = 1
}

func (s *Settings) Count() uint32 {
	return s.count
}

func (s *Settings) SetCount(v uint32) {
	s.count = v
}

func (s *Settings) Index() uint32 {
	return s.index
}

func (s *Settings) SetIndex(v uint32) {
	s.index = v
}

func (s *Settings) HasMoreBlocks() bool {
	return s.count != s.index
}

func (s *Settings) invokebyte() byte {
	if s.referencing != base.ReferencingLN {
		return 0
	}
	b := s.invokeid
	if s.HighPriority {
		b |= 0x80
	}
	if s.ConfirmedRequests {
		b |= 0x40
	}
	return b
}

// NextInvokeID advances the 4 bit invoke id and returns it with priority and service class bits.
// SN has no invoke id, 0 is returned.
func (s *Settings) NextInvokeID() byte {
	if s.referencing != base.ReferencingLN {
		return 0
	}
	s.invokeid = (s.invokeid + 1) & invokeIDMask
	return s.invokebyte()
}

// MaxPduSize returns the negotiated maximum apdu size, DefaultMaxPduSize before negotiation.
func (s *Settings) MaxPduSize() uint16 {
	return ptr.Deref(s.maxpdu, DefaultMaxPduSize)
}

func (s *Settings) SetMaxPduSize(v uint16) error {
	if v < minPduSize {
		return fmt.Errorf("%w: max pdu size %d below %d", base.ErrInvalidArgument, v, minPduSize)
	}
	s.maxpdu = ptr.To(v)
	return nil
}

// BlockSize is the payload of one block, bounded by received info field length and the max pdu size.
func (s *Settings) BlockSize() int {
	return int(min(s.limits.MaxInfoRX, s.MaxPduSize()))
}

// Snapshot is an immutable view of the settings used by parameter builders.
type Snapshot struct {
	Referencing base.Referencing
	Conformance uint32
	BlockIndex  uint32
	Count       uint32
	Index       uint32
	InvokeID    byte // with priority and service class bits
	MaxPduSize  uint16
}

func (s *Settings) Snapshot() Snapshot {
	return Snapshot{
		Referencing: s.referencing,
		Conformance: s.conformancebits(),
		BlockIndex:  s.blockindex,
		Count:       s.count,
		Index:       s.index,
		InvokeID:    s.invokebyte(),
		MaxPduSize:  s.MaxPduSize(),
	}
}

// Reset ends the association, called on disconnect or timeout.
// Conformance bits, counters, open long transaction and transient cipher material are cleared.
func (s *Settings) Reset() {
	if s.ln != nil {
		s.ln.clear()
	}
	if s.sn != nil {
		s.sn.clear()
	}
	s.blockindex = 1
	s.count = 0
	s.index = 0
	s.invokeid = 0
	s.maxpdu = nil
	s.limits = hdlc.DefaultLimits()
	if s.transaction != nil {
		s.dlogf("dlmsal: dropping long transaction %v with %d bytes", s.transaction.Command(), s.transaction.Len())
		s.transaction = nil
	}
	if s.cipher != nil {
		s.cipher.Reset()
	}
	if s.associated {
		s.logf("dlmsal: association reset")
	}
	s.associated = false
}
