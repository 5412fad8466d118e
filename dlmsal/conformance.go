package dlmsal

import (
	"fmt"

	"github.com/cybroslabs/dlms-session-go/base"
)

type conformance struct {
	bits  uint32
	valid uint32
}

func (c *conformance) Bytes() []byte {
	return []byte{byte(c.bits >> 16), byte(c.bits >> 8), byte(c.bits)}
}

// SetBytes assigns the raw 3 byte block as it is, without masking.
func (c *conformance) SetBytes(b []byte) error {
	if len(b) != base.ConformanceLength {
		return fmt.Errorf("%w: conformance block has to be %d bytes, got %d", base.ErrInvalidArgument, base.ConformanceLength, len(b))
	}
	c.bits = uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
	return nil
}

func (c *conformance) Uint32() uint32 {
	return c.bits
}

// Negotiate keeps the bits both sides support, bits invalid for the referencing are always cleared.
func (c *conformance) Negotiate(returned []byte) error {
	if len(returned) != base.ConformanceLength {
		return fmt.Errorf("%w: conformance block has to be %d bytes, got %d", base.ErrInvalidArgument, base.ConformanceLength, len(returned))
	}
	r := uint32(returned[0])<<16 | uint32(returned[1])<<8 | uint32(returned[2])
	c.bits &= r & c.valid
	return nil
}

func (c *conformance) clear() {
	c.bits = 0
}

func (c *conformance) bit(m uint32) bool {
	return c.bits&m != 0
}

func (c *conformance) setbit(m uint32, v bool) {
	if v {
		c.bits |= m
	} else {
		c.bits &^= m
	}
}

// LNConformance is the conformance block of logical name referencing.
type LNConformance struct {
	conformance
}

func NewLNConformance(bits uint32) *LNConformance {
	return &LNConformance{conformance{bits: bits & 0xffffff, valid: base.ConformanceBlockMaskLN}}
}

func (c *LNConformance) GeneralProtection() bool {
	return c.bit(base.ConformanceBlockGeneralProtection)
}

func (c *LNConformance) SetGeneralProtection(v bool) {
	c.setbit(base.ConformanceBlockGeneralProtection, v)
}

func (c *LNConformance) GeneralBlockTransfer() bool {
	return c.bit(base.ConformanceBlockGeneralBlockTransfer)
}

func (c *LNConformance) SetGeneralBlockTransfer(v bool) {
	c.setbit(base.ConformanceBlockGeneralBlockTransfer, v)
}

func (c *LNConformance) Attribute0SupportedWithSet() bool {
	return c.bit(base.ConformanceBlockAttribute0SupportedWithSet)
}

func (c *LNConformance) SetAttribute0SupportedWithSet(v bool) {
	c.setbit(base.ConformanceBlockAttribute0SupportedWithSet, v)
}

func (c *LNConformance) PriorityMgmtSupported() bool {
	return c.bit(base.ConformanceBlockPriorityMgmtSupported)
}

func (c *LNConformance) SetPriorityMgmtSupported(v bool) {
	c.setbit(base.ConformanceBlockPriorityMgmtSupported, v)
}

func (c *LNConformance) Attribute0SupportedWithGet() bool {
	return c.bit(base.ConformanceBlockAttribute0SupportedWithGet)
}

func (c *LNConformance) SetAttribute0SupportedWithGet(v bool) {
	c.setbit(base.ConformanceBlockAttribute0SupportedWithGet, v)
}

func (c *LNConformance) BlockTransferWithGet() bool {
	return c.bit(base.ConformanceBlockBlockTransferWithGetOrRead)
}

func (c *LNConformance) SetBlockTransferWithGet(v bool) {
	c.setbit(base.ConformanceBlockBlockTransferWithGetOrRead, v)
}

func (c *LNConformance) BlockTransferWithSet() bool {
	return c.bit(base.ConformanceBlockBlockTransferWithSetOrWrite)
}

func (c *LNConformance) SetBlockTransferWithSet(v bool) {
	c.setbit(base.ConformanceBlockBlockTransferWithSetOrWrite, v)
}

func (c *LNConformance) BlockTransferWithAction() bool {
	return c.bit(base.ConformanceBlockBlockTransferWithAction)
}

func (c *LNConformance) SetBlockTransferWithAction(v bool) {
	c.setbit(base.ConformanceBlockBlockTransferWithAction, v)
}

func (c *LNConformance) MultipleReferences() bool {
	return c.bit(base.ConformanceBlockMultipleReferences)
}

func (c *LNConformance) SetMultipleReferences(v bool) {
	c.setbit(base.ConformanceBlockMultipleReferences, v)
}

func (c *LNConformance) DataNotification() bool {
	return c.bit(base.ConformanceBlockDataNotification)
}

func (c *LNConformance) SetDataNotification(v bool) {
	c.setbit(base.ConformanceBlockDataNotification, v)
}

func (c *LNConformance) Access() bool {
	return c.bit(base.ConformanceBlockAccess)
}

func (c *LNConformance) SetAccess(v bool) {
	c.setbit(base.ConformanceBlockAccess, v)
}

func (c *LNConformance) Get() bool {
	return c.bit(base.ConformanceBlockGet)
}

func (c *LNConformance) SetGet(v bool) {
	c.setbit(base.ConformanceBlockGet, v)
}

func (c *LNConformance) Set() bool {
	return c.bit(base.ConformanceBlockSet)
}

func (c *LNConformance) SetSet(v bool) {
	c.setbit(base.ConformanceBlockSet, v)
}

func (c *LNConformance) SelectiveAccess() bool {
	return c.bit(base.ConformanceBlockSelectiveAccess)
}

func (c *LNConformance) SetSelectiveAccess(v bool) {
	c.setbit(base.ConformanceBlockSelectiveAccess, v)
}

func (c *LNConformance) EventNotification() bool {
	return c.bit(base.ConformanceBlockEventNotification)
}

func (c *LNConformance) SetEventNotification(v bool) {
	c.setbit(base.ConformanceBlockEventNotification, v)
}

func (c *LNConformance) Action() bool {
	return c.bit(base.ConformanceBlockAction)
}

func (c *LNConformance) SetAction(v bool) {
	c.setbit(base.ConformanceBlockAction, v)
}

// SNConformance is the conformance block of short name referencing.
type SNConformance struct {
	conformance
}

func NewSNConformance(bits uint32) *SNConformance {
	return &SNConformance{conformance{bits: bits & 0xffffff, valid: base.ConformanceBlockMaskSN}}
}

func (c *SNConformance) GeneralProtection() bool {
	return c.bit(base.ConformanceBlockGeneralProtection)
}

func (c *SNConformance) SetGeneralProtection(v bool) {
	c.setbit(base.ConformanceBlockGeneralProtection, v)
}

func (c *SNConformance) GeneralBlockTransfer() bool {
	return c.bit(base.ConformanceBlockGeneralBlockTransfer)
}

func (c *SNConformance) SetGeneralBlockTransfer(v bool) {
	c.setbit(base.ConformanceBlockGeneralBlockTransfer, v)
}

func (c *SNConformance) Read() bool {
	return c.bit(base.ConformanceBlockRead)
}

func (c *SNConformance) SetRead(v bool) {
	c.setbit(base.ConformanceBlockRead, v)
}

func (c *SNConformance) Write() bool {
	return c.bit(base.ConformanceBlockWrite)
}

func (c *SNConformance) SetWrite(v bool) {
	c.setbit(base.ConformanceBlockWrite, v)
}

func (c *SNConformance) UnconfirmedWrite() bool {
	return c.bit(base.ConformanceBlockUnconfirmedWrite)
}

func (c *SNConformance) SetUnconfirmedWrite(v bool) {
	c.setbit(base.ConformanceBlockUnconfirmedWrite, v)
}

func (c *SNConformance) BlockTransferWithRead() bool {
	return c.bit(base.ConformanceBlockBlockTransferWithGetOrRead)
}

func (c *SNConformance) SetBlockTransferWithRead(v bool) {
	c.setbit(base.ConformanceBlockBlockTransferWithGetOrRead, v)
}

func (c *SNConformance) BlockTransferWithWrite() bool {
	return c.bit(base.ConformanceBlockBlockTransferWithSetOrWrite)
}

func (c *SNConformance) SetBlockTransferWithWrite(v bool) {
	c.setbit(base.ConformanceBlockBlockTransferWithSetOrWrite, v)
}

func (c *SNConformance) MultipleReferences() bool {
	return c.bit(base.ConformanceBlockMultipleReferences)
}

func (c *SNConformance) SetMultipleReferences(v bool) {
	c.setbit(base.ConformanceBlockMultipleReferences, v)
}

func (c *SNConformance) InformationReport() bool {
	return c.bit(base.ConformanceBlockInformationReport)
}

func (c *SNConformance) SetInformationReport(v bool) {
	c.setbit(base.ConformanceBlockInformationReport, v)
}

func (c *SNConformance) DataNotification() bool {
	return c.bit(base.ConformanceBlockDataNotification)
}

func (c *SNConformance) SetDataNotification(v bool) {
	c.setbit(base.ConformanceBlockDataNotification, v)
}

func (c *SNConformance) ParametrizedAccess() bool {
	return c.bit(base.ConformanceBlockParametrizedAccess)
}

func (c *SNConformance) SetParametrizedAccess(v bool) {
	c.setbit(base.ConformanceBlockParametrizedAccess, v)
}
