package dlmsal

import (
	"bytes"
	"fmt"
	"slices"
	"time"

	"github.com/cybroslabs/dlms-session-go/base"
)

const lnDescriptorLength = 9

// EncodeLNDescriptor encodes cosem attribute or method descriptor, class id, obis and index.
func EncodeLNDescriptor(classid uint16, obis DlmsObis, index int8) []byte {
	return []byte{byte(classid >> 8), byte(classid), obis.A, obis.B, obis.C, obis.D, obis.E, obis.F, byte(index)}
}

// SNVariableName encodes variable access specification by short name.
func SNVariableName(address uint16) []byte {
	return []byte{byte(TagSNVariableName), byte(address >> 8), byte(address)}
}

// SNParameterizedAccess encodes variable access specification with selector and its already encoded parameters.
func SNParameterizedAccess(address uint16, selector byte, params []byte) []byte {
	ret := []byte{byte(TagSNParameterizedAccess), byte(address >> 8), byte(address), selector}
	return append(ret, params...)
}

type parameters struct {
	snap           Snapshot
	command        base.CosemTag
	requestType    RequestType
	descriptor     []byte
	data           []byte
	status         base.DlmsResultTag
	time           *DlmsDateTime
	multipleBlocks bool
	lastBlock      bool
}

func newparameters(snap Snapshot, command base.CosemTag, requestType RequestType, descriptor []byte, data []byte, status base.DlmsResultTag) parameters {
	return parameters{
		snap:           snap,
		command:        command,
		requestType:    requestType,
		descriptor:     slices.Clone(descriptor),
		data:           slices.Clone(data),
		status:         status,
		multipleBlocks: snap.Count != snap.Index,
		lastBlock:      snap.Count == snap.Index,
	}
}

func (p parameters) Command() base.CosemTag {
	return p.command
}

func (p parameters) RequestType() RequestType {
	return p.requestType
}

func (p parameters) Descriptor() []byte {
	return slices.Clone(p.descriptor)
}

func (p parameters) Data() []byte {
	return slices.Clone(p.data)
}

func (p parameters) Status() base.DlmsResultTag {
	return p.status
}

// Time returns the notification time if any.
func (p parameters) Time() (DlmsDateTime, bool) {
	if p.time == nil {
		return DlmsDateTime{}, false
	}
	return *p.time, true
}

func (p parameters) BlockIndex() uint32 {
	return p.snap.BlockIndex
}

// MultipleBlocks is true when settings had count different from index.
func (p parameters) MultipleBlocks() bool {
	return p.multipleBlocks
}

// LastBlock is true when settings had count equal to index.
func (p parameters) LastBlock() bool {
	return p.lastBlock
}

func (p parameters) unsupported() error {
	return fmt.Errorf("%w: %v type %d", ErrUnsupportedCommand, p.command, p.requestType)
}

func (p parameters) writetime(dst *bytes.Buffer) {
	if p.time == nil {
		dst.WriteByte(0)
		return
	}
	dst.WriteByte(dateTimeLength)
	p.time.encode(dst)
}

func writelength(dst *bytes.Buffer, n int) {
	dst.Write(base.AppendLength(nil, uint(n)))
}

func writeraw(dst *bytes.Buffer, data []byte) {
	writelength(dst, len(data))
	dst.Write(data)
}

func writebool(dst *bytes.Buffer, v bool) {
	if v {
		dst.WriteByte(1)
	} else {
		dst.WriteByte(0)
	}
}

func writeuint32(dst *bytes.Buffer, v uint32) {
	dst.WriteByte(byte(v >> 24))
	dst.WriteByte(byte(v >> 16))
	dst.WriteByte(byte(v >> 8))
	dst.WriteByte(byte(v))
}

// LNParameters is everything needed to frame one LN apdu. It is a read only value,
// block flags are derived from the settings snapshot it was created from.
type LNParameters struct {
	parameters
}

func NewLNParameters(snap Snapshot, command base.CosemTag, requestType RequestType, descriptor []byte, data []byte, status base.DlmsResultTag) LNParameters {
	return LNParameters{newparameters(snap, command, requestType, descriptor, data, status)}
}

// WithTime returns a copy carrying the date time of data notification.
func (p LNParameters) WithTime(t time.Time) LNParameters {
	dt := NewDlmsDateTimeFromTime(t)
	p.time = &dt
	return p
}

// InvokeID returns invoke id byte including priority and service class bits.
func (p LNParameters) InvokeID() byte {
	return p.snap.InvokeID
}

func (p *LNParameters) header(dst *bytes.Buffer) {
	dst.WriteByte(byte(p.command))
	dst.WriteByte(byte(p.requestType))
	dst.WriteByte(p.snap.InvokeID)
}

func (p *LNParameters) writedescriptor(dst *bytes.Buffer) error {
	if len(p.descriptor) != lnDescriptorLength {
		return fmt.Errorf("%w: LN descriptor has to be %d bytes, got %d", base.ErrInvalidArgument, lnDescriptorLength, len(p.descriptor))
	}
	dst.Write(p.descriptor)
	return nil
}

// writeoptional writes data prefixed with presence flag, used for access selection and action parameters.
func writeoptional(dst *bytes.Buffer, data []byte) {
	if len(data) == 0 {
		dst.WriteByte(0)
		return
	}
	dst.WriteByte(1)
	dst.Write(data)
}

func (p *LNParameters) writeblock(dst *bytes.Buffer) {
	writebool(dst, p.lastBlock)
	writeuint32(dst, p.snap.BlockIndex)
	writeraw(dst, p.data)
}

// Encode appends the apdu to dst. Data of GET normal request is access selection,
// of ACTION normal request method parameters, both omitted when empty.
func (p LNParameters) Encode(dst *bytes.Buffer) error {
	if p.snap.Referencing == base.ReferencingSN {
		return fmt.Errorf("%w: LN parameters with SN referencing", base.ErrInvalidArgument)
	}
	switch p.command {
	case base.TagGetRequest:
		return p.encodegetrequest(dst)
	case base.TagGetResponse:
		return p.encodegetresponse(dst)
	case base.TagSetRequest:
		return p.encodesetrequest(dst)
	case base.TagSetResponse:
		return p.encodesetresponse(dst)
	case base.TagActionRequest:
		return p.encodeactionrequest(dst)
	case base.TagActionResponse:
		return p.encodeactionresponse(dst)
	case base.TagDataNotification:
		dst.WriteByte(byte(base.TagDataNotification))
		id := uint32(p.snap.InvokeID & invokeIDMask)
		if p.snap.InvokeID&0x80 != 0 {
			id |= longInvokePriority
		}
		if p.snap.InvokeID&0x40 != 0 {
			id |= longInvokeConfirm
		}
		writeuint32(dst, id)
		p.writetime(dst)
		dst.Write(p.data)
		return nil
	}
	return p.unsupported()
}

func (p *LNParameters) encodegetrequest(dst *bytes.Buffer) error {
	switch p.requestType {
	case TagGetRequestNormal:
		p.header(dst)
		if err := p.writedescriptor(dst); err != nil {
			return err
		}
		writeoptional(dst, p.data)
	case TagGetRequestNext:
		p.header(dst)
		writeuint32(dst, p.snap.BlockIndex)
	default:
		return p.unsupported()
	}
	return nil
}

func (p *LNParameters) encodegetresponse(dst *bytes.Buffer) error {
	switch p.requestType {
	case TagGetResponseNormal:
		p.header(dst)
		if p.status != base.TagResultSuccess {
			dst.WriteByte(1)
			dst.WriteByte(byte(p.status))
			return nil
		}
		dst.WriteByte(0)
		dst.Write(p.data)
	case TagGetResponseWithDataBlock:
		p.header(dst)
		writebool(dst, p.lastBlock)
		writeuint32(dst, p.snap.BlockIndex)
		if p.status != base.TagResultSuccess {
			dst.WriteByte(1)
			dst.WriteByte(byte(p.status))
			return nil
		}
		dst.WriteByte(0)
		writeraw(dst, p.data)
	default:
		return p.unsupported()
	}
	return nil
}

func (p *LNParameters) encodesetrequest(dst *bytes.Buffer) error {
	switch p.requestType {
	case TagSetRequestNormal:
		p.header(dst)
		if err := p.writedescriptor(dst); err != nil {
			return err
		}
		dst.WriteByte(0) // no access selection
		dst.Write(p.data)
	case TagSetRequestWithFirstDataBlock:
		p.header(dst)
		if err := p.writedescriptor(dst); err != nil {
			return err
		}
		dst.WriteByte(0)
		p.writeblock(dst)
	case TagSetRequestWithDataBlock:
		p.header(dst)
		p.writeblock(dst)
	default:
		return p.unsupported()
	}
	return nil
}

func (p *LNParameters) encodesetresponse(dst *bytes.Buffer) error {
	switch p.requestType {
	case TagSetResponseNormal:
		p.header(dst)
		dst.WriteByte(byte(p.status))
	case TagSetResponseDataBlock:
		p.header(dst)
		writeuint32(dst, p.snap.BlockIndex)
	case TagSetResponseLastDataBlock:
		p.header(dst)
		dst.WriteByte(byte(p.status))
		writeuint32(dst, p.snap.BlockIndex)
	default:
		return p.unsupported()
	}
	return nil
}

func (p *LNParameters) encodeactionrequest(dst *bytes.Buffer) error {
	switch p.requestType {
	case TagActionRequestNormal:
		p.header(dst)
		if err := p.writedescriptor(dst); err != nil {
			return err
		}
		writeoptional(dst, p.data)
	case TagActionRequestNextPBlock:
		p.header(dst)
		writeuint32(dst, p.snap.BlockIndex)
	case TagActionRequestWithFirstPBlock:
		p.header(dst)
		if err := p.writedescriptor(dst); err != nil {
			return err
		}
		p.writeblock(dst)
	case TagActionRequestWithPBlock:
		p.header(dst)
		p.writeblock(dst)
	default:
		return p.unsupported()
	}
	return nil
}

func (p *LNParameters) encodeactionresponse(dst *bytes.Buffer) error {
	switch p.requestType {
	case TagActionResponseNormal:
		p.header(dst)
		dst.WriteByte(byte(p.status))
		if len(p.data) == 0 {
			dst.WriteByte(0)
			return nil
		}
		dst.WriteByte(1)
		dst.WriteByte(0) // data, not data access result
		dst.Write(p.data)
	case TagActionResponseWithPBlock:
		p.header(dst)
		p.writeblock(dst)
	case TagActionResponseNextPBlock:
		p.header(dst)
		writeuint32(dst, p.snap.BlockIndex)
	default:
		return p.unsupported()
	}
	return nil
}

// SNParameters is everything needed to frame one SN apdu. Count is the number of
// variable access specifications, descriptor holds them already encoded.
type SNParameters struct {
	parameters
	count int
}

func NewSNParameters(snap Snapshot, command base.CosemTag, requestType RequestType, count int, descriptor []byte, data []byte, status base.DlmsResultTag) SNParameters {
	return SNParameters{
		parameters: newparameters(snap, command, requestType, descriptor, data, status),
		count:      count,
	}
}

// WithTime returns a copy carrying the time of information report.
func (p SNParameters) WithTime(t time.Time) SNParameters {
	dt := NewDlmsDateTimeFromTime(t)
	p.time = &dt
	return p
}

func (p SNParameters) Count() int {
	return p.count
}

func (p *SNParameters) checkcount() error {
	if p.count < 1 {
		return fmt.Errorf("%w: SN item count %d", base.ErrInvalidArgument, p.count)
	}
	return nil
}

func (p *SNParameters) blocknumber() (uint16, error) {
	if p.snap.BlockIndex > maxSNBlockIndex {
		return 0, fmt.Errorf("%w: SN block index %d", base.ErrInvalidArgument, p.snap.BlockIndex)
	}
	return uint16(p.snap.BlockIndex), nil
}

// Encode appends the apdu to dst. For responses with single item the result choice is written here,
// with more items data has to carry the choice of each item.
func (p SNParameters) Encode(dst *bytes.Buffer) error {
	if p.snap.Referencing == base.ReferencingLN {
		return fmt.Errorf("%w: SN parameters with LN referencing", base.ErrInvalidArgument)
	}
	switch p.command {
	case base.TagReadRequest:
		switch p.requestType {
		case TagSNVariableName, TagSNParameterizedAccess:
			if err := p.checkcount(); err != nil {
				return err
			}
			dst.WriteByte(byte(base.TagReadRequest))
			writelength(dst, p.count)
			dst.Write(p.descriptor)
		case TagSNBlockNumberAccess:
			n, err := p.blocknumber()
			if err != nil {
				return err
			}
			dst.WriteByte(byte(base.TagReadRequest))
			writelength(dst, 1)
			dst.WriteByte(byte(TagSNBlockNumberAccess))
			dst.WriteByte(byte(n >> 8))
			dst.WriteByte(byte(n))
		default:
			return p.unsupported()
		}
	case base.TagReadResponse:
		switch p.requestType {
		case TagSNResponseData:
			if err := p.checkcount(); err != nil {
				return err
			}
			dst.WriteByte(byte(base.TagReadResponse))
			writelength(dst, p.count)
			if p.count == 1 {
				dst.WriteByte(byte(TagSNResponseData))
			}
			dst.Write(p.data)
		case TagSNResponseAccessError:
			dst.WriteByte(byte(base.TagReadResponse))
			writelength(dst, 1)
			dst.WriteByte(byte(TagSNResponseAccessError))
			dst.WriteByte(byte(p.status))
		case TagSNResponseDataBlock:
			n, err := p.blocknumber()
			if err != nil {
				return err
			}
			dst.WriteByte(byte(base.TagReadResponse))
			writelength(dst, 1)
			dst.WriteByte(byte(TagSNResponseDataBlock))
			writebool(dst, p.lastBlock)
			dst.WriteByte(byte(n >> 8))
			dst.WriteByte(byte(n))
			writeraw(dst, p.data)
		default:
			return p.unsupported()
		}
	case base.TagWriteRequest:
		if p.requestType != TagSNVariableName && p.requestType != TagSNParameterizedAccess {
			return p.unsupported()
		}
		if err := p.checkcount(); err != nil {
			return err
		}
		dst.WriteByte(byte(base.TagWriteRequest))
		writelength(dst, p.count)
		dst.Write(p.descriptor)
		writelength(dst, p.count)
		dst.Write(p.data)
	case base.TagWriteResponse:
		if err := p.checkcount(); err != nil {
			return err
		}
		dst.WriteByte(byte(base.TagWriteResponse))
		writelength(dst, p.count)
		switch {
		case p.count > 1:
			dst.Write(p.data)
		case p.status == base.TagResultSuccess:
			dst.WriteByte(0)
		default:
			dst.WriteByte(1)
			dst.WriteByte(byte(p.status))
		}
	case base.TagInformationReportRequest:
		if err := p.checkcount(); err != nil {
			return err
		}
		dst.WriteByte(byte(base.TagInformationReportRequest))
		p.writetime(dst)
		writelength(dst, p.count)
		dst.Write(p.descriptor)
		writelength(dst, p.count)
		dst.Write(p.data)
	default:
		return p.unsupported()
	}
	return nil
}
