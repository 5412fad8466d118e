package dlmsal

import (
	"fmt"
	"slices"

	"github.com/cybroslabs/dlms-session-go/base"
	"golang.org/x/crypto/cryptobyte"
)

// Block is a decoded block transfer apdu header with its raw data.
type Block struct {
	Command    base.CosemTag
	Type       RequestType
	InvokeID   byte
	Last       bool
	Number     uint32
	Status     base.DlmsResultTag
	Descriptor []byte // first block of set and action request only
	Data       []byte
}

func incomplete(what string) error {
	return base.NewFramingError(fmt.Errorf("%w: %s", ErrIncompleteBlock, what))
}

func notblock(cmd base.CosemTag, t byte) error {
	return base.NewFramingError(fmt.Errorf("%w: %v type %d", ErrNotBlock, cmd, t))
}

// readraw reads BER length prefixed raw data, the data are never taken before all of them arrived.
func readraw(s *cryptobyte.String, b *Block) error {
	n, ok := base.ReadLength(s)
	if !ok {
		return incomplete("no space for raw data length")
	}
	if uint(len(*s)) < n {
		return incomplete(fmt.Sprintf("announced %d bytes, have %d", n, len(*s)))
	}
	var raw []byte
	s.ReadBytes(&raw, int(n))
	b.Data = slices.Clone(raw)
	return nil
}

func readlnblock(s *cryptobyte.String, b *Block) error {
	var last uint8
	if !s.ReadUint8(&last) || !s.ReadUint32(&b.Number) {
		return incomplete("no space for block header")
	}
	b.Last = last != 0
	return readraw(s, b)
}

func readdescriptor(s *cryptobyte.String, b *Block) error {
	var d []byte
	if !s.ReadBytes(&d, lnDescriptorLength) {
		return incomplete("no space for descriptor")
	}
	b.Descriptor = slices.Clone(d)
	return nil
}

// ParseLNBlock decodes LN apdu carrying a data block or block acknowledge.
func ParseLNBlock(apdu []byte) (b Block, err error) {
	s := cryptobyte.String(apdu)
	var cmd, typ uint8
	if !s.ReadUint8(&cmd) || !s.ReadUint8(&typ) || !s.ReadUint8(&b.InvokeID) {
		return b, incomplete("no space for apdu header")
	}
	b.Command = base.CosemTag(cmd)
	b.Type = RequestType(typ)

	switch {
	case b.Command == base.TagGetResponse && b.Type == TagGetResponseWithDataBlock:
		var last, choice uint8
		if !s.ReadUint8(&last) || !s.ReadUint32(&b.Number) || !s.ReadUint8(&choice) {
			return b, incomplete("no space for block header")
		}
		b.Last = last != 0
		switch choice {
		case 0:
			err = readraw(&s, &b)
		case 1:
			var st uint8
			if !s.ReadUint8(&st) {
				return b, incomplete("no space for result")
			}
			b.Status = base.DlmsResultTag(st)
		default:
			return b, base.NewFramingError(fmt.Errorf("unexpected data block result choice 0x%02x", choice))
		}
	case b.Command == base.TagGetRequest && b.Type == TagGetRequestNext,
		b.Command == base.TagActionRequest && b.Type == TagActionRequestNextPBlock,
		b.Command == base.TagActionResponse && b.Type == TagActionResponseNextPBlock,
		b.Command == base.TagSetResponse && b.Type == TagSetResponseDataBlock:
		if !s.ReadUint32(&b.Number) {
			return b, incomplete("no space for block number")
		}
	case b.Command == base.TagSetResponse && b.Type == TagSetResponseLastDataBlock:
		var st uint8
		if !s.ReadUint8(&st) || !s.ReadUint32(&b.Number) {
			return b, incomplete("no space for block number")
		}
		b.Status = base.DlmsResultTag(st)
		b.Last = true
	case b.Command == base.TagSetRequest && b.Type == TagSetRequestWithFirstDataBlock:
		if err = readdescriptor(&s, &b); err != nil {
			return
		}
		var access uint8
		if !s.ReadUint8(&access) {
			return b, incomplete("no space for access selection")
		}
		if access != 0 {
			return b, base.NewFramingError(fmt.Errorf("%w: access selection in first data block", ErrUnsupportedCommand))
		}
		err = readlnblock(&s, &b)
	case b.Command == base.TagActionRequest && b.Type == TagActionRequestWithFirstPBlock:
		if err = readdescriptor(&s, &b); err != nil {
			return
		}
		err = readlnblock(&s, &b)
	case b.Command == base.TagSetRequest && b.Type == TagSetRequestWithDataBlock,
		b.Command == base.TagActionRequest && b.Type == TagActionRequestWithPBlock,
		b.Command == base.TagActionResponse && b.Type == TagActionResponseWithPBlock:
		err = readlnblock(&s, &b)
	default:
		return b, notblock(b.Command, typ)
	}
	if err != nil {
		return
	}
	if !s.Empty() {
		return b, base.NewFramingError(fmt.Errorf("%d unexpected bytes after block", len(s)))
	}
	return b, nil
}

// ParseSNBlock decodes SN read response data block or read request of the next block.
func ParseSNBlock(apdu []byte) (b Block, err error) {
	s := cryptobyte.String(apdu)
	var cmd, choice uint8
	if !s.ReadUint8(&cmd) {
		return b, incomplete("no space for apdu header")
	}
	b.Command = base.CosemTag(cmd)
	n, ok := base.ReadLength(&s)
	if !ok || !s.ReadUint8(&choice) {
		return b, incomplete("no space for apdu header")
	}
	if n != 1 {
		return b, base.NewFramingError(fmt.Errorf("expecting single item in block transfer, got %d", n))
	}
	b.Type = RequestType(choice)

	var number uint16
	switch {
	case b.Command == base.TagReadResponse && b.Type == TagSNResponseDataBlock:
		var last uint8
		if !s.ReadUint8(&last) || !s.ReadUint16(&number) {
			return b, incomplete("no space for block header")
		}
		b.Last = last != 0
		b.Number = uint32(number)
		if err = readraw(&s, &b); err != nil {
			return
		}
	case b.Command == base.TagReadRequest && b.Type == TagSNBlockNumberAccess:
		if !s.ReadUint16(&number) {
			return b, incomplete("no space for block number")
		}
		b.Number = uint32(number)
	default:
		return b, notblock(b.Command, choice)
	}
	if !s.Empty() {
		return b, base.NewFramingError(fmt.Errorf("%d unexpected bytes after block", len(s)))
	}
	return b, nil
}

// SplitBlocks cuts data into blocks of at most size bytes, returned blocks share memory with data.
// Empty data yields one empty block.
func SplitBlocks(data []byte, size int) ([][]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: block size %d", base.ErrInvalidArgument, size)
	}
	if len(data) == 0 {
		return [][]byte{{}}, nil
	}
	ret := make([][]byte, 0, (len(data)+size-1)/size)
	for len(data) > size {
		ret = append(ret, data[:size:size])
		data = data[size:]
	}
	return append(ret, data), nil
}
