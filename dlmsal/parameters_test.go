package dlmsal

import (
	"bytes"
	"testing"
	"time"

	"github.com/cybroslabs/dlms-session-go/base"
	"github.com/stretchr/testify/require"
)

var clockObis = DlmsObis{A: 0, B: 0, C: 1, D: 0, E: 0, F: 255}

func encodeln(t *testing.T, p LNParameters) []byte {
	var b bytes.Buffer
	require.NoError(t, p.Encode(&b))
	return b.Bytes()
}

func encodesn(t *testing.T, p SNParameters) []byte {
	var b bytes.Buffer
	require.NoError(t, p.Encode(&b))
	return b.Bytes()
}

func TestBuilderFlagsFollowSnapshot(t *testing.T) {
	require := require.New(t)

	s := associated(t, NewSettingsLN(), base.ReferencingLN)
	for _, ci := range [][2]uint32{{0, 0}, {3, 1}, {3, 2}, {3, 3}, {1, 0}, {7, 7}} {
		s.SetCount(ci[0])
		s.SetIndex(ci[1])
		p := NewLNParameters(s.Snapshot(), base.TagGetResponse, TagGetResponseWithDataBlock, nil, nil, 0)
		require.Equal(ci[0] != ci[1], p.MultipleBlocks())
		require.Equal(ci[0] == ci[1], p.LastBlock())
		require.NotEqual(p.MultipleBlocks(), p.LastBlock())

		sp := NewSNParameters(s.Snapshot(), base.TagReadResponse, TagSNResponseDataBlock, 1, nil, nil, 0)
		require.Equal(s.HasMoreBlocks(), sp.MultipleBlocks())
		require.Equal(!s.HasMoreBlocks(), sp.LastBlock())
	}

	// later changes of settings are not visible to the builder
	s.SetCount(2)
	s.SetIndex(1)
	data := []byte{1, 2, 3}
	p := NewLNParameters(s.Snapshot(), base.TagSetRequest, TagSetRequestWithDataBlock, nil, data, 0)
	s.SetIndex(2)
	_, err := s.NextBlockIndex()
	require.NoError(err)
	data[0] = 9
	require.False(p.LastBlock())
	require.Equal(uint32(1), p.BlockIndex())
	require.Equal([]byte{1, 2, 3}, p.Data())
}

func TestLNGetRequest(t *testing.T) {
	require := require.New(t)

	s := associated(t, NewSettingsLN(), base.ReferencingLN)
	s.NextInvokeID()
	desc := EncodeLNDescriptor(3, DlmsObis{A: 1, B: 0, C: 1, D: 8, E: 0, F: 255}, 2)
	p := NewLNParameters(s.Snapshot(), base.TagGetRequest, TagGetRequestNormal, desc, nil, 0)
	require.Equal(byte(0xc1), p.InvokeID())
	require.Equal([]byte{0xc0, 0x01, 0xc1, 0x00, 0x03, 0x01, 0x00, 0x01, 0x08, 0x00, 0xff, 0x02, 0x00}, encodeln(t, p))

	// with access selection
	p = NewLNParameters(s.Snapshot(), base.TagGetRequest, TagGetRequestNormal, desc, []byte{0x01, 0x02, 0x00}, 0)
	require.Equal([]byte{0xc0, 0x01, 0xc1, 0x00, 0x03, 0x01, 0x00, 0x01, 0x08, 0x00, 0xff, 0x02, 0x01, 0x01, 0x02, 0x00}, encodeln(t, p))

	_, err := s.NextBlockIndex()
	require.NoError(err)
	p = NewLNParameters(s.Snapshot(), base.TagGetRequest, TagGetRequestNext, nil, nil, 0)
	apdu := encodeln(t, p)
	require.Equal([]byte{0xc0, 0x02, 0xc1, 0x00, 0x00, 0x00, 0x02}, apdu)
	b, err := ParseLNBlock(apdu)
	require.NoError(err)
	require.Equal(uint32(2), b.Number)
	require.Equal(TagGetRequestNext, b.Type)

	var dst bytes.Buffer
	err = NewLNParameters(s.Snapshot(), base.TagGetRequest, TagGetRequestNormal, desc[:8], nil, 0).Encode(&dst)
	require.ErrorIs(err, base.ErrInvalidArgument)
	err = NewLNParameters(s.Snapshot(), base.TagGetRequest, TagGetRequestWithList, desc, nil, 0).Encode(&dst)
	require.ErrorIs(err, ErrUnsupportedCommand)
	err = NewLNParameters(s.Snapshot(), base.TagReadRequest, TagSNVariableName, desc, nil, 0).Encode(&dst)
	require.ErrorIs(err, ErrUnsupportedCommand)
	err = NewSNParameters(s.Snapshot(), base.TagReadRequest, TagSNVariableName, 1, SNVariableName(0xfa00), nil, 0).Encode(&dst)
	require.ErrorIs(err, base.ErrInvalidArgument)
}

func TestLNGetResponseBlock(t *testing.T) {
	require := require.New(t)

	s := associated(t, NewSettingsLN(), base.ReferencingLN)
	s.NextInvokeID()
	s.SetCount(1)
	s.SetIndex(1)
	p := NewLNParameters(s.Snapshot(), base.TagGetResponse, TagGetResponseWithDataBlock, nil, []byte{0xaa, 0xbb, 0xcc}, 0)
	apdu := encodeln(t, p)
	require.Equal([]byte{0xc4, 0x02, 0xc1, 0x01, 0x00, 0x00, 0x00, 0x01, 0x00, 0x03, 0xaa, 0xbb, 0xcc}, apdu)

	b, err := ParseLNBlock(apdu)
	require.NoError(err)
	require.Equal(Block{
		Command:  base.TagGetResponse,
		Type:     TagGetResponseWithDataBlock,
		InvokeID: 0xc1,
		Last:     true,
		Number:   1,
		Data:     []byte{0xaa, 0xbb, 0xcc},
	}, b)

	// announced length not fully arrived
	for i := 1; i < len(apdu); i++ {
		_, err = ParseLNBlock(apdu[:i])
		require.ErrorIs(err, ErrIncompleteBlock)
		c, _ := base.ClassOf(err)
		require.Equal(base.ClassFraming, c)
	}
	_, err = ParseLNBlock(append(apdu, 0))
	require.Error(err)

	p = NewLNParameters(s.Snapshot(), base.TagGetResponse, TagGetResponseWithDataBlock, nil, nil, base.TagResultDataBlockNumberInvalid)
	apdu = encodeln(t, p)
	require.Equal([]byte{0xc4, 0x02, 0xc1, 0x01, 0x00, 0x00, 0x00, 0x01, 0x01, 0x13}, apdu)
	b, err = ParseLNBlock(apdu)
	require.NoError(err)
	require.Equal(base.TagResultDataBlockNumberInvalid, b.Status)
	require.Nil(b.Data)

	p = NewLNParameters(s.Snapshot(), base.TagGetResponse, TagGetResponseNormal, nil, []byte{0x12, 0x00, 0x05}, 0)
	require.Equal([]byte{0xc4, 0x01, 0xc1, 0x00, 0x12, 0x00, 0x05}, encodeln(t, p))
	_, err = ParseLNBlock(encodeln(t, p))
	require.ErrorIs(err, ErrNotBlock)
}

func TestLNSetAndActionBlocks(t *testing.T) {
	require := require.New(t)

	s := associated(t, NewSettingsLN(), base.ReferencingLN)
	s.NextInvokeID()
	desc := EncodeLNDescriptor(8, clockObis, 2)
	s.SetCount(2)
	s.SetIndex(1)

	apdu := encodeln(t, NewLNParameters(s.Snapshot(), base.TagSetRequest, TagSetRequestWithFirstDataBlock, desc, []byte{1, 2}, 0))
	require.Equal([]byte{0xc1, 0x02, 0xc1, 0x00, 0x08, 0x00, 0x00, 0x01, 0x00, 0x00, 0xff, 0x02, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0x02, 0x01, 0x02}, apdu)
	b, err := ParseLNBlock(apdu)
	require.NoError(err)
	require.Equal(desc, b.Descriptor)
	require.False(b.Last)
	require.Equal([]byte{1, 2}, b.Data)

	_, err = s.NextBlockIndex()
	require.NoError(err)
	s.SetIndex(2)
	apdu = encodeln(t, NewLNParameters(s.Snapshot(), base.TagSetRequest, TagSetRequestWithDataBlock, nil, []byte{3}, 0))
	require.Equal([]byte{0xc1, 0x03, 0xc1, 0x01, 0x00, 0x00, 0x00, 0x02, 0x01, 0x03}, apdu)

	apdu = encodeln(t, NewLNParameters(s.Snapshot(), base.TagSetResponse, TagSetResponseLastDataBlock, nil, nil, base.TagResultSuccess))
	require.Equal([]byte{0xc5, 0x03, 0xc1, 0x00, 0x00, 0x00, 0x00, 0x02}, apdu)
	b, err = ParseLNBlock(apdu)
	require.NoError(err)
	require.True(b.Last)
	require.Equal(uint32(2), b.Number)

	apdu = encodeln(t, NewLNParameters(s.Snapshot(), base.TagSetResponse, TagSetResponseDataBlock, nil, nil, 0))
	require.Equal([]byte{0xc5, 0x02, 0xc1, 0x00, 0x00, 0x00, 0x02}, apdu)

	apdu = encodeln(t, NewLNParameters(s.Snapshot(), base.TagSetRequest, TagSetRequestNormal, desc, []byte{0x11, 0x05}, 0))
	require.Equal([]byte{0xc1, 0x01, 0xc1, 0x00, 0x08, 0x00, 0x00, 0x01, 0x00, 0x00, 0xff, 0x02, 0x00, 0x11, 0x05}, apdu)

	mdesc := EncodeLNDescriptor(15, DlmsObis{A: 0, B: 0, C: 40, D: 0, E: 0, F: 255}, 1)
	apdu = encodeln(t, NewLNParameters(s.Snapshot(), base.TagActionRequest, TagActionRequestWithFirstPBlock, mdesc, []byte{0x09}, 0))
	require.Equal([]byte{0xc3, 0x04, 0xc1, 0x00, 0x0f, 0x00, 0x00, 0x28, 0x00, 0x00, 0xff, 0x01, 0x01, 0x00, 0x00, 0x00, 0x02, 0x01, 0x09}, apdu)
	b, err = ParseLNBlock(apdu)
	require.NoError(err)
	require.Equal(mdesc, b.Descriptor)
	require.True(b.Last)

	apdu = encodeln(t, NewLNParameters(s.Snapshot(), base.TagActionRequest, TagActionRequestNormal, mdesc, nil, 0))
	require.Equal([]byte{0xc3, 0x01, 0xc1, 0x00, 0x0f, 0x00, 0x00, 0x28, 0x00, 0x00, 0xff, 0x01, 0x00}, apdu)

	apdu = encodeln(t, NewLNParameters(s.Snapshot(), base.TagActionResponse, TagActionResponseNormal, nil, []byte{0x09, 0x01, 0xaa}, base.TagResultSuccess))
	require.Equal([]byte{0xc7, 0x01, 0xc1, 0x00, 0x01, 0x00, 0x09, 0x01, 0xaa}, apdu)
	apdu = encodeln(t, NewLNParameters(s.Snapshot(), base.TagActionResponse, TagActionResponseNormal, nil, nil, base.TagResultReadWriteDenied))
	require.Equal([]byte{0xc7, 0x01, 0xc1, 0x03, 0x00}, apdu)

	apdu = encodeln(t, NewLNParameters(s.Snapshot(), base.TagActionResponse, TagActionResponseWithPBlock, nil, []byte{0xee}, 0))
	b, err = ParseLNBlock(apdu)
	require.NoError(err)
	require.Equal(base.TagActionResponse, b.Command)
	require.Equal([]byte{0xee}, b.Data)

	apdu = encodeln(t, NewLNParameters(s.Snapshot(), base.TagActionRequest, TagActionRequestNextPBlock, nil, nil, 0))
	require.Equal([]byte{0xc3, 0x02, 0xc1, 0x00, 0x00, 0x00, 0x02}, apdu)
}

func TestDataNotification(t *testing.T) {
	require := require.New(t)

	s := associated(t, NewSettingsLN(), base.ReferencingLN)
	s.NextInvokeID()
	p := NewLNParameters(s.Snapshot(), base.TagDataNotification, 0, nil, []byte{0x12, 0x00, 0x01}, 0)
	require.Equal([]byte{0x0f, 0xc0, 0x00, 0x00, 0x01, 0x00, 0x12, 0x00, 0x01}, encodeln(t, p))
	_, ok := p.Time()
	require.False(ok)

	tp := p.WithTime(time.Date(2024, 3, 15, 10, 20, 30, 0, time.UTC))
	dt, ok := tp.Time()
	require.True(ok)
	require.Equal(byte(5), dt.Date.DayOfWeek)
	_, ok = p.Time()
	require.False(ok)
	require.Equal([]byte{
		0x0f, 0xc0, 0x00, 0x00, 0x01,
		0x0c, 0x07, 0xe8, 0x03, 0x0f, 0x05, 0x0a, 0x14, 0x1e, 0x00, 0x00, 0x00, 0x00,
		0x12, 0x00, 0x01,
	}, encodeln(t, tp))
}

func TestSNParameters(t *testing.T) {
	require := require.New(t)

	s := associated(t, NewSettingsSN(), base.ReferencingSN)
	p := NewSNParameters(s.Snapshot(), base.TagReadRequest, TagSNVariableName, 1, SNVariableName(0xfa00), nil, 0)
	require.Equal(1, p.Count())
	require.Equal([]byte{0x05, 0x01, 0x02, 0xfa, 0x00}, encodesn(t, p))

	desc := append(SNVariableName(0xfa08), SNParameterizedAccess(0xfa10, 1, []byte{0x02, 0x00})...)
	p = NewSNParameters(s.Snapshot(), base.TagReadRequest, TagSNParameterizedAccess, 2, desc, nil, 0)
	require.Equal([]byte{0x05, 0x02, 0x02, 0xfa, 0x08, 0x04, 0xfa, 0x10, 0x01, 0x02, 0x00}, encodesn(t, p))

	_, err := s.NextBlockIndex()
	require.NoError(err)
	apdu := encodesn(t, NewSNParameters(s.Snapshot(), base.TagReadRequest, TagSNBlockNumberAccess, 1, nil, nil, 0))
	require.Equal([]byte{0x05, 0x01, 0x05, 0x00, 0x02}, apdu)
	b, err := ParseSNBlock(apdu)
	require.NoError(err)
	require.Equal(uint32(2), b.Number)
	require.Equal(TagSNBlockNumberAccess, b.Type)

	apdu = encodesn(t, NewSNParameters(s.Snapshot(), base.TagReadResponse, TagSNResponseDataBlock, 1, nil, []byte{0xaa, 0xbb}, 0))
	require.Equal([]byte{0x0c, 0x01, 0x02, 0x01, 0x00, 0x02, 0x02, 0xaa, 0xbb}, apdu)
	b, err = ParseSNBlock(apdu)
	require.NoError(err)
	require.True(b.Last)
	require.Equal([]byte{0xaa, 0xbb}, b.Data)
	_, err = ParseSNBlock(apdu[:len(apdu)-1])
	require.ErrorIs(err, ErrIncompleteBlock)

	apdu = encodesn(t, NewSNParameters(s.Snapshot(), base.TagReadResponse, TagSNResponseData, 1, nil, []byte{0x11, 0x05}, 0))
	require.Equal([]byte{0x0c, 0x01, 0x00, 0x11, 0x05}, apdu)
	_, err = ParseSNBlock(apdu)
	require.ErrorIs(err, ErrNotBlock)
	require.Equal([]byte{0x0c, 0x01, 0x01, 0x04}, encodesn(t, NewSNParameters(s.Snapshot(), base.TagReadResponse, TagSNResponseAccessError, 1, nil, nil, base.TagResultObjectUndefined)))

	require.Equal([]byte{0x06, 0x01, 0x02, 0xfa, 0x08, 0x01, 0x11, 0x05},
		encodesn(t, NewSNParameters(s.Snapshot(), base.TagWriteRequest, TagSNVariableName, 1, SNVariableName(0xfa08), []byte{0x11, 0x05}, 0)))
	require.Equal([]byte{0x0d, 0x01, 0x00}, encodesn(t, NewSNParameters(s.Snapshot(), base.TagWriteResponse, 0, 1, nil, nil, base.TagResultSuccess)))
	require.Equal([]byte{0x0d, 0x01, 0x01, 0x03}, encodesn(t, NewSNParameters(s.Snapshot(), base.TagWriteResponse, 0, 1, nil, nil, base.TagResultReadWriteDenied)))
	require.Equal([]byte{0x18, 0x00, 0x01, 0x02, 0xfa, 0x08, 0x01, 0x11, 0x05},
		encodesn(t, NewSNParameters(s.Snapshot(), base.TagInformationReportRequest, TagSNVariableName, 1, SNVariableName(0xfa08), []byte{0x11, 0x05}, 0)))

	var dst bytes.Buffer
	err = NewSNParameters(s.Snapshot(), base.TagReadRequest, TagSNVariableName, 0, nil, nil, 0).Encode(&dst)
	require.ErrorIs(err, base.ErrInvalidArgument)
	err = NewSNParameters(s.Snapshot(), base.TagGetRequest, TagSNVariableName, 1, nil, nil, 0).Encode(&dst)
	require.ErrorIs(err, ErrUnsupportedCommand)
	err = NewLNParameters(s.Snapshot(), base.TagGetRequest, TagGetRequestNext, nil, nil, 0).Encode(&dst)
	require.ErrorIs(err, base.ErrInvalidArgument)
}

func TestSplitBlocks(t *testing.T) {
	require := require.New(t)

	data := make([]byte, 300)
	blocks, err := SplitBlocks(data, 128)
	require.NoError(err)
	require.Len(blocks, 3)
	require.Len(blocks[0], 128)
	require.Len(blocks[1], 128)
	require.Len(blocks[2], 44)

	blocks, err = SplitBlocks(data[:256], 128)
	require.NoError(err)
	require.Len(blocks, 2)

	blocks, err = SplitBlocks(nil, 128)
	require.NoError(err)
	require.Len(blocks, 1)
	require.Empty(blocks[0])

	_, err = SplitBlocks(data, 0)
	require.ErrorIs(err, base.ErrInvalidArgument)
}
