package dlmsal

import (
	"context"
	"testing"

	"github.com/cybroslabs/dlms-session-go/base"
	"github.com/cybroslabs/dlms-session-go/ciphering"
	"github.com/cybroslabs/dlms-session-go/hdlc"
	"github.com/stretchr/testify/require"
)

var initiateResponse = []byte{0x08, 0x00, 0x06, 0x5f, 0x1f, 0x04, 0x00, 0x00, 0x10, 0x1d, 0x00, 0xef, 0x00, 0x07}

func TestInitiateRequest(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	s := NewSettingsLN()
	_, err := s.InitiateRequest(ctx)
	require.ErrorIs(err, ErrNotAssociated)

	associated(t, s, base.ReferencingLN)
	req, err := s.InitiateRequest(ctx)
	require.NoError(err)
	expected := append([]byte{0x01, 0x00, 0x00, 0x00, 0x06, 0x5f, 0x1f, 0x04, 0x00}, s.Conformance()...)
	require.Equal(append(expected, 0xff, 0xff), req)

	cipher := ciphering.New()
	require.NoError(cipher.SetDedicatedKey([]byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}))
	s = NewSettingsLN()
	require.NoError(s.BeginAssociation(base.ReferencingLN, hdlc.DefaultLimits(), cipher))
	require.NoError(s.SetMaxPduSize(0x400))
	req, err = s.InitiateRequest(ctx)
	require.NoError(err)
	require.Equal([]byte{0x01, 0x01, 0x10, 0x00, 0x01}, req[:5])
	require.Equal([]byte{0x04, 0x00}, req[len(req)-2:])
}

func TestApplyInitiateResponse(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	s := associated(t, NewSettingsLN(), base.ReferencingLN)
	ir, err := s.ApplyInitiateResponse(ctx, initiateResponse)
	require.NoError(err)
	require.Nil(ir.QualityOfService)
	require.Equal(uint32(0x00101d), ir.Conformance)
	require.Equal(uint16(0xef), ir.MaxPduSize)
	require.Equal(uint16(7), ir.VAAddress)

	c := s.LN()
	require.True(c.Get())
	require.True(c.Set())
	require.True(c.Action())
	require.True(c.SelectiveAccess())
	require.True(c.BlockTransferWithGet())
	require.False(c.BlockTransferWithSet())
	require.False(c.MultipleReferences())
	require.Equal(uint16(0xef), s.MaxPduSize())
	require.Equal(int(hdlc.DefaultMaxInfo), s.BlockSize())

	s = associated(t, NewSettingsLN(), base.ReferencingLN)
	_, err = s.ApplyInitiateResponse(ctx, []byte{0x0e, 0x01, 0x06, 0x02})
	var cse *ConfirmedServiceError
	require.ErrorAs(err, &cse)
	require.Equal(byte(6), cse.Err)

	bad := append([]byte{}, initiateResponse...)
	bad[2] = 0x05
	_, err = s.ApplyInitiateResponse(ctx, bad)
	c2, _ := base.ClassOf(err)
	require.Equal(base.ClassFraming, c2)
	_, err = s.ApplyInitiateResponse(ctx, initiateResponse[:12])
	require.Error(err)
	_, err = s.ApplyInitiateResponse(ctx, []byte{0x61})
	require.Error(err)
}

func TestCipheredInitiate(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	key := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}
	ak := []byte{0xd0, 0xd1, 0xd2, 0xd3, 0xd4, 0xd5, 0xd6, 0xd7, 0xd8, 0xd9, 0xda, 0xdb, 0xdc, 0xdd, 0xde, 0xdf}
	clientTitle := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	serverTitle := []byte{0x4d, 0x4d, 0x4d, 0, 0, 0xbc, 0x61, 0x4e}
	client, err := ciphering.NewCipher(&ciphering.CipheringSettings{
		Security:             base.SecurityAuthenticationEncryption,
		SystemTitle:          clientTitle,
		RecipientSystemTitle: serverTitle,
		BlockCipherKey:       key,
		AuthenticationKey:    ak,
	})
	require.NoError(err)
	server, err := ciphering.NewCipher(&ciphering.CipheringSettings{
		Security:             base.SecurityAuthenticationEncryption,
		SystemTitle:          serverTitle,
		RecipientSystemTitle: clientTitle,
		BlockCipherKey:       key,
		AuthenticationKey:    ak,
	})
	require.NoError(err)

	s := NewSettingsLN()
	require.NoError(s.BeginAssociation(base.ReferencingLN, hdlc.DefaultLimits(), client))
	req, err := s.InitiateRequest(ctx)
	require.NoError(err)
	require.Equal(byte(base.TagGloInitiateRequest), req[0])
	tag, plain, err := server.Decrypt(ctx, req)
	require.NoError(err)
	require.Equal(base.TagGloInitiateRequest, tag)
	require.Equal(byte(base.TagInitiateRequest), plain[0])

	resp, err := server.Encrypt(ctx, base.TagGloInitiateResponse, initiateResponse)
	require.NoError(err)
	ir, err := s.ApplyInitiateResponse(ctx, resp)
	require.NoError(err)
	require.Equal(uint16(0xef), ir.MaxPduSize)

	// replayed response is refused by the cipher
	_, err = s.ApplyInitiateResponse(ctx, resp)
	require.Error(err)
	c, _ := base.ClassOf(err)
	require.Equal(base.ClassSecurity, c)
}
