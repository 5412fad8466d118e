package base

const (
	DlmsVersion = 0x06

	VAANameLN = 0x0007
	VAANameSN = 0xFA00

	SystemTitleLength = 8
	ConformanceLength = 3
)

// Referencing selects how COSEM objects are addressed during an association.
type Referencing byte

const (
	ReferencingLN Referencing = 1 // logical name, OBIS code + attribute index
	ReferencingSN Referencing = 2 // short name, 16-bit base address
)

func (r Referencing) String() string {
	switch r {
	case ReferencingLN:
		return "LN"
	case ReferencingSN:
		return "SN"
	default:
		return "unknown"
	}
}

type DlmsSecurity byte

const (
	SecurityNone                     DlmsSecurity = 0    // Transport security is not used.
	SecurityAuthentication           DlmsSecurity = 0x10 // Authentication security is used.
	SecurityEncryption               DlmsSecurity = 0x20 // Encryption security is used.
	SecurityAuthenticationEncryption DlmsSecurity = 0x30 // Both, tag and ciphered content.

	SecurityMask           = 0x30
	SecurityCompressed     = 0x80
	SecurityKeySet         = 0x40
	SecuritySuiteIdMask    = 0x0f
	SecurityControlFlagsOk = SecurityMask | SecurityKeySet | SecuritySuiteIdMask
)

func (s DlmsSecurity) String() string {
	switch s {
	case SecurityNone:
		return "none"
	case SecurityAuthentication:
		return "authentication"
	case SecurityEncryption:
		return "encryption"
	case SecurityAuthenticationEncryption:
		return "authentication-encryption"
	default:
		return "unknown"
	}
}

type SecuritySuite byte

const (
	SecuritySuite0 SecuritySuite = 0 // AES-GCM-128
	SecuritySuite1 SecuritySuite = 1 // AES-GCM-128, ECDH P-256, ECDSA P-256
	SecuritySuite2 SecuritySuite = 2 // AES-GCM-256, ECDH P-384, ECDSA P-384
)

// KeyLength returns AES key length used by the suite.
func (s SecuritySuite) KeyLength() int {
	if s == SecuritySuite2 {
		return 32
	}
	return 16
}

func (s SecuritySuite) Valid() bool {
	return s <= SecuritySuite2
}

// Conformance block, LN and SN share bit positions, each referencing accepts its own subset
const (
	ConformanceBlockReservedZero         = 0b100000000000000000000000
	ConformanceBlockGeneralProtection    = 0b010000000000000000000000
	ConformanceBlockGeneralBlockTransfer = 0b001000000000000000000000
	ConformanceBlockRead                 = 0b000100000000000000000000

	ConformanceBlockWrite            = 0b000010000000000000000000
	ConformanceBlockUnconfirmedWrite = 0b000001000000000000000000
	ConformanceBlockReservedSix      = 0b000000100000000000000000
	ConformanceBlockReservedSeven    = 0b000000010000000000000000

	ConformanceBlockAttribute0SupportedWithSet = 0b000000001000000000000000
	ConformanceBlockPriorityMgmtSupported      = 0b000000000100000000000000
	ConformanceBlockAttribute0SupportedWithGet = 0b000000000010000000000000
	ConformanceBlockBlockTransferWithGetOrRead = 0b000000000001000000000000

	ConformanceBlockBlockTransferWithSetOrWrite = 0b000000000000100000000000
	ConformanceBlockBlockTransferWithAction     = 0b000000000000010000000000
	ConformanceBlockMultipleReferences          = 0b000000000000001000000000
	ConformanceBlockInformationReport           = 0b000000000000000100000000

	ConformanceBlockDataNotification   = 0b000000000000000010000000
	ConformanceBlockAccess             = 0b000000000000000001000000
	ConformanceBlockParametrizedAccess = 0b000000000000000000100000
	ConformanceBlockGet                = 0b000000000000000000010000

	ConformanceBlockSet               = 0b000000000000000000001000
	ConformanceBlockSelectiveAccess   = 0b000000000000000000000100
	ConformanceBlockEventNotification = 0b000000000000000000000010
	ConformanceBlockAction            = 0b000000000000000000000001

	ConformanceBlockMaskLN = ConformanceBlockGeneralProtection | ConformanceBlockGeneralBlockTransfer |
		ConformanceBlockAttribute0SupportedWithSet | ConformanceBlockPriorityMgmtSupported |
		ConformanceBlockAttribute0SupportedWithGet | ConformanceBlockBlockTransferWithGetOrRead |
		ConformanceBlockBlockTransferWithSetOrWrite | ConformanceBlockBlockTransferWithAction |
		ConformanceBlockMultipleReferences | ConformanceBlockDataNotification | ConformanceBlockAccess |
		ConformanceBlockGet | ConformanceBlockSet | ConformanceBlockSelectiveAccess |
		ConformanceBlockEventNotification | ConformanceBlockAction

	ConformanceBlockMaskSN = ConformanceBlockGeneralProtection | ConformanceBlockGeneralBlockTransfer |
		ConformanceBlockRead | ConformanceBlockWrite | ConformanceBlockUnconfirmedWrite |
		ConformanceBlockBlockTransferWithGetOrRead | ConformanceBlockBlockTransferWithSetOrWrite |
		ConformanceBlockMultipleReferences | ConformanceBlockInformationReport |
		ConformanceBlockDataNotification | ConformanceBlockParametrizedAccess
)

type CosemTag byte

const (
	// ---- standardized DLMS APDUs
	TagInitiateRequest          CosemTag = 1
	TagReadRequest              CosemTag = 5
	TagWriteRequest             CosemTag = 6
	TagInitiateResponse         CosemTag = 8
	TagReadResponse             CosemTag = 12
	TagWriteResponse            CosemTag = 13
	TagConfirmedServiceError    CosemTag = 14
	TagDataNotification         CosemTag = 15
	TagUnconfirmedWriteRequest  CosemTag = 22
	TagInformationReportRequest CosemTag = 24
	TagGloInitiateRequest       CosemTag = 33
	TagGloInitiateResponse      CosemTag = 40
	TagGloConfirmedServiceError CosemTag = 46
	TagAARQ                     CosemTag = 96
	TagAARE                     CosemTag = 97
	TagRLRQ                     CosemTag = 98
	TagRLRE                     CosemTag = 99
	// --- APDUs used for data communication services
	TagGetRequest               CosemTag = 192
	TagSetRequest               CosemTag = 193
	TagEventNotificationRequest CosemTag = 194
	TagActionRequest            CosemTag = 195
	TagGetResponse              CosemTag = 196
	TagSetResponse              CosemTag = 197
	TagActionResponse           CosemTag = 199
	// --- global ciphered pdus
	TagGloReadRequest              CosemTag = 37
	TagGloWriteRequest             CosemTag = 38
	TagGloReadResponse             CosemTag = 44
	TagGloWriteResponse            CosemTag = 45
	TagGloGetRequest               CosemTag = 200
	TagGloSetRequest               CosemTag = 201
	TagGloEventNotificationRequest CosemTag = 202
	TagGloActionRequest            CosemTag = 203
	TagGloGetResponse              CosemTag = 204
	TagGloSetResponse              CosemTag = 205
	TagGloActionResponse           CosemTag = 207
	// --- dedicated ciphered pdus
	TagDedReadRequest              CosemTag = 69
	TagDedWriteRequest             CosemTag = 70
	TagDedReadResponse             CosemTag = 76
	TagDedWriteResponse            CosemTag = 77
	TagDedGetRequest               CosemTag = 208
	TagDedSetRequest               CosemTag = 209
	TagDedEventNotificationRequest CosemTag = 210
	TagDedActionRequest            CosemTag = 211
	TagDedGetResponse              CosemTag = 212
	TagDedSetResponse              CosemTag = 213
	TagDedActionResponse           CosemTag = 215
	TagExceptionResponse           CosemTag = 216
	// --- general ciphering
	TagGeneralGloCiphering  CosemTag = 219
	TagGeneralDedCiphering  CosemTag = 220
	TagGeneralCiphering     CosemTag = 221
	TagGeneralSigning       CosemTag = 223
	TagGeneralBlockTransfer CosemTag = 224
)

// IsDedicated reports whether the tag selects the dedicated (per association) key.
func (t CosemTag) IsDedicated() bool {
	switch t {
	case TagDedReadRequest, TagDedWriteRequest, TagDedReadResponse, TagDedWriteResponse,
		TagDedGetRequest, TagDedSetRequest, TagDedEventNotificationRequest, TagDedActionRequest,
		TagDedGetResponse, TagDedSetResponse, TagDedActionResponse, TagGeneralDedCiphering:
		return true
	}
	return false
}

// IsCiphered reports whether the tag wraps a protected apdu.
func (t CosemTag) IsCiphered() bool {
	switch t {
	case TagGloInitiateRequest, TagGloInitiateResponse, TagGloConfirmedServiceError,
		TagGloReadRequest, TagGloWriteRequest, TagGloReadResponse, TagGloWriteResponse,
		TagGloGetRequest, TagGloSetRequest, TagGloEventNotificationRequest, TagGloActionRequest,
		TagGloGetResponse, TagGloSetResponse, TagGloActionResponse,
		TagGeneralGloCiphering, TagGeneralCiphering:
		return true
	}
	return t.IsDedicated()
}

// IsGeneral reports whether the ciphered apdu carries the sender system title inline.
func (t CosemTag) IsGeneral() bool {
	return t == TagGeneralGloCiphering || t == TagGeneralDedCiphering
}

var glotags = map[CosemTag]CosemTag{
	TagInitiateRequest:          TagGloInitiateRequest,
	TagInitiateResponse:         TagGloInitiateResponse,
	TagConfirmedServiceError:    TagGloConfirmedServiceError,
	TagReadRequest:              TagGloReadRequest,
	TagWriteRequest:             TagGloWriteRequest,
	TagReadResponse:             TagGloReadResponse,
	TagWriteResponse:            TagGloWriteResponse,
	TagGetRequest:               TagGloGetRequest,
	TagSetRequest:               TagGloSetRequest,
	TagEventNotificationRequest: TagGloEventNotificationRequest,
	TagActionRequest:            TagGloActionRequest,
	TagGetResponse:              TagGloGetResponse,
	TagSetResponse:              TagGloSetResponse,
	TagActionResponse:           TagGloActionResponse,
}

var dedtags = map[CosemTag]CosemTag{
	TagReadRequest:              TagDedReadRequest,
	TagWriteRequest:             TagDedWriteRequest,
	TagReadResponse:             TagDedReadResponse,
	TagWriteResponse:            TagDedWriteResponse,
	TagGetRequest:               TagDedGetRequest,
	TagSetRequest:               TagDedSetRequest,
	TagEventNotificationRequest: TagDedEventNotificationRequest,
	TagActionRequest:            TagDedActionRequest,
	TagGetResponse:              TagDedGetResponse,
	TagSetResponse:              TagDedSetResponse,
	TagActionResponse:           TagDedActionResponse,
}

var plaintags = map[CosemTag]CosemTag{
	TagGloInitiateRequest:          TagInitiateRequest,
	TagGloInitiateResponse:         TagInitiateResponse,
	TagGloConfirmedServiceError:    TagConfirmedServiceError,
	TagGloReadRequest:              TagReadRequest,
	TagGloWriteRequest:             TagWriteRequest,
	TagGloReadResponse:             TagReadResponse,
	TagGloWriteResponse:            TagWriteResponse,
	TagGloGetRequest:               TagGetRequest,
	TagGloSetRequest:               TagSetRequest,
	TagGloEventNotificationRequest: TagEventNotificationRequest,
	TagGloActionRequest:            TagActionRequest,
	TagGloGetResponse:              TagGetResponse,
	TagGloSetResponse:              TagSetResponse,
	TagGloActionResponse:           TagActionResponse,
	TagDedReadRequest:              TagReadRequest,
	TagDedWriteRequest:             TagWriteRequest,
	TagDedReadResponse:             TagReadResponse,
	TagDedWriteResponse:            TagWriteResponse,
	TagDedGetRequest:               TagGetRequest,
	TagDedSetRequest:               TagSetRequest,
	TagDedEventNotificationRequest: TagEventNotificationRequest,
	TagDedActionRequest:            TagActionRequest,
	TagDedGetResponse:              TagGetResponse,
	TagDedSetResponse:              TagSetResponse,
	TagDedActionResponse:           TagActionResponse,
}

// PlainTag maps a glo or ded service tag back to the plain service tag.
func PlainTag(t CosemTag) (CosemTag, bool) {
	r, ok := plaintags[t]
	return r, ok
}

// CipheredTag maps a plain service tag to its glo or ded counterpart.
func CipheredTag(t CosemTag, dedicated bool) (CosemTag, bool) {
	if dedicated {
		r, ok := dedtags[t]
		return r, ok
	}
	r, ok := glotags[t]
	return r, ok
}

type DlmsResultTag byte

const (
	// DataAccessResult
	TagResultSuccess                 DlmsResultTag = 0
	TagResultHardwareFault           DlmsResultTag = 1
	TagResultTemporaryFailure        DlmsResultTag = 2
	TagResultReadWriteDenied         DlmsResultTag = 3
	TagResultObjectUndefined         DlmsResultTag = 4
	TagResultObjectClassInconsistent DlmsResultTag = 9
	TagResultObjectUnavailable       DlmsResultTag = 11
	TagResultTypeUnmatched           DlmsResultTag = 12
	TagResultScopeAccessViolated     DlmsResultTag = 13
	TagResultDataBlockUnavailable    DlmsResultTag = 14
	TagResultLongGetAborted          DlmsResultTag = 15
	TagResultNoLongGetInProgress     DlmsResultTag = 16
	TagResultLongSetAborted          DlmsResultTag = 17
	TagResultNoLongSetInProgress     DlmsResultTag = 18
	TagResultDataBlockNumberInvalid  DlmsResultTag = 19
	TagResultOtherReason             DlmsResultTag = 250
)

func (s DlmsResultTag) String() string {
	switch s {
	case TagResultSuccess:
		return "success"
	case TagResultHardwareFault:
		return "hardware-fault"
	case TagResultTemporaryFailure:
		return "temporary-failure"
	case TagResultReadWriteDenied:
		return "read-write-denied"
	case TagResultObjectUndefined:
		return "object-undefined"
	case TagResultObjectClassInconsistent:
		return "object-class-inconsistent"
	case TagResultObjectUnavailable:
		return "object-unavailable"
	case TagResultTypeUnmatched:
		return "type-unmatched"
	case TagResultScopeAccessViolated:
		return "scope-of-access-violated"
	case TagResultDataBlockUnavailable:
		return "data-block-unavailable"
	case TagResultLongGetAborted:
		return "long-get-aborted"
	case TagResultNoLongGetInProgress:
		return "no-long-get-in-progress"
	case TagResultLongSetAborted:
		return "long-set-aborted"
	case TagResultNoLongSetInProgress:
		return "no-long-set-in-progress"
	case TagResultDataBlockNumberInvalid:
		return "data-block-number-invalid"
	case TagResultOtherReason:
		return "other-reason"
	default:
		return "unknown"
	}
}
