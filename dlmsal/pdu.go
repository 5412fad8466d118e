package dlmsal

// RequestType is the second byte of LN service apdus, for SN it selects the variable access or result choice.
type RequestType byte

const (
	TagGetRequestNormal   RequestType = 0x1
	TagGetRequestNext     RequestType = 0x2
	TagGetRequestWithList RequestType = 0x3
)

const (
	TagGetResponseNormal        RequestType = 0x1
	TagGetResponseWithDataBlock RequestType = 0x2
	TagGetResponseWithList      RequestType = 0x3
)

const (
	TagSetRequestNormal                    RequestType = 0x1
	TagSetRequestWithFirstDataBlock        RequestType = 0x2
	TagSetRequestWithDataBlock             RequestType = 0x3
	TagSetRequestWithList                  RequestType = 0x4
	TagSetRequestWithListAndFirstDataBlock RequestType = 0x5
)

const (
	TagSetResponseNormal                RequestType = 0x1
	TagSetResponseDataBlock             RequestType = 0x2
	TagSetResponseLastDataBlock         RequestType = 0x3
	TagSetResponseLastDataBlockWithList RequestType = 0x4
	TagSetResponseWithList              RequestType = 0x5
)

const (
	TagActionRequestNormal                 RequestType = 0x1
	TagActionRequestNextPBlock             RequestType = 0x2
	TagActionRequestWithList               RequestType = 0x3
	TagActionRequestWithFirstPBlock        RequestType = 0x4
	TagActionRequestWithListAndFirstPBlock RequestType = 0x5
	TagActionRequestWithPBlock             RequestType = 0x6
)

const (
	TagActionResponseNormal     RequestType = 0x1
	TagActionResponseWithPBlock RequestType = 0x2
	TagActionResponseWithList   RequestType = 0x3
	TagActionResponseNextPBlock RequestType = 0x4
)

// short name variable access specification
const (
	TagSNVariableName        RequestType = 0x2
	TagSNParameterizedAccess RequestType = 0x4
	TagSNBlockNumberAccess   RequestType = 0x5
)

// short name read response choice
const (
	TagSNResponseData        RequestType = 0x0
	TagSNResponseAccessError RequestType = 0x1
	TagSNResponseDataBlock   RequestType = 0x2
)
