// Package apdu implements pure, allocation-light encode/decode functions for
// the DLMS/COSEM application-layer PDUs: AARQ/AARE, RLRQ/RLRE, and the
// GET/SET/ACTION request/response families (including their block-transfer
// and ciphered variants). Functions in this package never touch a
// transport; the session driver in the client package owns the socket and
// calls these as pure byte-slice transforms.
package apdu

import "github.com/dlms-go/dlmscosem/base"

// CosemTag re-exports the shared APDU tag table so callers of this package
// do not also need to import base directly for common cases.
type CosemTag = base.CosemTag

const (
	TagAARQ                 = base.TagAARQ
	TagAARE                 = base.TagAARE
	TagRLRQ                 = base.TagRLRQ
	TagRLRE                 = base.TagRLRE
	TagGetRequest           = base.TagGetRequest
	TagGetResponse          = base.TagGetResponse
	TagSetRequest           = base.TagSetRequest
	TagSetResponse          = base.TagSetResponse
	TagActionRequest        = base.TagActionRequest
	TagActionResponse       = base.TagActionResponse
	TagGloGetRequest        = base.TagGloGetRequest
	TagGloGetResponse       = base.TagGloGetResponse
	TagGloSetRequest        = base.TagGloSetRequest
	TagGloSetResponse       = base.TagGloSetResponse
	TagGloActionRequest     = base.TagGloActionRequest
	TagGloActionResponse    = base.TagGloActionResponse
	TagDedGetRequest        = base.TagDedGetRequest
	TagDedGetResponse       = base.TagDedGetResponse
	TagDedSetRequest        = base.TagDedSetRequest
	TagDedSetResponse       = base.TagDedSetResponse
	TagDedActionRequest     = base.TagDedActionRequest
	TagDedActionResponse    = base.TagDedActionResponse
	TagExceptionResponse    = base.TagExceptionResponse
	TagGeneralGloCiphering  = base.TagGeneralGloCiphering
	TagGeneralDedCiphering  = base.TagGeneralDedCiphering
	TagGeneralCiphering     = base.TagGeneralCiphering
	TagGeneralSigning       = base.TagGeneralSigning
	TagGeneralBlockTransfer = base.TagGeneralBlockTransfer
)

// GetRequestTag selects the GET-Request variant.
type GetRequestTag byte

const (
	GetRequestNormal   GetRequestTag = 0x1
	GetRequestNext     GetRequestTag = 0x2
	GetRequestWithList GetRequestTag = 0x3
)

// GetResponseTag selects the GET-Response variant.
type GetResponseTag byte

const (
	GetResponseNormal        GetResponseTag = 0x1
	GetResponseWithDataBlock GetResponseTag = 0x2
	GetResponseWithList      GetResponseTag = 0x3
)

// SetRequestTag selects the SET-Request variant.
type SetRequestTag byte

const (
	SetRequestNormal                    SetRequestTag = 0x1
	SetRequestWithFirstDataBlock        SetRequestTag = 0x2
	SetRequestWithDataBlock             SetRequestTag = 0x3
	SetRequestWithList                  SetRequestTag = 0x4
	SetRequestWithListAndFirstDataBlock SetRequestTag = 0x5
)

// SetResponseTag selects the SET-Response variant.
type SetResponseTag byte

const (
	SetResponseNormal                SetResponseTag = 0x1
	SetResponseDataBlock             SetResponseTag = 0x2
	SetResponseLastDataBlock         SetResponseTag = 0x3
	SetResponseLastDataBlockWithList SetResponseTag = 0x4
	SetResponseWithList              SetResponseTag = 0x5
)

// ActionRequestTag selects the ACTION-Request variant.
type ActionRequestTag byte

const (
	ActionRequestNormal                 ActionRequestTag = 0x1
	ActionRequestNextPBlock             ActionRequestTag = 0x2
	ActionRequestWithList               ActionRequestTag = 0x3
	ActionRequestWithFirstPBlock        ActionRequestTag = 0x4
	ActionRequestWithListAndFirstPBlock ActionRequestTag = 0x5
	ActionRequestWithPBlock             ActionRequestTag = 0x6
)

// ActionResponseTag selects the ACTION-Response variant.
type ActionResponseTag byte

const (
	ActionResponseNormal     ActionResponseTag = 0x1
	ActionResponseWithPBlock ActionResponseTag = 0x2
	ActionResponseWithList   ActionResponseTag = 0x3
	ActionResponseNextPBlock ActionResponseTag = 0x4
)

// AccessResultTag is the DataAccessResult enumeration returned in GET/SET
// responses and inside block-transfer continuations.
type AccessResultTag = base.DlmsResultTag

const (
	ResultSuccess                 = base.TagResultSuccess
	ResultHardwareFault           = base.TagResultHardwareFault
	ResultTemporaryFailure        = base.TagResultTemporaryFailure
	ResultReadWriteDenied         = base.TagResultReadWriteDenied
	ResultObjectUndefined         = base.TagResultObjectUndefined
	ResultObjectClassInconsistent = base.TagResultObjectClassInconsistent
	ResultObjectUnavailable       = base.TagResultObjectUnavailable
	ResultTypeUnmatched           = base.TagResultTypeUnmatched
	ResultScopeAccessViolated     = base.TagResultScopeAccessViolated
	ResultDataBlockUnavailable    = base.TagResultDataBlockUnavailable
	ResultLongGetAborted          = base.TagResultLongGetAborted
	ResultNoLongGetInProgress     = base.TagResultNoLongGetInProgress
	ResultLongSetAborted          = base.TagResultLongSetAborted
	ResultNoLongSetInProgress     = base.TagResultNoLongSetInProgress
	ResultDataBlockNumberInvalid  = base.TagResultDataBlockNumberInvalid
	ResultOtherReason             = base.TagResultOtherReason
)
