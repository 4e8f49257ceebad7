package apdu

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/dlms-go/dlmscosem/base"
	"github.com/dlms-go/dlmscosem/xdr"
)

var aarqAppContextPrefix = []byte{0x06, 0x07, 0x60, 0x85, 0x74, 0x05, 0x08, 0x01}
var aarqMechNamePrefix = []byte{0x60, 0x85, 0x74, 0x05, 0x08, 0x02}

// AARQParams holds everything EncodeAARQ needs to build the wire bytes.
// UserInformation must already contain the fully-assembled (and, when the
// negotiated mechanism calls for it, already-ciphered) Initiate-Request
// xDLMS-APDU; this package never ciphers on its own.
type AARQParams struct {
	ApplicationContext base.ApplicationContext
	AuthMechanism      base.Authentication
	ClientSystemTitle  []byte // sent only for HighGmac/HighSha256/HighEcdsa
	Password           []byte // the calling-authentication-value
	UserID             *byte
	UserInformation    []byte
}

// EncodeAARQ builds the AARQ APDU. It additionally returns a copy with the
// authentication-value bytes zeroed, suitable for confidential logging.
func EncodeAARQ(p AARQParams) (out []byte, redacted []byte, err error) {
	var content bytes.Buffer

	content.WriteByte(base.BERTypeContext | base.BERTypeConstructed | base.PduTypeApplicationContextName)
	content.WriteByte(byte(len(aarqAppContextPrefix) + 1))
	content.Write(aarqAppContextPrefix)
	content.WriteByte(byte(p.ApplicationContext))

	switch p.AuthMechanism {
	case base.AuthenticationHighGmac, base.AuthenticationHighSha256, base.AuthenticationHighEcdsa:
		xdr.EncodeNestedTag(&content, base.BERTypeContext|base.BERTypeConstructed|base.PduTypeCallingAPTitle, 0x04, p.ClientSystemTitle)
	}

	if p.UserID != nil {
		content.WriteByte(base.BERTypeContext | base.BERTypeConstructed | base.PduTypeCallingAEInvocationID)
		content.WriteByte(3)
		content.WriteByte(2)
		content.WriteByte(1)
		content.WriteByte(*p.UserID)
	}

	if p.AuthMechanism != base.AuthenticationNone {
		xdr.EncodeTag(&content, base.BERTypeContext|base.PduTypeSenderAcseRequirements, []byte{0x07, 0x80})
		content.WriteByte(base.BERTypeContext | base.PduTypeMechanismName)
		content.WriteByte(byte(len(aarqMechNamePrefix) + 1))
		content.Write(aarqMechNamePrefix)
		content.WriteByte(byte(p.AuthMechanism))
	}

	secStart := content.Len()
	if p.AuthMechanism != base.AuthenticationNone {
		xdr.EncodeNestedTag(&content, base.BERTypeContext|base.BERTypeConstructed|base.PduTypeCallingAuthenticationValue, 0x80, p.Password)
	}
	secEnd := content.Len()

	xdr.EncodeNestedTag(&content, base.BERTypeContext|base.BERTypeConstructed|base.PduTypeUserInformation, 0x04, p.UserInformation)

	var buf bytes.Buffer
	xdr.EncodeTag(&buf, byte(base.TagAARQ), content.Bytes())
	out = buf.Bytes()

	redacted = slices.Clone(out)
	offset := len(redacted) - content.Len()
	clear(redacted[offset+secStart : offset+secEnd])
	return out, redacted, nil
}

// BuildInitiateRequest renders the unciphered Initiate-Request xDLMS-APDU
// body: conformance block, proposed max receive PDU size, and an optional
// dedicated key for the HighGmac/HighSha256/HighEcdsa mechanisms.
func BuildInitiateRequest(conformance uint32, maxPduRecvSize uint16, dedicatedKey []byte) []byte {
	var xdlms []byte
	var sub []byte
	if dedicatedKey != nil {
		xdlms = make([]byte, 15+len(dedicatedKey))
		xdlms[0] = byte(base.TagInitiateRequest)
		xdlms[1] = 0x01
		xdlms[2] = byte(len(dedicatedKey))
		copy(xdlms[3:], dedicatedKey)
		sub = xdlms[3+len(dedicatedKey):]
	} else {
		xdlms = make([]byte, 14)
		xdlms[0] = byte(base.TagInitiateRequest)
		xdlms[1] = 0x00
		sub = xdlms[2:]
	}
	sub[0] = 0x00
	sub[1] = 0x00
	sub[2] = 0x06
	sub[3] = 0x5f
	sub[4] = 0x1f
	sub[5] = 0x04
	binary.BigEndian.PutUint32(sub[6:], conformance)
	sub[10] = byte(maxPduRecvSize >> 8)
	sub[11] = byte(maxPduRecvSize)
	return xdlms
}

// aareField is one context-tagged field inside an AARE/RLRE's outer
// structure.
type aareField struct {
	tag  byte
	data []byte
}

func decodeAAREFields(src []byte) ([]aareField, error) {
	ret := make([]aareField, 0, 16)
	for len(src) > 0 {
		tag, l, data, err := xdr.DecodeTLV(src)
		if err != nil {
			return nil, err
		}
		ret = append(ret, aareField{tag: tag, data: data})
		src = src[l:]
	}
	return ret, nil
}

// AAREResult is the fully-parsed content of an AARE APDU (ITU-T X.227
// A-ASSOCIATE response, carried inside the DLMS AARE tag).
type AAREResult struct {
	ApplicationContext   base.ApplicationContext
	Result               base.AssociationResult
	Diagnostic           base.SourceDiagnostic
	ServerSystemTitle    []byte // present for HighGmac/HighSha256/HighEcdsa
	ServerChallenge      []byte // StoC, present when sender-acse-requirements is set
	InitiateResponseTag  byte   // base.TagInitiateResponse / TagConfirmedServiceError / TagGloInitiateResponse / TagGeneralGloCiphering
	InitiateResponseBody []byte // tag byte stripped; may still be ciphered
}

// DecodeAARE parses the content of an AARE APDU (the bytes following the
// outer TagAARE tag-length header). Where the negotiated mechanism ciphers
// the user-information field, InitiateResponseBody is left encrypted for
// the caller to decrypt with the cipher package before calling
// DecodeInitiateResponse.
func DecodeAARE(src []byte) (AAREResult, error) {
	fields, err := decodeAAREFields(src)
	if err != nil {
		return AAREResult{}, err
	}
	var out AAREResult
	for _, f := range fields {
		switch f.tag {
		case 0xa1:
			if len(f.data) != 9 || !bytes.Equal(f.data[:8], aarqAppContextPrefix) {
				return AAREResult{}, &Error{Kind: InvalidField, Tag: f.tag, Context: "application-context-name"}
			}
			out.ApplicationContext = base.ApplicationContext(f.data[8])
		case 0xa2:
			if len(f.data) != 3 || f.data[0] != 0x02 || f.data[1] != 0x01 {
				return AAREResult{}, &Error{Kind: InvalidField, Tag: f.tag, Context: "association-result"}
			}
			out.Result = base.AssociationResult(f.data[2])
		case 0xa3:
			if len(f.data) != 5 || !bytes.Equal(f.data[1:4], []byte{0x03, 0x02, 0x01}) {
				return AAREResult{}, &Error{Kind: InvalidField, Tag: f.tag, Context: "associate-source-diagnostic"}
			}
			out.Diagnostic = base.SourceDiagnostic(f.data[4])
		case 0xa4:
			t, _, d, err := xdr.DecodeTLV(f.data)
			if err != nil || t != 0x04 {
				return AAREResult{}, &Error{Kind: InvalidField, Tag: f.tag, Context: "called-ap-title"}
			}
			out.ServerSystemTitle = slices.Clone(d)
		case 0xaa:
			t, _, d, err := xdr.DecodeTLV(f.data)
			if err != nil || t != 0x80 {
				return AAREResult{}, &Error{Kind: InvalidField, Tag: f.tag, Context: "sender-acse-requirements"}
			}
			out.ServerChallenge = slices.Clone(d)
		case 0xbe:
			t, _, d, err := xdr.DecodeTLV(f.data)
			if err != nil || t != 0x04 {
				return AAREResult{}, &Error{Kind: InvalidField, Tag: f.tag, Context: "user-information"}
			}
			if len(d) < 1 {
				return AAREResult{}, &Error{Kind: InvalidField, Tag: f.tag, Context: "empty user-information"}
			}
			out.InitiateResponseTag = d[0]
			out.InitiateResponseBody = slices.Clone(d[1:])
		}
	}
	return out, nil
}

// InitiateResponse is the negotiated session parameters a server returns.
type InitiateResponse struct {
	NegotiatedConformance   uint32
	ServerMaxReceivePduSize uint16
	VAAddress               int16
}

// DecodeInitiateResponse parses the body of an (unciphered) Initiate-
// Response, i.e. the bytes that follow the stripped TagInitiateResponse tag
// byte.
func DecodeInitiateResponse(src []byte) (InitiateResponse, error) {
	var out InitiateResponse
	if len(src) < 13 {
		if len(src) == 12 && cap(src) > 12 {
			src = src[:13]
		} else {
			return out, &Error{Kind: InconsistentLength, Context: "initiate-response too short"}
		}
	}
	if src[0] == 0x01 {
		src = src[2:]
	} else {
		src = src[1:]
	}
	if src[0] != base.DlmsVersion {
		return out, &Error{Kind: InvalidField, Context: "unexpected dlms version"}
	}
	if !bytes.Equal(src[1:5], []byte{0x5F, 0x1F, 0x04, 0x00}) {
		return out, &Error{Kind: InvalidField, Context: "invalid initiate-response prefix"}
	}
	out.NegotiatedConformance = binary.BigEndian.Uint32(src[4:8])
	out.ServerMaxReceivePduSize = binary.BigEndian.Uint16(src[8:10])
	out.VAAddress = int16(binary.BigEndian.Uint16(src[10:12]))
	return out, nil
}

// ConfirmedServiceErrorTag classifies a confirmed-service-error response.
type ConfirmedServiceErrorTag byte

const (
	ErrInitiateError ConfirmedServiceErrorTag = 1
	ErrRead          ConfirmedServiceErrorTag = 5
	ErrWrite         ConfirmedServiceErrorTag = 6
)

// ServiceErrorTag further classifies the cause of a confirmed-service-error.
type ServiceErrorTag byte

const (
	ErrApplicationReference ServiceErrorTag = 0
	ErrHardwareResource     ServiceErrorTag = 1
	ErrVdeStateError        ServiceErrorTag = 2
	ErrService              ServiceErrorTag = 3
	ErrDefinition           ServiceErrorTag = 4
	ErrAccess               ServiceErrorTag = 5
	ErrInitiate             ServiceErrorTag = 6
	ErrLoadDataSet          ServiceErrorTag = 7
	ErrTask                 ServiceErrorTag = 9
	ErrOtherError           ServiceErrorTag = 10
)

// ConfirmedServiceError is the decoded body of a TagConfirmedServiceError
// response: a server-side rejection of the confirmed request that preceded
// it, distinct from a DataAccessResult failure on an individual attribute.
type ConfirmedServiceError struct {
	Confirmed ConfirmedServiceErrorTag
	Service   ServiceErrorTag
	Value     byte
}

// DecodeConfirmedServiceError parses the body that follows the stripped
// TagConfirmedServiceError tag byte.
func DecodeConfirmedServiceError(src []byte) (ConfirmedServiceError, error) {
	if len(src) < 3 {
		return ConfirmedServiceError{}, &Error{Kind: InconsistentLength, Context: "confirmed-service-error too short"}
	}
	return ConfirmedServiceError{
		Confirmed: ConfirmedServiceErrorTag(src[0]),
		Service:   ServiceErrorTag(src[1]),
		Value:     src[2],
	}, nil
}

func (e ConfirmedServiceError) Error() string {
	return fmt.Sprintf("apdu: confirmed-service-error %d/%d value=%02x", e.Confirmed, e.Service, e.Value)
}
