package apdu

import (
	"github.com/dlms-go/dlmscosem/base"
	"github.com/dlms-go/dlmscosem/xdr"
)

// EncodeRLRQ builds an RLRQ APDU. An empty RLRQ omits the release-request-
// reason entirely, which some servers require instead of reject.
func EncodeRLRQ(emptyRLRQ bool) []byte {
	if emptyRLRQ {
		return []byte{byte(base.TagRLRQ), 0}
	}
	return []byte{
		byte(base.TagRLRQ), 3,
		base.BERTypeContext, 1,
		byte(base.ReleaseRequestReasonNormal),
	}
}

// RLREResult is the parsed content of an RLRE APDU. Reason and
// UserInformation are both optional fields a server may omit.
type RLREResult struct {
	HasReason       bool
	Reason          byte
	UserInformation []byte
}

// DecodeRLRE parses the content of an RLRE APDU (the bytes following the
// outer TagRLRE tag-length header). An empty body is valid: several real
// servers answer Close with a bare RLRE carrying neither field.
func DecodeRLRE(src []byte) (RLREResult, error) {
	var out RLREResult
	for len(src) > 0 {
		tag, consumed, payload, err := xdr.DecodeTLV(src)
		if err != nil {
			return RLREResult{}, err
		}
		switch tag {
		case base.BERTypeContext: // [0] release-response-reason
			if len(payload) != 1 {
				return RLREResult{}, &Error{Kind: InvalidField, Tag: tag, Context: "release-response-reason"}
			}
			out.HasReason = true
			out.Reason = payload[0]
		case base.BERTypeContext | base.BERTypeConstructed | base.PduTypeUserInformation:
			t, _, d, err := xdr.DecodeTLV(payload)
			if err != nil || t != 0x04 {
				return RLREResult{}, &Error{Kind: InvalidField, Tag: tag, Context: "user-information"}
			}
			out.UserInformation = d
		}
		src = src[consumed:]
	}
	return out, nil
}
