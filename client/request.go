package client

import (
	"bytes"
	"fmt"

	"github.com/dlms-go/dlmscosem/apdu"
	"github.com/dlms-go/dlmscosem/base"
	"github.com/dlms-go/dlmscosem/xdr"
)

func (s *Session) priorityByte() byte {
	if s.settings.HighPriority {
		return 0x80
	}
	return 0
}

// cipherTagsFor picks the wire tag a request of the given plain service
// should carry, and the tag its response is expected to carry, once a
// cipher suite is bound. General ciphering uses one outer tag for every
// service; direct GLO/DED ciphering is per-service.
func (s *Session) cipherTagsFor(plain base.CosemTag) (reqTag byte, respTag base.CosemTag) {
	suite := s.settings.Suite
	if suite == nil {
		return byte(plain), 0
	}
	if outer, ok := suite.OuterTag(); ok {
		return outer, 0
	}
	if suite.IsDedicated() {
		switch plain {
		case base.TagGetRequest:
			return byte(base.TagDedGetRequest), base.TagDedGetResponse
		case base.TagSetRequest:
			return byte(base.TagDedSetRequest), base.TagDedSetResponse
		case base.TagActionRequest:
			return byte(base.TagDedActionRequest), base.TagDedActionResponse
		}
	}
	switch plain {
	case base.TagGetRequest:
		return byte(base.TagGloGetRequest), base.TagGloGetResponse
	case base.TagSetRequest:
		return byte(base.TagGloSetRequest), base.TagGloSetResponse
	case base.TagActionRequest:
		return byte(base.TagGloActionRequest), base.TagGloActionResponse
	}
	return byte(plain), 0
}

func isCipheredServiceResponse(tag byte) bool {
	switch base.CosemTag(tag) {
	case base.TagGloGetResponse, base.TagDedGetResponse,
		base.TagGloSetResponse, base.TagDedSetResponse,
		base.TagGloActionResponse, base.TagDedActionResponse,
		base.TagGeneralGloCiphering, base.TagGeneralDedCiphering:
		return true
	default:
		return false
	}
}

// roundTrip ciphers req (if a suite is bound), writes it, reads one
// response message, and deciphers it back to a plain (tag, body) pair. An
// ExceptionResponse is turned into a SessionError rather than returned as
// an ordinary response.
func (s *Session) roundTrip(plain base.CosemTag, req []byte) (byte, []byte, error) {
	if s.state != Associated {
		return 0, nil, &Error{Kind: NotAssociated}
	}

	out := req
	if s.settings.Suite != nil {
		wireTag, _ := s.cipherTagsFor(plain)
		wrapped, err := s.settings.Suite.Wrap(wireTag, req)
		if err != nil {
			s.state = Broken
			return 0, nil, &Error{Kind: SessionBroken, Cause: err}
		}
		out = wrapped
	}

	s.logd("request", out)
	if err := s.transport.Write(out); err != nil {
		s.state = Broken
		return 0, nil, &Error{Kind: SessionBroken, Cause: err}
	}

	resp, err := s.readSmall()
	if err != nil {
		s.state = Broken
		return 0, nil, &Error{Kind: SessionBroken, Cause: err}
	}
	s.logd("response", resp)
	if len(resp) < 1 {
		s.state = Broken
		return 0, nil, &Error{Kind: SessionBroken, Cause: fmt.Errorf("empty response")}
	}

	tag := resp[0]
	body := resp[1:]
	if s.settings.Suite != nil && isCipheredServiceResponse(tag) {
		plainResp, err := s.settings.Suite.Unwrap(resp)
		if err != nil {
			s.state = Broken
			return 0, nil, &Error{Kind: SessionBroken, Cause: err}
		}
		if len(plainResp) < 1 {
			s.state = Broken
			return 0, nil, &Error{Kind: SessionBroken, Cause: fmt.Errorf("empty deciphered response")}
		}
		tag = plainResp[0]
		body = plainResp[1:]
	}

	if base.CosemTag(tag) == base.TagExceptionResponse {
		ex := apdu.DecodeExceptionResponse(body)
		return 0, nil, &Error{Kind: ResultError, Result: ex.Result, Cause: fmt.Errorf("exception response: state=%d service=%d", ex.StateError, ex.ServiceError)}
	}
	return tag, body, nil
}

func decodeChunk(b []byte) ([]byte, error) {
	n, c, err := xdr.DecodeLength(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	if len(b) < c+int(n) {
		return nil, &apdu.Error{Kind: apdu.InconsistentLength, Context: "chunk shorter than announced length"}
	}
	return b[c : c+int(n)], nil
}

// Get retrieves a single attribute, driving GET-Request-Next as needed to
// reassemble a value sent as a block-transfer. buf accumulates the raw
// chunks; pass nil to use an unbounded HeapBuffer.
func (s *Session) Get(d apdu.GetDescriptor, buf Buffer) (xdr.Data, error) {
	if buf == nil {
		buf = NewHeapBuffer(0)
	}
	buf.Reset()

	invokeID := s.invoke.next()
	priority := s.priorityByte()

	req, err := apdu.EncodeGetRequestNormal(invokeID, priority, d)
	if err != nil {
		return xdr.Data{}, err
	}
	tag, body, err := s.roundTrip(base.TagGetRequest, req)
	if err != nil {
		return xdr.Data{}, err
	}
	if base.CosemTag(tag) != base.TagGetResponse {
		return xdr.Data{}, &Error{Kind: SessionBroken, Cause: fmt.Errorf("unexpected response tag 0x%02x", tag)}
	}

	header, rest, err := apdu.DecodeResponseHeader(body)
	if err != nil {
		return xdr.Data{}, err
	}
	if header.InvokeID != invokeID {
		return xdr.Data{}, &Error{Kind: UnexpectedInvokeId}
	}

	switch apdu.GetResponseTag(header.Variant) {
	case apdu.GetResponseNormal:
		res, err := apdu.DecodeGetResponseNormal(rest)
		if err != nil {
			return xdr.Data{}, err
		}
		if res.Failed {
			return xdr.Data{}, &Error{Kind: ResultError, Result: res.Result}
		}
		return res.Data, nil
	case apdu.GetResponseWithDataBlock:
		return s.getBlocks(invokeID, priority, rest, buf)
	default:
		return xdr.Data{}, &Error{Kind: SessionBroken, Cause: fmt.Errorf("unexpected get-response variant 0x%02x", header.Variant)}
	}
}

// getBlocks drives GET-Request-Next until the server marks a block last,
// accumulating raw chunks in buf, then parses the assembled buffer as a
// single Data value.
func (s *Session) getBlocks(invokeID, priority byte, body []byte, buf Buffer) (xdr.Data, error) {
	for {
		h, err := apdu.DecodeDataBlockHeader(body)
		if err != nil {
			return xdr.Data{}, err
		}
		if h.Failed {
			return xdr.Data{}, &Error{Kind: ResultError, Result: h.Result}
		}
		chunk, err := decodeChunk(body[6:])
		if err != nil {
			return xdr.Data{}, err
		}
		if err := buf.Append(chunk); err != nil {
			return xdr.Data{}, err
		}
		if h.Last {
			break
		}

		req := apdu.EncodeGetRequestNext(invokeID, priority, h.BlockNumber+1)
		tag, respBody, err := s.roundTrip(base.TagGetRequest, req)
		if err != nil {
			return xdr.Data{}, err
		}
		if base.CosemTag(tag) != base.TagGetResponse {
			return xdr.Data{}, &Error{Kind: SessionBroken, Cause: fmt.Errorf("unexpected response tag 0x%02x", tag)}
		}
		header, rest, err := apdu.DecodeResponseHeader(respBody)
		if err != nil {
			return xdr.Data{}, err
		}
		if header.InvokeID != invokeID {
			return xdr.Data{}, &Error{Kind: UnexpectedInvokeId}
		}
		if apdu.GetResponseTag(header.Variant) != apdu.GetResponseWithDataBlock {
			return xdr.Data{}, &Error{Kind: SessionBroken, Cause: fmt.Errorf("unexpected get-response variant 0x%02x", header.Variant)}
		}
		body = rest
	}
	return xdr.Decode(bytes.NewReader(buf.Bytes()))
}

// Set writes a single attribute. Values small enough for one PDU go out as
// SET-Request-Normal; larger ones are chunked into SET-Request-With(First)
// DataBlock per maxChunk, driven until the server acks the final block.
func (s *Session) Set(d apdu.GetDescriptor, value xdr.Data, maxChunk int) error {
	invokeID := s.invoke.next()
	priority := s.priorityByte()

	var encoded bytes.Buffer
	if err := xdr.EncodeInto(&encoded, value); err != nil {
		return err
	}

	if maxChunk <= 0 || encoded.Len() <= maxChunk {
		req, err := apdu.EncodeSetRequestNormal(invokeID, priority, d, value)
		if err != nil {
			return err
		}
		tag, body, err := s.roundTrip(base.TagSetRequest, req)
		if err != nil {
			return err
		}
		if base.CosemTag(tag) != base.TagSetResponse {
			return &Error{Kind: SessionBroken, Cause: fmt.Errorf("unexpected response tag 0x%02x", tag)}
		}
		header, rest, err := apdu.DecodeResponseHeader(body)
		if err != nil {
			return err
		}
		if header.InvokeID != invokeID {
			return &Error{Kind: UnexpectedInvokeId}
		}
		if apdu.SetResponseTag(header.Variant) != apdu.SetResponseNormal {
			return &Error{Kind: SessionBroken, Cause: fmt.Errorf("unexpected set-response variant 0x%02x", header.Variant)}
		}
		result, err := apdu.DecodeSetResponseNormal(rest)
		if err != nil {
			return err
		}
		if result != apdu.ResultSuccess {
			return &Error{Kind: ResultError, Result: result}
		}
		return nil
	}

	return s.setBlocks(invokeID, priority, d, encoded.Bytes(), maxChunk)
}

func (s *Session) setBlocks(invokeID, priority byte, d apdu.GetDescriptor, data []byte, maxChunk int) error {
	blockNumber := uint32(1)
	first, rest := data[:min(maxChunk, len(data))], data[min(maxChunk, len(data)):]
	last := len(rest) == 0

	req, err := apdu.EncodeSetRequestWithFirstDataBlock(invokeID, priority, d, last, blockNumber, first)
	if err != nil {
		return err
	}
	for {
		tag, body, err := s.roundTrip(base.TagSetRequest, req)
		if err != nil {
			return err
		}
		if base.CosemTag(tag) != base.TagSetResponse {
			return &Error{Kind: SessionBroken, Cause: fmt.Errorf("unexpected response tag 0x%02x", tag)}
		}
		header, respRest, err := apdu.DecodeResponseHeader(body)
		if err != nil {
			return err
		}
		if header.InvokeID != invokeID {
			return &Error{Kind: UnexpectedInvokeId}
		}

		switch apdu.SetResponseTag(header.Variant) {
		case apdu.SetResponseDataBlock:
			nextBlock, err := apdu.DecodeSetResponseDataBlock(respRest)
			if err != nil {
				return err
			}
			if nextBlock != blockNumber+1 {
				return &Error{Kind: BlockSequenceError}
			}
			blockNumber = nextBlock
			last = len(rest) <= maxChunk
			var chunk []byte
			chunk, rest = rest[:min(maxChunk, len(rest))], rest[min(maxChunk, len(rest)):]
			req = apdu.EncodeSetRequestWithDataBlock(invokeID, priority, last, blockNumber, chunk)
		case apdu.SetResponseLastDataBlock:
			gotBlock, result, err := apdu.DecodeSetResponseLastDataBlock(respRest)
			if err != nil {
				return err
			}
			if gotBlock != blockNumber {
				return &Error{Kind: BlockSequenceError}
			}
			if result != apdu.ResultSuccess {
				return &Error{Kind: ResultError, Result: result}
			}
			return nil
		default:
			return &Error{Kind: SessionBroken, Cause: fmt.Errorf("unexpected set-response variant 0x%02x", header.Variant)}
		}
	}
}

// Action invokes a COSEM method, optionally with a parameter, returning any
// value the method produced. A parameter too large for one PDU is chunked
// into ACTION-Request-With(First)PBlock per maxChunk, symmetric with Set; a
// return value too large for one PDU arrives as ACTION-Response-WithPBlock
// chunks, driven with ACTION-Request-NextPBlock and reassembled in buf (pass
// nil for an unbounded HeapBuffer).
func (s *Session) Action(d apdu.MethodDescriptor, parameter *xdr.Data, maxChunk int, buf Buffer) (apdu.ActionResult, error) {
	invokeID := s.invoke.next()
	priority := s.priorityByte()

	var encoded []byte
	if parameter != nil && maxChunk > 0 {
		var b bytes.Buffer
		if err := xdr.EncodeInto(&b, *parameter); err != nil {
			return apdu.ActionResult{}, err
		}
		encoded = b.Bytes()
	}

	if len(encoded) > maxChunk {
		return s.actionBlocks(invokeID, priority, d, encoded, maxChunk, buf)
	}

	req, err := apdu.EncodeActionRequestNormal(invokeID, priority, d, parameter)
	if err != nil {
		return apdu.ActionResult{}, err
	}
	tag, body, err := s.roundTrip(base.TagActionRequest, req)
	if err != nil {
		return apdu.ActionResult{}, err
	}
	if base.CosemTag(tag) != base.TagActionResponse {
		return apdu.ActionResult{}, &Error{Kind: SessionBroken, Cause: fmt.Errorf("unexpected response tag 0x%02x", tag)}
	}
	header, rest, err := apdu.DecodeResponseHeader(body)
	if err != nil {
		return apdu.ActionResult{}, err
	}
	if header.InvokeID != invokeID {
		return apdu.ActionResult{}, &Error{Kind: UnexpectedInvokeId}
	}
	switch apdu.ActionResponseTag(header.Variant) {
	case apdu.ActionResponseNormal:
		res, err := apdu.DecodeActionResponseNormal(rest)
		if err != nil {
			return apdu.ActionResult{}, err
		}
		if res.Result != apdu.ResultSuccess {
			return apdu.ActionResult{}, &Error{Kind: ResultError, Result: res.Result, Action: &res}
		}
		return res, nil
	case apdu.ActionResponseWithPBlock:
		return s.actionReturnBlocks(invokeID, priority, rest, buf)
	default:
		return apdu.ActionResult{}, &Error{Kind: SessionBroken, Cause: fmt.Errorf("unexpected action-response variant 0x%02x", header.Variant)}
	}
}

// actionBlocks drives ACTION-Request-WithPBlock until the parameter is fully
// sent, then decodes whatever final response the server gives (a plain
// ActionResponseNormal, or ActionResponseWithPBlock if the return value is
// itself block-transferred).
func (s *Session) actionBlocks(invokeID, priority byte, d apdu.MethodDescriptor, data []byte, maxChunk int, buf Buffer) (apdu.ActionResult, error) {
	blockNumber := uint32(1)
	first, rest := data[:min(maxChunk, len(data))], data[min(maxChunk, len(data)):]
	last := len(rest) == 0

	req := apdu.EncodeActionRequestWithFirstPBlock(invokeID, priority, d, last, blockNumber, first)
	for {
		tag, body, err := s.roundTrip(base.TagActionRequest, req)
		if err != nil {
			return apdu.ActionResult{}, err
		}
		if base.CosemTag(tag) != base.TagActionResponse {
			return apdu.ActionResult{}, &Error{Kind: SessionBroken, Cause: fmt.Errorf("unexpected response tag 0x%02x", tag)}
		}
		header, respRest, err := apdu.DecodeResponseHeader(body)
		if err != nil {
			return apdu.ActionResult{}, err
		}
		if header.InvokeID != invokeID {
			return apdu.ActionResult{}, &Error{Kind: UnexpectedInvokeId}
		}

		switch apdu.ActionResponseTag(header.Variant) {
		case apdu.ActionResponseNextPBlock:
			nextBlock, err := apdu.DecodeActionResponseNextPBlockAck(respRest)
			if err != nil {
				return apdu.ActionResult{}, err
			}
			if nextBlock != blockNumber+1 {
				return apdu.ActionResult{}, &Error{Kind: BlockSequenceError}
			}
			blockNumber = nextBlock
			last = len(rest) <= maxChunk
			var chunk []byte
			chunk, rest = rest[:min(maxChunk, len(rest))], rest[min(maxChunk, len(rest)):]
			req = apdu.EncodeActionRequestWithPBlock(invokeID, priority, last, blockNumber, chunk)
		case apdu.ActionResponseNormal:
			res, err := apdu.DecodeActionResponseNormal(respRest)
			if err != nil {
				return apdu.ActionResult{}, err
			}
			if res.Result != apdu.ResultSuccess {
				return apdu.ActionResult{}, &Error{Kind: ResultError, Result: res.Result, Action: &res}
			}
			return res, nil
		case apdu.ActionResponseWithPBlock:
			return s.actionReturnBlocks(invokeID, priority, respRest, buf)
		default:
			return apdu.ActionResult{}, &Error{Kind: SessionBroken, Cause: fmt.Errorf("unexpected action-response variant 0x%02x", header.Variant)}
		}
	}
}

// actionReturnBlocks drives ACTION-Request-NextPBlock until the server marks
// a return-value block last, accumulating raw chunks in buf, then parses the
// assembled buffer as a single Data value.
func (s *Session) actionReturnBlocks(invokeID, priority byte, body []byte, buf Buffer) (apdu.ActionResult, error) {
	if buf == nil {
		buf = NewHeapBuffer(0)
	}
	buf.Reset()

	for {
		h, err := apdu.DecodeActionBlockHeader(body)
		if err != nil {
			return apdu.ActionResult{}, err
		}
		chunk, err := decodeChunk(body[5:])
		if err != nil {
			return apdu.ActionResult{}, err
		}
		if err := buf.Append(chunk); err != nil {
			return apdu.ActionResult{}, err
		}
		if h.Last {
			break
		}

		req := apdu.EncodeActionRequestNextPBlock(invokeID, priority, h.BlockNumber+1)
		tag, respBody, err := s.roundTrip(base.TagActionRequest, req)
		if err != nil {
			return apdu.ActionResult{}, err
		}
		if base.CosemTag(tag) != base.TagActionResponse {
			return apdu.ActionResult{}, &Error{Kind: SessionBroken, Cause: fmt.Errorf("unexpected response tag 0x%02x", tag)}
		}
		header, rest, err := apdu.DecodeResponseHeader(respBody)
		if err != nil {
			return apdu.ActionResult{}, err
		}
		if header.InvokeID != invokeID {
			return apdu.ActionResult{}, &Error{Kind: UnexpectedInvokeId}
		}
		if apdu.ActionResponseTag(header.Variant) != apdu.ActionResponseWithPBlock {
			return apdu.ActionResult{}, &Error{Kind: SessionBroken, Cause: fmt.Errorf("unexpected action-response variant 0x%02x", header.Variant)}
		}
		body = rest
	}

	d, err := xdr.Decode(bytes.NewReader(buf.Bytes()))
	if err != nil {
		return apdu.ActionResult{}, err
	}
	return apdu.ActionResult{Result: apdu.ResultSuccess, HasReturn: true, Return: d}, nil
}
