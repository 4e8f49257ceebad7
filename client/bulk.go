package client

import (
	"fmt"

	"github.com/dlms-go/dlmscosem/apdu"
	"github.com/dlms-go/dlmscosem/base"
	"github.com/dlms-go/dlmscosem/xdr"
)

// chunkSize returns the configured attributes-per-request ceiling,
// defaulting to 10 when Settings leaves it unset.
func (s *Session) chunkSize() int {
	if s.settings.MaxAttributesPerRequest > 0 {
		return s.settings.MaxAttributesPerRequest
	}
	return 10
}

// ReadMultiple issues GET-Request-WithList for descriptors, splitting into
// consecutive requests of at most chunk_size items when the list is
// longer, and reassembles the results in the original order. Each chunk is
// one request/response exchange: a response that is not a
// GetResponseWithList (such as a block-transferred one) is not reassembled
// and fails with SessionBroken.
func (s *Session) ReadMultiple(descriptors []apdu.GetDescriptor) ([]apdu.GetResult, error) {
	return s.ReadMultipleChunked(descriptors, s.chunkSize())
}

// ReadMultipleChunked is ReadMultiple with an explicit per-call chunk size
// k, overriding Settings.MaxAttributesPerRequest for this one call.
func (s *Session) ReadMultipleChunked(descriptors []apdu.GetDescriptor, k int) ([]apdu.GetResult, error) {
	if k <= 0 {
		k = s.chunkSize()
	}
	results := make([]apdu.GetResult, 0, len(descriptors))

	for start := 0; start < len(descriptors); start += k {
		end := min(start+k, len(descriptors))
		part, err := s.readList(descriptors[start:end])
		if err != nil {
			return nil, err
		}
		results = append(results, part...)
	}
	return results, nil
}

func (s *Session) readList(descriptors []apdu.GetDescriptor) ([]apdu.GetResult, error) {
	invokeID := s.invoke.next()
	priority := s.priorityByte()

	req, err := apdu.EncodeGetRequestWithList(invokeID, priority, descriptors)
	if err != nil {
		return nil, err
	}
	tag, body, err := s.roundTrip(base.TagGetRequest, req)
	if err != nil {
		return nil, err
	}
	if base.CosemTag(tag) != base.TagGetResponse {
		return nil, &Error{Kind: SessionBroken, Cause: fmt.Errorf("unexpected response tag 0x%02x", tag)}
	}
	header, rest, err := apdu.DecodeResponseHeader(body)
	if err != nil {
		return nil, err
	}
	if header.InvokeID != invokeID {
		return nil, &Error{Kind: UnexpectedInvokeId}
	}
	if apdu.GetResponseTag(header.Variant) != apdu.GetResponseWithList {
		return nil, &Error{Kind: SessionBroken, Cause: fmt.Errorf("unexpected get-response variant 0x%02x", header.Variant)}
	}
	return apdu.DecodeGetResponseWithList(rest, len(descriptors))
}

// WriteMultiple issues SET-Request-WithList for the given descriptor/value
// pairs, splitting into consecutive requests of at most chunk_size items
// and returning one DataAccessResult per descriptor in the original order.
func (s *Session) WriteMultiple(descriptors []apdu.GetDescriptor, values []xdr.Data) ([]apdu.AccessResultTag, error) {
	return s.WriteMultipleChunked(descriptors, values, s.chunkSize())
}

// WriteMultipleChunked is WriteMultiple with an explicit per-call chunk size
// k, overriding Settings.MaxAttributesPerRequest for this one call.
func (s *Session) WriteMultipleChunked(descriptors []apdu.GetDescriptor, values []xdr.Data, k int) ([]apdu.AccessResultTag, error) {
	if len(descriptors) != len(values) {
		return nil, fmt.Errorf("client: %d descriptors but %d values", len(descriptors), len(values))
	}
	if k <= 0 {
		k = s.chunkSize()
	}
	results := make([]apdu.AccessResultTag, 0, len(descriptors))

	for start := 0; start < len(descriptors); start += k {
		end := min(start+k, len(descriptors))
		part, err := s.writeList(descriptors[start:end], values[start:end])
		if err != nil {
			return nil, err
		}
		results = append(results, part...)
	}
	return results, nil
}

func (s *Session) writeList(descriptors []apdu.GetDescriptor, values []xdr.Data) ([]apdu.AccessResultTag, error) {
	invokeID := s.invoke.next()
	priority := s.priorityByte()

	req, err := apdu.EncodeSetRequestWithList(invokeID, priority, descriptors, values)
	if err != nil {
		return nil, err
	}
	tag, body, err := s.roundTrip(base.TagSetRequest, req)
	if err != nil {
		return nil, err
	}
	if base.CosemTag(tag) != base.TagSetResponse {
		return nil, &Error{Kind: SessionBroken, Cause: fmt.Errorf("unexpected response tag 0x%02x", tag)}
	}
	header, rest, err := apdu.DecodeResponseHeader(body)
	if err != nil {
		return nil, err
	}
	if header.InvokeID != invokeID {
		return nil, &Error{Kind: UnexpectedInvokeId}
	}
	if apdu.SetResponseTag(header.Variant) != apdu.SetResponseWithList {
		return nil, &Error{Kind: SessionBroken, Cause: fmt.Errorf("unexpected set-response variant 0x%02x", header.Variant)}
	}
	return apdu.DecodeSetResponseWithList(rest, len(descriptors))
}
