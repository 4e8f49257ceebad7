package xdr

import (
	"bytes"
	"io"
)

// codedLength reports how many bytes EncodeLength will emit for n.
func codedLength(n uint) int {
	switch {
	case n < 128:
		return 1
	case n < 256:
		return 2
	case n < 65536:
		return 3
	case n < 16777216:
		return 4
	default:
		return 5
	}
}

// EncodeLength writes the A-XDR variable-length encoding of n: a single
// byte below 128, otherwise a 0x8N length-of-length byte followed by N
// big-endian bytes.
func EncodeLength(dst *bytes.Buffer, n uint) {
	switch {
	case n < 128:
		dst.WriteByte(byte(n))
	case n < 256:
		dst.WriteByte(0x81)
		dst.WriteByte(byte(n))
	case n < 65536:
		dst.WriteByte(0x82)
		dst.WriteByte(byte(n >> 8))
		dst.WriteByte(byte(n))
	case n < 16777216:
		dst.WriteByte(0x83)
		dst.WriteByte(byte(n >> 16))
		dst.WriteByte(byte(n >> 8))
		dst.WriteByte(byte(n))
	default:
		dst.WriteByte(0x84)
		dst.WriteByte(byte(n >> 24))
		dst.WriteByte(byte(n >> 16))
		dst.WriteByte(byte(n >> 8))
		dst.WriteByte(byte(n))
	}
}

// EncodeLengthInto writes the same encoding to a plain byte slice (dst must
// have room for at least 5 bytes) and returns the number of bytes written.
func EncodeLengthInto(dst []byte, n uint) int {
	switch {
	case n < 128:
		dst[0] = byte(n)
		return 1
	case n < 256:
		dst[0] = 0x81
		dst[1] = byte(n)
		return 2
	case n < 65536:
		dst[0] = 0x82
		dst[1] = byte(n >> 8)
		dst[2] = byte(n)
		return 3
	case n < 16777216:
		dst[0] = 0x83
		dst[1] = byte(n >> 16)
		dst[2] = byte(n >> 8)
		dst[3] = byte(n)
		return 4
	default:
		dst[0] = 0x84
		dst[1] = byte(n >> 24)
		dst[2] = byte(n >> 16)
		dst[3] = byte(n >> 8)
		dst[4] = byte(n)
		return 5
	}
}

// DecodeLength parses an A-XDR variable-length field from src, for callers
// outside this package (e.g. the apdu layer reading a WithList count or a
// block-transfer chunk length).
func DecodeLength(src io.Reader) (uint, int, error) {
	var scratch Scratch
	return decodeLength(src, &scratch)
}

// decodeLength parses an A-XDR variable-length field, rejecting the
// reserved indefinite-length marker (0x80) and lengths needing more than
// four follow-bytes.
func decodeLength(src io.Reader, scratch *Scratch) (uint, int, error) {
	if _, err := io.ReadFull(src, scratch[:1]); err != nil {
		return 0, 0, &CodecError{Kind: Truncated, Cause: err}
	}
	b := scratch[0]
	if b < 128 {
		return uint(b), 1, nil
	}
	if b == 128 {
		return 0, 0, &CodecError{Kind: InvalidLength, Cause: errIndefiniteLength}
	}
	c := int(b & 0x7f)
	if c > 4 {
		return 0, 0, &CodecError{Kind: InvalidLength, Cause: errLengthTooWide}
	}
	if _, err := io.ReadFull(src, scratch[:c]); err != nil {
		return 0, 0, &CodecError{Kind: Truncated, Cause: err}
	}
	r := uint(0)
	for i := 0; i < c; i++ {
		r = (r << 8) | uint(scratch[i])
	}
	return r, c + 1, nil
}

// EncodeTag writes a BER-style tag, A-XDR length of data, then data.
func EncodeTag(dst *bytes.Buffer, tag byte, data []byte) {
	dst.WriteByte(tag)
	EncodeLength(dst, uint(len(data)))
	dst.Write(data)
}

// EncodeNestedTag writes tag, the A-XDR length of (innertag ∥ length(data) ∥
// data), then innertag, length(data), data — used for the general-ciphering
// wrapper's outer/inner tag pairs and ACSE fields that nest one BER TLV
// inside another.
func EncodeNestedTag(dst *bytes.Buffer, tag byte, innertag byte, data []byte) {
	dst.WriteByte(tag)
	EncodeLength(dst, uint(len(data)+1+codedLength(uint(len(data)))))
	dst.WriteByte(innertag)
	EncodeLength(dst, uint(len(data)))
	dst.Write(data)
}

// DecodeTLV splits a byte slice into its leading BER tag byte, total
// consumed length, and inner payload — exported for callers outside this
// package (e.g. apdu's AARE field parser) that walk BER tag-length-value
// sequences without decoding a full Data value.
func DecodeTLV(src []byte) (tag byte, consumed int, payload []byte, err error) {
	var scratch Scratch
	return decodeTag(src, &scratch)
}

// decodeTag splits a byte slice into its leading tag byte, total consumed
// length, and inner payload, per the A-XDR tag-length-value layout.
func decodeTag(src []byte, scratch *Scratch) (tag byte, consumed int, payload []byte, err error) {
	if len(src) < 2 {
		return 0, 0, nil, &CodecError{Kind: Truncated, Cause: errShortTagSource}
	}
	tag = src[0]
	l, c, err := decodeLength(bytes.NewReader(src[1:]), scratch)
	if err != nil {
		return 0, 0, nil, err
	}
	if len(src) < c+1+int(l) {
		return 0, 0, nil, &CodecError{Kind: Truncated, Cause: errShortTagSource}
	}
	return tag, c + 1 + int(l), src[1+c : 1+c+int(l)], nil
}
