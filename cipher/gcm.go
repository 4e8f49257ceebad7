// Package cipher implements the GLO/DED transport security DLMS/COSEM
// layers on top of AES-128-GCM (Green Book Ed.12 §9.3), plus the
// High-level authentication mechanisms that ride the same association.
//
// The low-level GHASH/GF(2^128) arithmetic below is a direct, renamed port
// of a hand-rolled constant-time-ish AES-GCM engine: the math is
// standardized and any behavioral drift would silently break interop with
// real meters, so only identifiers changed, not the arithmetic.
package cipher

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"
)

const (
	blockSize = 16
	tagLength = 12
)

// Direction selects which system title/challenge pair an authentication
// tag is computed over.
type Direction byte

const (
	ClientToServer Direction = 0
	ServerToClient Direction = 1
)

// engine holds one negotiated GCM key pair (encryption key + optional
// authentication key) bound to a specific client/server system title pair.
type engine struct {
	ak     []byte
	tmp    [blockSize * 4]byte
	hl     [16]uint64
	hh     [16]uint64
	aes    cipher.Block
	aad    []byte
	aadbuf [1 + 32]byte

	clientSystemTitle []byte
	serverSystemTitle []byte
	stoc              []byte
	ctos              []byte
}

var last4 = [...]uint64{0x0000, 0x1c20, 0x3840, 0x2460, 0x7080, 0x6ca0, 0x48c0, 0x54e0, 0xe100, 0xfd20, 0xd940, 0xc560, 0x9180, 0x8da0, 0xa9c0, 0xb5e0}

// newEngine derives the GHASH tables for (ek, ak) and remembers the
// client's system title, used as the IV prefix for frames this side sends.
func newEngine(ek, ak, clientSystemTitle []byte) (*engine, error) {
	if len(ek) != 16 && len(ek) != 24 && len(ek) != 32 {
		return nil, fmt.Errorf("dlmscosem/cipher: encryption key must be 16, 24 or 32 bytes")
	}
	if ak != nil && len(ak) != 16 && len(ak) != 24 && len(ak) != 32 {
		return nil, fmt.Errorf("dlmscosem/cipher: authentication key must be 16, 24 or 32 bytes")
	}
	block, err := aes.NewCipher(ek)
	if err != nil {
		return nil, err
	}
	if len(clientSystemTitle) != 8 {
		return nil, fmt.Errorf("dlmscosem/cipher: system title must be 8 bytes, got %d", len(clientSystemTitle))
	}
	e := &engine{aes: block}
	e.clientSystemTitle = bytes.Clone(clientSystemTitle)
	copy(e.aadbuf[1:], ak)
	e.aad = e.aadbuf[:1+len(ak)]
	e.ak = e.aadbuf[1 : 1+len(ak)]
	e.makeTables()
	return e, nil
}

func (e *engine) makeTables() {
	h := e.tmp[:blockSize]
	e.aes.Encrypt(h, h)

	vh := binary.BigEndian.Uint64(h)
	vl := binary.BigEndian.Uint64(h[8:])

	e.hl[8] = vl
	e.hh[8] = vh

	for i := 4; i > 0; i >>= 1 {
		t := uint32(vl&1) * 0xe1000000
		vl = (vh << 63) | (vl >> 1)
		vh = (vh >> 1) ^ (uint64(t) << 32)
		e.hl[i] = vl
		e.hh[i] = vh
	}

	for i := 2; i < 16; i <<= 1 {
		vh = e.hh[i]
		vl = e.hl[i]
		for j := 1; j < i; j++ {
			e.hh[i+j] = vh ^ e.hh[j]
			e.hl[i+j] = vl ^ e.hl[j]
		}
	}
}

// bind records the server's system title and the StoC/CtoS authentication
// challenges exchanged during association, needed for authTag.
func (e *engine) bind(serverSystemTitle, stoc, ctos []byte) error {
	if len(serverSystemTitle) != 8 {
		return fmt.Errorf("dlmscosem/cipher: server system title must be 8 bytes, got %d", len(serverSystemTitle))
	}
	e.serverSystemTitle = bytes.Clone(serverSystemTitle)
	e.stoc = bytes.Clone(stoc)
	e.ctos = bytes.Clone(ctos)
	return nil
}

func iv(dst []byte, systemTitle []byte, fc uint32) {
	copy(dst, systemTitle)
	dst[8] = byte(fc >> 24)
	dst[9] = byte(fc >> 16)
	dst[10] = byte(fc >> 8)
	dst[11] = byte(fc)
	dst[12], dst[13], dst[14], dst[15] = 0, 0, 0, 1
}

// authTag computes the GMAC tag used as an HLS authentication mechanism
// response, over the appropriate system title / challenge pair for dir.
func (e *engine) authTag(dir Direction, sc byte, fc uint32) ([]byte, error) {
	var systemTitle, challenge []byte
	switch dir {
	case ClientToServer:
		systemTitle, challenge = e.clientSystemTitle, e.stoc
	case ServerToClient:
		systemTitle, challenge = e.serverSystemTitle, e.ctos
	default:
		return nil, fmt.Errorf("dlmscosem/cipher: invalid direction %d", dir)
	}
	out, err := e.encrypt(nil, sc, sc, fc, systemTitle, challenge)
	if err != nil {
		return nil, err
	}
	if len(out) < tagLength {
		return nil, fmt.Errorf("dlmscosem/cipher: tag computation produced too little output")
	}
	return out[len(out)-tagLength:], nil
}

func (e *engine) encryptLen(scControl byte, apdu []byte) (int, error) {
	switch scControl & 0xf0 {
	case 0x10, 0x30:
		return len(apdu) + tagLength, nil
	case 0x20:
		return len(apdu), nil
	}
	return 0, &Error{Kind: InvalidTag, Cause: fmt.Errorf("security control byte 0x%02x", scControl)}
}

func (e *engine) encrypt(ret []byte, scControl byte, scContent byte, fc uint32, systemTitle []byte, apdu []byte) ([]byte, error) {
	if apdu == nil {
		return nil, fmt.Errorf("dlmscosem/cipher: apdu is nil")
	}
	ivBuf := e.tmp[:blockSize]
	iv(ivBuf, systemTitle, fc)

	wl, err := e.encryptLen(scControl, apdu)
	if err != nil {
		return nil, err
	}
	switch scControl & 0xf0 {
	case 0x10:
		aad := make([]byte, 1+len(e.ak)+len(apdu))
		aad[0] = scContent
		copy(aad[1:], e.ak)
		copy(aad[1+len(e.ak):], apdu)

		if cap(ret) >= wl {
			ret = ret[:wl]
		} else {
			ret = make([]byte, wl)
		}
		e.gcmEncryptAuth(nil, aad, nil, ret[len(apdu):])
		copy(ret, apdu)
		return ret, nil
	case 0x20:
		if ret != nil && cap(ret) >= wl {
			ret = ret[:wl]
		} else {
			ret = make([]byte, wl)
		}
		e.gcmEncryptAuth(apdu, nil, ret, nil)
		return ret, nil
	case 0x30:
		e.aad[0] = scContent
		if cap(ret) >= wl {
			ret = ret[:wl]
		} else {
			ret = make([]byte, wl)
		}
		e.gcmEncryptAuth(apdu, e.aad, ret[:len(apdu)], ret[len(apdu):])
		return ret, nil
	}
	return nil, &Error{Kind: InvalidTag, Cause: fmt.Errorf("security control byte 0x%02x", scControl)}
}

func (e *engine) decrypt(ret []byte, scControl byte, scContent byte, fc uint32, systemTitle []byte, apdu []byte) ([]byte, error) {
	if apdu == nil {
		return nil, fmt.Errorf("dlmscosem/cipher: apdu is nil")
	}
	ivBuf := e.tmp[:blockSize]
	iv(ivBuf, systemTitle, fc)

	switch scControl & 0xf0 {
	case 0x10:
		if len(apdu) < tagLength {
			return nil, &Error{Kind: TruncatedFrame}
		}
		aad := make([]byte, 1+len(e.ak)+len(apdu)-tagLength)
		aad[0] = scContent
		copy(aad[1:], e.ak)
		copy(aad[1+len(e.ak):], apdu[:len(apdu)-tagLength])

		if err := e.gcmDecryptAuth(nil, aad, nil, apdu[len(apdu)-tagLength:]); err != nil {
			return nil, err
		}
		wl := len(apdu) - tagLength
		if ret != nil && cap(ret) >= wl {
			ret = ret[:wl]
		} else {
			ret = make([]byte, wl)
		}
		copy(ret, apdu[:wl])
		return ret, nil
	case 0x20:
		wl := len(apdu)
		if ret != nil && cap(ret) >= wl {
			ret = ret[:wl]
		} else {
			ret = make([]byte, wl)
		}
		err := e.gcmDecryptAuth(apdu, nil, ret, nil)
		return ret, err
	case 0x30:
		if len(apdu) < tagLength {
			return nil, &Error{Kind: TruncatedFrame}
		}
		e.aad[0] = scContent
		wl := len(apdu) - tagLength
		if ret != nil && cap(ret) >= wl {
			ret = ret[:wl]
		} else {
			ret = make([]byte, wl)
		}
		err := e.gcmDecryptAuth(apdu[:len(apdu)-tagLength], e.aad, ret, apdu[len(apdu)-tagLength:])
		return ret, err
	}
	return nil, &Error{Kind: InvalidTag, Cause: fmt.Errorf("security control byte 0x%02x", scControl)}
}

func (e *engine) ghash(x []byte, dst []byte) {
	tmp := e.tmp[blockSize<<1 : blockSize*3]
	m := len(x) >> 4
	for i := 0; i < m; i++ {
		xorBlock2(tmp, dst, x)
		x = x[blockSize:]
		e.gfMult(tmp, dst)
	}

	if len(x) != 0 {
		copy(tmp, x)
		clear(tmp[len(x):])
		xorBlock(dst, tmp)
		e.gfMult(dst, tmp)
		copy(dst, tmp)
	}
}

func (e *engine) gfMult(x []byte, dst []byte) {
	lo := x[15] & 0x0f
	hi := x[15] >> 4

	zh := e.hh[lo]
	zl := e.hl[lo]

	rem := zl & 0x0f
	zl = ((zh << 60) | (zl >> 4)) ^ e.hl[hi]
	zh = (zh >> 4) ^ (last4[rem] << 48) ^ e.hh[hi]

	for i := 14; i >= 0; i-- {
		lo = x[i] & 0x0f
		hi = x[i] >> 4

		rem = zl & 0x0f
		zl = ((zh << 60) | (zl >> 4)) ^ e.hl[lo]
		zh = (zh >> 4) ^ (last4[rem] << 48) ^ e.hh[lo]
		rem = zl & 0x0f
		zl = ((zh << 60) | (zl >> 4)) ^ e.hl[hi]
		zh = (zh >> 4) ^ (last4[rem] << 48) ^ e.hh[hi]
	}
	binary.BigEndian.PutUint64(dst, zh)
	binary.BigEndian.PutUint64(dst[8:], zl)
}

func inc32(block []byte) {
	ctr := block[blockSize-4:]
	binary.BigEndian.PutUint32(ctr, binary.BigEndian.Uint32(ctr)+1)
}

func set32(block []byte, val uint32) {
	binary.BigEndian.PutUint32(block[blockSize-4:], val)
}

func xorBlock(dst []byte, src []byte) {
	binary.NativeEndian.PutUint64(dst, binary.NativeEndian.Uint64(dst)^binary.NativeEndian.Uint64(src))
	binary.NativeEndian.PutUint64(dst[8:], binary.NativeEndian.Uint64(dst[8:])^binary.NativeEndian.Uint64(src[8:]))
}

func xorBlock2(dst []byte, src1 []byte, src2 []byte) {
	binary.NativeEndian.PutUint64(dst, binary.NativeEndian.Uint64(src1)^binary.NativeEndian.Uint64(src2))
	binary.NativeEndian.PutUint64(dst[8:], binary.NativeEndian.Uint64(src1[8:])^binary.NativeEndian.Uint64(src2[8:]))
}

func (e *engine) aesCTR(icb []byte, x []byte, dst []byte) {
	e.aes.Encrypt(dst, icb)
	xorBlock(dst, x)
}

func (e *engine) gctrGhash(j0 []byte, s []byte, plain []byte, crypt []byte, aad []byte, encrypt bool) {
	clear(s)
	e.ghash(aad, s)
	if len(plain) != 0 {
		inc32(j0)
		if encrypt {
			e.gctrGhashEnc(j0, plain, crypt, s)
		} else {
			e.gctrGhashDec(j0, crypt, plain, s)
		}
	}

	lenBuf := e.tmp[blockSize*3 : blockSize<<2]
	binary.BigEndian.PutUint64(lenBuf, uint64(len(aad))<<3)
	binary.BigEndian.PutUint64(lenBuf[8:], uint64(len(crypt))<<3)
	e.ghash(lenBuf, s)
}

func (e *engine) gctrGhashEnc(j0 []byte, x []byte, dst []byte, dstHash []byte) {
	tmp := e.tmp[blockSize<<1 : blockSize*3]
	n := len(x) >> 4
	for i := 0; i < n; i++ {
		e.aes.Encrypt(tmp, j0)
		xorBlock2(dst, tmp, x)
		xorBlock2(tmp, dstHash, dst)
		e.gfMult(tmp, dstHash)

		x = x[blockSize:]
		dst = dst[blockSize:]
		inc32(j0)
	}

	if len(x) != 0 {
		e.aes.Encrypt(tmp, j0)
		for i := 0; i < len(x); i++ {
			dst[i] = x[i] ^ tmp[i]
			dstHash[i] ^= dst[i]
		}
		e.gfMult(dstHash, tmp)
		copy(dstHash, tmp)
	}
}

func (e *engine) gctrGhashDec(j0 []byte, x []byte, dst []byte, dstHash []byte) {
	tmp := e.tmp[blockSize<<1 : blockSize*3]
	n := len(x) >> 4
	for i := 0; i < n; i++ {
		e.aes.Encrypt(tmp, j0)
		xorBlock2(dst, tmp, x)
		xorBlock2(tmp, dstHash, x)
		e.gfMult(tmp, dstHash)

		x = x[blockSize:]
		dst = dst[blockSize:]
		inc32(j0)
	}

	if len(x) != 0 {
		e.aes.Encrypt(tmp, j0)
		for i := 0; i < len(x); i++ {
			dst[i] = x[i] ^ tmp[i]
			dstHash[i] ^= x[i]
		}
		e.gfMult(dstHash, tmp)
		copy(dstHash, tmp)
	}
}

func (e *engine) gcmEncryptAuth(plain []byte, aad []byte, crypt []byte, tag []byte) {
	j0 := e.tmp[:blockSize]
	s := e.tmp[blockSize : blockSize<<1]

	e.gctrGhash(j0, s, plain, crypt, aad, true)

	if tag != nil {
		set32(j0, 1)
		t := e.tmp[blockSize<<1 : blockSize*3]
		e.aesCTR(j0, s, t)
		copy(tag, t)
	}
}

func (e *engine) gcmDecryptAuth(crypt []byte, aad []byte, plain []byte, tag []byte) error {
	j0 := e.tmp[:blockSize]
	s := e.tmp[blockSize : blockSize<<1]

	e.gctrGhash(j0, s, plain, crypt, aad, false)

	set32(j0, 1)
	t := e.tmp[blockSize<<1 : blockSize*3]
	e.aesCTR(j0, s, t)

	if tag != nil && !bytes.Equal(tag, t[:len(tag)]) {
		return &Error{Kind: InvalidTag, Cause: fmt.Errorf("gcm authentication tag mismatch")}
	}
	return nil
}
