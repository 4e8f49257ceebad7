package cipher

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/dlms-go/dlmscosem/base"
	"github.com/dlms-go/dlmscosem/xdr"
)

// Security is the DLMS security-control-byte high nibble: which of
// authentication, encryption, or both protect a ciphered APDU.
type Security byte

const (
	SecurityAuthentication          Security = 0x10
	SecurityEncryption              Security = 0x20
	SecurityAuthenticatedEncryption Security = 0x30
)

// Suite bundles the keys and system titles needed to wrap/unwrap frames on
// one association. Global (non-dedicated) and dedicated ciphering use
// independent Suites, since they carry independent frame counters.
type Suite struct {
	eng          *engine
	security     Security
	frameCounter uint32
	lastSeen     uint32
	seen         bool // lastSeen holds a counter from a successfully opened frame
	general      bool // use TagGeneralGloCiphering/TagGeneralDedCiphering wrapping
	dedicated    bool
}

// NewSuite derives GHASH tables for (ek, ak) and binds the client system
// title this side uses to build outgoing IVs.
func NewSuite(ek, ak, clientSystemTitle []byte, security Security, dedicated bool) (*Suite, error) {
	eng, err := newEngine(ek, ak, clientSystemTitle)
	if err != nil {
		return nil, err
	}
	return &Suite{eng: eng, security: security, dedicated: dedicated}, nil
}

// Bind records the server's system title and the authentication challenges
// exchanged during AARQ/AARE, required before AuthTag or any frame using the
// server's IV can be processed.
func (s *Suite) Bind(serverSystemTitle, stoc, ctos []byte) error {
	return s.eng.bind(serverSystemTitle, stoc, ctos)
}

// UseGeneralCiphering switches Wrap to the TagGeneralGloCiphering/
// TagGeneralDedCiphering framing, which embeds the sender's system title
// in the APDU instead of relying on an out-of-band association.
func (s *Suite) UseGeneralCiphering(v bool) {
	s.general = v
}

// OuterTag returns the service-independent outer tag Wrap should be called
// with for a general-ciphering frame, or ok=false when plain Glo/Ded
// per-service tags (chosen by the caller from the APDU being wrapped) apply
// instead.
func (s *Suite) OuterTag() (tag byte, ok bool) {
	if !s.general {
		return 0, false
	}
	if s.dedicated {
		return byte(base.TagGeneralDedCiphering), true
	}
	return byte(base.TagGeneralGloCiphering), true
}

// IsDedicated reports whether this Suite wraps dedicated-key ciphering
// (true) or global ciphering (false).
func (s *Suite) IsDedicated() bool {
	return s.dedicated
}

// SetFrameCounter seeds the outgoing invocation counter, e.g. after
// resuming a persisted association.
func (s *Suite) SetFrameCounter(fc uint32) {
	s.frameCounter = fc
}

// FrameCounter reports the next invocation counter Wrap will use.
func (s *Suite) FrameCounter() uint32 {
	return s.frameCounter
}

// AuthTag computes a GMAC authentication response for HighGmac mechanism
// negotiation (the mechanism-specific value carried in calling/responding-
// authentication-value).
func (s *Suite) AuthTag(dir Direction, fc uint32) ([]byte, error) {
	return s.eng.authTag(dir, byte(s.security), fc)
}

// Wrap seals apdu under outerTag (one of the TagGlo*/TagDed* service tags,
// or TagGeneralGloCiphering/TagGeneralDedCiphering), incrementing the
// frame counter on success. The invocation counter MUST NOT be reused: a
// counter that has wrapped past 0xFFFFFFFF without a re-key is reported as
// CounterExhausted rather than silently wrapping to 0.
func (s *Suite) Wrap(outerTag byte, apdu []byte) ([]byte, error) {
	if s.frameCounter == 0xFFFFFFFF {
		return nil, &Error{Kind: CounterExhausted}
	}
	wl, err := s.eng.encryptLen(byte(s.security), apdu)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	out.WriteByte(outerTag)

	useGeneral := outerTag == byte(base.TagGeneralGloCiphering) || outerTag == byte(base.TagGeneralDedCiphering)
	var body bytes.Buffer
	if useGeneral {
		if len(s.eng.clientSystemTitle) != 8 {
			return nil, fmt.Errorf("dlmscosem/cipher: invalid client system title length %d", len(s.eng.clientSystemTitle))
		}
		body.WriteByte(8)
		body.Write(s.eng.clientSystemTitle)
	}
	xdr.EncodeLength(&body, uint(wl+5))
	body.WriteByte(byte(s.security))
	var fcBuf [4]byte
	binary.BigEndian.PutUint32(fcBuf[:], s.frameCounter)
	body.Write(fcBuf[:])

	cipherText, err := s.eng.encrypt(nil, byte(s.security), byte(s.security), s.frameCounter, s.eng.clientSystemTitle, apdu)
	if err != nil {
		return nil, err
	}
	body.Write(cipherText)

	out.Write(body.Bytes())
	s.frameCounter++
	return out.Bytes(), nil
}

// Unwrap opens a GLO/DED/general-ciphered frame. apdu must start with the
// outer tag byte. The server's system title must be bound via Bind first,
// since the server's IV is built from it; a counter that does not strictly
// increase between calls is reported as ReplaySuspected.
func (s *Suite) Unwrap(apdu []byte) ([]byte, error) {
	if len(apdu) < 5 {
		return nil, &Error{Kind: TruncatedFrame}
	}
	useGeneral := apdu[0] == byte(base.TagGeneralGloCiphering) || apdu[0] == byte(base.TagGeneralDedCiphering)
	rest := apdu[1:]
	r := bytes.NewReader(rest)

	if useGeneral {
		sl, c, err := xdr.DecodeLength(r)
		if err != nil {
			return nil, err
		}
		title := make([]byte, sl)
		if _, err := r.Read(title); err != nil {
			return nil, &Error{Kind: TruncatedFrame, Cause: err}
		}
		_ = c
	}

	sl, _, err := xdr.DecodeLength(r)
	if err != nil {
		return nil, err
	}
	remaining := make([]byte, r.Len())
	_, _ = r.Read(remaining)
	if uint(len(remaining)) < sl || len(remaining) < 5 {
		return nil, &Error{Kind: TruncatedFrame}
	}
	remaining = remaining[:sl]

	scControl := remaining[0]
	fc := binary.BigEndian.Uint32(remaining[1:5])
	if s.seen && fc <= s.lastSeen {
		return nil, &Error{Kind: ReplaySuspected, Cause: fmt.Errorf("frame counter %d did not advance past %d", fc, s.lastSeen)}
	}

	plain, err := s.eng.decrypt(nil, scControl, scControl, fc, s.eng.serverSystemTitle, remaining[5:])
	if err != nil {
		return nil, err
	}
	s.lastSeen = fc
	s.seen = true
	return plain, nil
}
