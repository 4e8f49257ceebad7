package cipher

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/md5"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/dlms-go/dlmscosem/base"
)

// ChallengeParams carries everything the High* authentication mechanisms
// need to compute or verify a reply_to_HLS_authentication value (Green
// Book §9.2.4). Not every field is needed by every mechanism.
type ChallengeParams struct {
	Mechanism         base.Authentication
	Password          []byte // HighMD5/HighSHA1/HighSha256 shared secret
	ClientSystemTitle []byte
	ServerSystemTitle []byte
	StoC              []byte // server-to-client challenge
	CtoS              []byte // client-to-server challenge
	ClientPrivateKey  *ecdsa.PrivateKey // HighEcdsa
	ServerCertificate *x509.Certificate // HighEcdsa
	Suite             *Suite            // HighGmac
	FrameCounter      uint32            // HighGmac
}

// ComputeChallengeResponse builds the calling-authentication-value this
// client sends for the negotiated mechanism. AuthenticationNone/Low/High
// are rejected: None needs no response, Low is a plain password (handled
// by the apdu layer directly), and High (manufacturer-specific) has no
// portable implementation.
func ComputeChallengeResponse(p ChallengeParams) ([]byte, error) {
	var buf bytes.Buffer
	switch p.Mechanism {
	case base.AuthenticationHighMD5:
		buf.Write(p.ServerSystemTitle)
		buf.Write(p.Password)
		h := md5.Sum(buf.Bytes())
		return h[:], nil
	case base.AuthenticationHighSHA1:
		buf.Write(p.ServerSystemTitle)
		buf.Write(p.Password)
		h := sha1.Sum(buf.Bytes())
		return h[:], nil
	case base.AuthenticationHighGmac:
		if p.Suite == nil {
			return nil, fmt.Errorf("dlmscosem/cipher: gmac authentication requires a bound Suite")
		}
		tag, err := p.Suite.AuthTag(ClientToServer, p.FrameCounter)
		if err != nil {
			return nil, err
		}
		out := make([]byte, 5+len(tag))
		out[0] = byte(SecurityAuthentication)
		binary.BigEndian.PutUint32(out[1:], p.FrameCounter)
		copy(out[5:], tag)
		return out, nil
	case base.AuthenticationHighSha256:
		buf.Write(p.Password)
		buf.Write(p.ClientSystemTitle)
		buf.Write(p.ServerSystemTitle)
		buf.Write(p.StoC)
		buf.Write(p.CtoS)
		h := sha256.Sum256(buf.Bytes())
		return h[:], nil
	case base.AuthenticationHighEcdsa:
		if p.ClientPrivateKey == nil {
			return nil, fmt.Errorf("dlmscosem/cipher: ecdsa authentication requires a client private key")
		}
		buf.Write(p.ClientSystemTitle)
		buf.Write(p.ServerSystemTitle)
		buf.Write(p.StoC)
		buf.Write(p.CtoS)
		digest, err := ecdsaDigest(p.ClientPrivateKey.Curve.Params().BitSize, buf.Bytes())
		if err != nil {
			return nil, err
		}
		r, s, err := ecdsa.Sign(rand.Reader, p.ClientPrivateKey, digest)
		if err != nil {
			return nil, fmt.Errorf("dlmscosem/cipher: ecdsa sign: %w", err)
		}
		var out bytes.Buffer
		out.Write(r.Bytes())
		out.Write(s.Bytes())
		return out.Bytes(), nil
	default:
		return nil, fmt.Errorf("dlmscosem/cipher: mechanism %v has no challenge response", p.Mechanism)
	}
}

// VerifyChallengeResponse checks the server's responding-authentication-
// value against the response this client would have computed for the
// reverse direction.
func VerifyChallengeResponse(p ChallengeParams, resp []byte) error {
	var buf bytes.Buffer
	switch p.Mechanism {
	case base.AuthenticationHighMD5:
		buf.Write(p.CtoS)
		buf.Write(p.Password)
		h := md5.Sum(buf.Bytes())
		if !bytes.Equal(resp, h[:]) {
			return fmt.Errorf("dlmscosem/cipher: invalid authentication response")
		}
		return nil
	case base.AuthenticationHighSHA1:
		buf.Write(p.CtoS)
		buf.Write(p.Password)
		h := sha1.Sum(buf.Bytes())
		if !bytes.Equal(resp, h[:]) {
			return fmt.Errorf("dlmscosem/cipher: invalid authentication response")
		}
		return nil
	case base.AuthenticationHighGmac:
		if p.Suite == nil {
			return fmt.Errorf("dlmscosem/cipher: gmac authentication requires a bound Suite")
		}
		if len(resp) != 5+tagLength || resp[0] != byte(SecurityAuthentication) {
			return fmt.Errorf("dlmscosem/cipher: invalid stoc hash response")
		}
		fc := binary.BigEndian.Uint32(resp[1:])
		want, err := p.Suite.AuthTag(ServerToClient, fc)
		if err != nil {
			return err
		}
		if !bytes.Equal(want, resp[5:]) {
			return fmt.Errorf("dlmscosem/cipher: invalid authentication response")
		}
		return nil
	case base.AuthenticationHighSha256:
		buf.Write(p.Password)
		buf.Write(p.ServerSystemTitle)
		buf.Write(p.ClientSystemTitle)
		buf.Write(p.CtoS)
		buf.Write(p.StoC)
		h := sha256.Sum256(buf.Bytes())
		if !bytes.Equal(resp, h[:]) {
			return fmt.Errorf("dlmscosem/cipher: invalid authentication response")
		}
		return nil
	case base.AuthenticationHighEcdsa:
		if p.ServerCertificate == nil {
			return fmt.Errorf("dlmscosem/cipher: ecdsa authentication requires a server certificate")
		}
		if len(resp) == 0 || len(resp)%2 != 0 {
			return fmt.Errorf("dlmscosem/cipher: invalid ecdsa response length")
		}
		pub, ok := p.ServerCertificate.PublicKey.(*ecdsa.PublicKey)
		if !ok {
			return fmt.Errorf("dlmscosem/cipher: server certificate does not carry an ecdsa public key")
		}
		buf.Write(p.ServerSystemTitle)
		buf.Write(p.ClientSystemTitle)
		buf.Write(p.CtoS)
		buf.Write(p.StoC)
		digest, err := ecdsaDigest(pub.Curve.Params().BitSize, buf.Bytes())
		if err != nil {
			return err
		}
		var r, s big.Int
		r.SetBytes(resp[:len(resp)/2])
		s.SetBytes(resp[len(resp)/2:])
		if !ecdsa.Verify(pub, digest, &r, &s) {
			return fmt.Errorf("dlmscosem/cipher: invalid authentication response")
		}
		return nil
	default:
		return fmt.Errorf("dlmscosem/cipher: mechanism %v has no challenge response", p.Mechanism)
	}
}

func ecdsaDigest(curveBits int, data []byte) ([]byte, error) {
	switch curveBits {
	case 256:
		h := sha256.Sum256(data)
		return h[:], nil
	case 384:
		h := sha512.Sum384(data)
		return h[:], nil
	default:
		return nil, fmt.Errorf("dlmscosem/cipher: unsupported ecdsa curve bit size %d", curveBits)
	}
}
