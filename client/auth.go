package client

import (
	"fmt"

	"github.com/dlms-go/dlmscosem/apdu"
	"github.com/dlms-go/dlmscosem/base"
	"github.com/dlms-go/dlmscosem/cipher"
	"github.com/dlms-go/dlmscosem/xdr"
)

// associationLNObis is the well-known instance of the Association-LN
// object (class-id 15) carrying the reply_to_HLS_authentication method.
var associationLNObis = xdr.Obis{A: 0, B: 0, C: 40, D: 0, E: 0, F: 255}

const (
	classIDAssociationLN       = 15
	methodReplyToHLSAuth int8 = 1
)

// Authenticate completes the high-level-security handshake: it computes
// this client's response to the server's challenge (AARE's StoC) and
// invokes reply_to_HLS_authentication, then — unless checkResponse is
// false — verifies the server's own response against the client's
// challenge (CtoS, i.e. Settings.Password). Call this once after a
// successful Connect when the negotiated diagnostic is
// AuthenticationRequired; a Low or None association has nothing to do
// here.
func (s *Session) Authenticate(checkResponse bool) error {
	if s.state != Associated {
		return &Error{Kind: NotAssociated}
	}
	if s.diagnostic != base.SourceDiagnosticAuthenticationRequired {
		return nil
	}
	switch s.settings.Authentication {
	case base.AuthenticationNone, base.AuthenticationLow, base.AuthenticationHigh:
		return fmt.Errorf("client: authenticate called with mechanism %v", s.settings.Authentication)
	}

	params := cipher.ChallengeParams{
		Mechanism:         s.settings.Authentication,
		Password:          s.settings.Password,
		ClientSystemTitle: s.settings.ClientSystemTitle,
		ServerSystemTitle: s.settings.ServerSystemTitle,
		StoC:              s.serverChallenge,
		CtoS:              s.settings.Password,
		ClientPrivateKey:  s.settings.ClientPrivateKey,
		ServerCertificate: s.settings.ServerCertificate,
		Suite:             s.settings.Suite,
	}

	response, err := cipher.ComputeChallengeResponse(params)
	if err != nil {
		return err
	}

	parameter := xdr.Data{Tag: xdr.TagOctetString, Value: response}
	res, err := s.Action(apdu.MethodDescriptor{
		ClassID:  classIDAssociationLN,
		Obis:     associationLNObis,
		MethodID: methodReplyToHLSAuth,
	}, &parameter, 0, nil)
	if err != nil {
		s.state = Broken
		return err
	}
	if !checkResponse {
		return nil
	}
	if !res.HasReturn {
		s.state = Broken
		return fmt.Errorf("client: no data returned from authentication action")
	}
	serverResponse, ok := res.Return.Value.([]byte)
	if !ok {
		s.state = Broken
		return fmt.Errorf("client: authentication action return is not an octet-string (tag %d)", res.Return.Tag)
	}

	if err := cipher.VerifyChallengeResponse(params, serverResponse); err != nil {
		s.state = Broken
		return err
	}
	return nil
}
