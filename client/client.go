package client

import (
	"bytes"
	"fmt"
	"io"

	"github.com/dlms-go/dlmscosem/apdu"
	"github.com/dlms-go/dlmscosem/base"
	"github.com/dlms-go/dlmscosem/xdr"
	"go.uber.org/zap"
)

// Session drives one DLMS/COSEM association over a transport. It owns the
// invoke-id counter, the reusable PDU buffer, and (once negotiated) the
// cipher suite protecting GLO/DED-wrapped services.
type Session struct {
	transport base.Stream
	settings  *Settings
	logger    *zap.SugaredLogger

	state  State
	invoke invokeCounter

	negotiatedConformance   uint32
	serverMaxReceivePduSize uint16
	vaAddress               int16
	serverChallenge         []byte
	diagnostic              base.SourceDiagnostic

	pdu bytes.Buffer
}

// NewSession wraps transport with the association state machine described
// by settings. The transport is not opened until Connect.
func NewSession(transport base.Stream, settings *Settings) *Session {
	return &Session{transport: transport, settings: settings, state: Disconnected}
}

// SetLogger attaches a structured logger, propagated to the transport too.
func (s *Session) SetLogger(logger *zap.SugaredLogger) {
	s.logger = logger
	s.transport.SetLogger(logger)
}

// State reports the current association state.
func (s *Session) State() State {
	return s.state
}

func (s *Session) logf(format string, v ...any) {
	if s.logger != nil {
		s.logger.Infof(format, v...)
	}
}

// logd emits a hex dump of a PDU at debug level, the way the teacher traces
// wire traffic with base.LogHex.
func (s *Session) logd(label string, b []byte) {
	if s.logger != nil {
		s.logger.Debug(base.LogHex(label, b))
	}
}

// Connect opens the transport, sends AARQ, and awaits AARE. On acceptance
// the negotiated conformance/PDU size are stored and the session moves to
// Associated; on rejection it returns to Disconnected with an *Error of
// Kind Rejected.
func (s *Session) Connect() error {
	if s.state != Disconnected && s.state != Broken {
		return &Error{Kind: SessionBroken, Cause: fmt.Errorf("connect called from state %s", s.state)}
	}
	s.state = Associating

	if err := s.transport.Open(); err != nil {
		s.state = Broken
		return err
	}

	initiate := apdu.BuildInitiateRequest(s.settings.Conformance, uint16(s.settings.MaxPduSize), s.dedicatedKeyIfAny())
	userInfo, err := s.cipherUserInformation(initiate)
	if err != nil {
		s.state = Broken
		return err
	}

	password, err := s.authenticationValue()
	if err != nil {
		s.state = Broken
		return err
	}

	out, redacted, err := apdu.EncodeAARQ(apdu.AARQParams{
		ApplicationContext: s.settings.ApplicationContext,
		AuthMechanism:      s.settings.Authentication,
		ClientSystemTitle:  s.settings.ClientSystemTitle,
		Password:           password,
		UserInformation:    userInfo,
	})
	if err != nil {
		s.state = Broken
		return err
	}
	s.logf("sending aarq: % x (redacted)", redacted)
	s.logd("AARQ (sec values zeroed)", redacted)

	if err := s.transport.Write(out); err != nil {
		s.state = Broken
		return err
	}

	resp, err := s.readSmall()
	if err != nil {
		s.state = Broken
		return err
	}
	s.logd("AARE", resp)
	if len(resp) < 2 || resp[0] != byte(base.TagAARE) {
		if len(resp) == 0 {
			resp = []byte{0}
		}
		s.state = Broken
		return &Error{Kind: SessionBroken, Cause: fmt.Errorf("expected aare, got tag 0x%02x", resp[0])}
	}
	tag, _, payload, err := xdr.DecodeTLV(resp)
	if err != nil || tag != byte(base.TagAARE) {
		s.state = Broken
		return &Error{Kind: SessionBroken, Cause: fmt.Errorf("malformed aare frame")}
	}

	aare, err := apdu.DecodeAARE(payload)
	if err != nil {
		s.state = Broken
		return err
	}
	if aare.Result != base.AssociationResultAccepted {
		s.state = Disconnected
		return &Error{Kind: Rejected, Diagnostic: aare.Diagnostic}
	}
	s.settings.ServerSystemTitle = aare.ServerSystemTitle
	s.serverChallenge = aare.ServerChallenge
	s.diagnostic = aare.Diagnostic
	if s.settings.Suite != nil && aare.ServerSystemTitle != nil {
		if err := s.settings.Suite.Bind(aare.ServerSystemTitle, aare.ServerChallenge, s.settings.Password); err != nil {
			s.state = Broken
			return err
		}
	}

	body := aare.InitiateResponseBody
	if s.settings.Suite != nil && isCiphered(aare.InitiateResponseTag) {
		body, err = s.settings.Suite.Unwrap(append([]byte{aare.InitiateResponseTag}, body...))
		if err != nil {
			s.state = Broken
			return err
		}
		body = body[1:]
	}

	switch base.CosemTag(aare.InitiateResponseTag) {
	case base.TagConfirmedServiceError, base.TagGloConfirmedServiceError:
		cse, derr := apdu.DecodeConfirmedServiceError(body)
		if derr != nil {
			s.state = Broken
			return derr
		}
		s.state = Disconnected
		return cse
	default:
		ir, derr := apdu.DecodeInitiateResponse(body)
		if derr != nil {
			s.state = Broken
			return derr
		}
		s.negotiatedConformance = ir.NegotiatedConformance
		s.serverMaxReceivePduSize = ir.ServerMaxReceivePduSize
		s.vaAddress = ir.VAAddress
	}

	s.state = Associated
	return nil
}

// Disconnect emits RLRQ, awaits RLRE, and moves the session back to
// Disconnected. A transport error during release is logged, not raised,
// matching the teacher's best-effort Close behavior.
func (s *Session) Disconnect() error {
	if s.state != Associated {
		return &Error{Kind: NotAssociated}
	}
	s.state = Releasing

	rl := apdu.EncodeRLRQ(s.settings.EmptyRLRQ)
	if err := s.transport.Write(rl); err != nil {
		s.logf("rlrq write failed: %v", err)
	} else if _, err := s.readSmall(); err != nil {
		s.logf("rlre read failed: %v", err)
	}

	s.state = Disconnected
	return s.transport.Close()
}

func (s *Session) dedicatedKeyIfAny() []byte {
	if s.settings.UseDedicatedKey {
		return s.settings.DedicatedKey
	}
	return nil
}

func (s *Session) cipherUserInformation(initiate []byte) ([]byte, error) {
	if s.settings.Suite == nil {
		return initiate, nil
	}
	tag, ok := s.settings.Suite.OuterTag()
	if !ok {
		tag = byte(base.TagGloInitiateRequest)
	}
	wrapped, err := s.settings.Suite.Wrap(tag, initiate)
	if err != nil {
		return nil, err
	}
	return wrapped, nil
}

// authenticationValue returns the AARQ calling-authentication-value: the
// plain password for Low, and the client's own challenge (CtoS) for every
// High* mechanism — Settings.Password doubles as that challenge, matching
// the convention that the caller populates it before Connect either way.
func (s *Session) authenticationValue() ([]byte, error) {
	if s.settings.Authentication == base.AuthenticationNone {
		return nil, nil
	}
	return s.settings.Password, nil
}

func isCiphered(tag byte) bool {
	return base.CosemTag(tag) == base.TagGloInitiateResponse || base.CosemTag(tag) == base.TagGeneralGloCiphering
}

const maxSmallReadout = 2048

// readSmall reads one small (non-block-transferred) response frame, ended
// by the transport's EOF-per-message framing: AARE/RLRE are never
// block-transferred, so a growing scratch buffer is sufficient.
func (s *Session) readSmall() ([]byte, error) {
	buf := make([]byte, 128)
	total := 0
	for {
		if total == len(buf) {
			if total >= maxSmallReadout {
				return nil, fmt.Errorf("client: no room for response (%d bytes)", total)
			}
			grown := make([]byte, len(buf)+128)
			copy(grown, buf)
			buf = grown
		}
		n, err := s.transport.Read(buf[total:])
		total += n
		if err != nil {
			if err == io.EOF {
				return buf[:total], nil
			}
			return nil, err
		}
	}
}
