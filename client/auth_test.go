package client

import (
	"crypto/md5"
	"testing"

	"github.com/dlms-go/dlmscosem/apdu"
	"github.com/dlms-go/dlmscosem/base"
	"github.com/dlms-go/dlmscosem/xdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_Authenticate_NotAssociated(t *testing.T) {
	s := NewSession(newFakeStream(), newTestSettings())
	err := s.Authenticate(true)
	require.Error(t, err)
	var sessErr *Error
	require.ErrorAs(t, err, &sessErr)
	assert.Equal(t, NotAssociated, sessErr.Kind)
}

func TestSession_Authenticate_SkippedWhenNotRequired(t *testing.T) {
	stream := newFakeStream()
	s := NewSession(stream, newTestSettings())
	s.state = Associated
	s.diagnostic = base.SourceDiagnosticNone

	require.NoError(t, s.Authenticate(true))
	assert.Empty(t, stream.writes)
}

func TestSession_Authenticate_HighMD5_Success(t *testing.T) {
	password := []byte("secret")
	serverTitle := []byte("SERVERTTL")

	expected := md5.Sum(append(append([]byte{}, password...), password...))
	ret := xdr.Data{Tag: xdr.TagOctetString, Value: expected[:]}
	resp := buildActionResponseNormal(t, 1, apdu.ResultSuccess, &ret)

	stream := newFakeStream(resp)
	settings := newTestSettings()
	settings.Authentication = base.AuthenticationHighMD5
	settings.Password = password
	settings.ServerSystemTitle = serverTitle

	s := NewSession(stream, settings)
	s.state = Associated
	s.diagnostic = base.SourceDiagnosticAuthenticationRequired

	require.NoError(t, s.Authenticate(true))
	require.Len(t, stream.writes, 1)
}

func TestSession_Authenticate_HighMD5_VerifyFailure(t *testing.T) {
	password := []byte("secret")
	serverTitle := []byte("SERVERTTL")

	wrong := xdr.Data{Tag: xdr.TagOctetString, Value: []byte("not-the-right-hash-at-all-16byt")}
	resp := buildActionResponseNormal(t, 1, apdu.ResultSuccess, &wrong)

	stream := newFakeStream(resp)
	settings := newTestSettings()
	settings.Authentication = base.AuthenticationHighMD5
	settings.Password = password
	settings.ServerSystemTitle = serverTitle

	s := NewSession(stream, settings)
	s.state = Associated
	s.diagnostic = base.SourceDiagnosticAuthenticationRequired

	err := s.Authenticate(true)
	require.Error(t, err)
	assert.Equal(t, Broken, s.State())
}

func TestSession_Authenticate_RejectsNoneLowHigh(t *testing.T) {
	stream := newFakeStream()
	settings := newTestSettings()
	settings.Authentication = base.AuthenticationLow

	s := NewSession(stream, settings)
	s.state = Associated
	s.diagnostic = base.SourceDiagnosticAuthenticationRequired

	err := s.Authenticate(true)
	require.Error(t, err)
}
