package cipher

import (
	"testing"

	"github.com/dlms-go/dlmscosem/base"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeys() (ek, ak, titleA, titleB []byte) {
	ek = []byte("0123456789ABCDEF")
	ak = []byte("FEDCBA9876543210")
	titleA = []byte("CLIENT01")
	titleB = []byte("METER001")
	return
}

// pairedSuites returns a Suite that wraps frames as the sender (titleA) and
// a Suite that unwraps them as the receiver, bound to the sender's title.
func pairedSuites(t *testing.T, security Security) (sender, receiver *Suite) {
	t.Helper()
	ek, ak, titleA, titleB := testKeys()

	sender, err := NewSuite(ek, ak, titleA, security, false)
	require.NoError(t, err)

	receiver, err = NewSuite(ek, ak, titleB, security, false)
	require.NoError(t, err)
	require.NoError(t, receiver.Bind(titleA, nil, nil))
	return sender, receiver
}

// ============================================================================
// Wrap/Unwrap round trip
// ============================================================================

func TestSuite_WrapUnwrap_AuthenticatedEncryption(t *testing.T) {
	sender, receiver := pairedSuites(t, SecurityAuthenticatedEncryption)
	plaintext := []byte("get-request-normal payload")

	wrapped, err := sender.Wrap(byte(base.TagGloGetRequest), plaintext)
	require.NoError(t, err)
	assert.Equal(t, byte(base.TagGloGetRequest), wrapped[0])

	got, err := receiver.Unwrap(wrapped)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestSuite_WrapUnwrap_EncryptionOnly(t *testing.T) {
	sender, receiver := pairedSuites(t, SecurityEncryption)
	plaintext := []byte("confidential but unauthenticated")

	wrapped, err := sender.Wrap(byte(base.TagGloGetRequest), plaintext)
	require.NoError(t, err)

	got, err := receiver.Unwrap(wrapped)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestSuite_WrapUnwrap_AuthenticationOnly(t *testing.T) {
	sender, receiver := pairedSuites(t, SecurityAuthentication)
	plaintext := []byte("public but authenticated")

	wrapped, err := sender.Wrap(byte(base.TagGloGetRequest), plaintext)
	require.NoError(t, err)

	got, err := receiver.Unwrap(wrapped)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestSuite_Unwrap_TamperedCiphertextFailsAuth(t *testing.T) {
	sender, receiver := pairedSuites(t, SecurityAuthenticatedEncryption)
	wrapped, err := sender.Wrap(byte(base.TagGloGetRequest), []byte("payload"))
	require.NoError(t, err)

	wrapped[len(wrapped)-1] ^= 0xFF

	_, err = receiver.Unwrap(wrapped)
	assert.Error(t, err)
}

// ============================================================================
// Frame counter bookkeeping
// ============================================================================

func TestSuite_Wrap_IncrementsFrameCounter(t *testing.T) {
	sender, _ := pairedSuites(t, SecurityAuthenticatedEncryption)
	assert.Equal(t, uint32(0), sender.FrameCounter())

	_, err := sender.Wrap(byte(base.TagGloGetRequest), []byte("a"))
	require.NoError(t, err)
	assert.Equal(t, uint32(1), sender.FrameCounter())
}

func TestSuite_Wrap_CounterExhausted(t *testing.T) {
	sender, _ := pairedSuites(t, SecurityAuthenticatedEncryption)
	sender.SetFrameCounter(0xFFFFFFFF)

	_, err := sender.Wrap(byte(base.TagGloGetRequest), []byte("a"))
	require.Error(t, err)
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, CounterExhausted, cerr.Kind)
}

func TestSuite_Unwrap_ReplaySuspected(t *testing.T) {
	sender, receiver := pairedSuites(t, SecurityAuthenticatedEncryption)
	sender.SetFrameCounter(5)

	first, err := sender.Wrap(byte(base.TagGloGetRequest), []byte("first"))
	require.NoError(t, err)
	_, err = receiver.Unwrap(first)
	require.NoError(t, err)

	sender.SetFrameCounter(5)
	replayed, err := sender.Wrap(byte(base.TagGloGetRequest), []byte("replay"))
	require.NoError(t, err)

	_, err = receiver.Unwrap(replayed)
	require.Error(t, err)
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, ReplaySuspected, cerr.Kind)
}

// ============================================================================
// General ciphering outer tag
// ============================================================================

func TestSuite_OuterTag(t *testing.T) {
	ek, ak, titleA, _ := testKeys()
	s, err := NewSuite(ek, ak, titleA, SecurityAuthenticatedEncryption, false)
	require.NoError(t, err)

	_, ok := s.OuterTag()
	assert.False(t, ok, "plain glo/ded ciphering has no fixed outer tag")

	s.UseGeneralCiphering(true)
	tag, ok := s.OuterTag()
	require.True(t, ok)
	assert.Equal(t, byte(base.TagGeneralGloCiphering), tag)
}

func TestSuite_OuterTag_Dedicated(t *testing.T) {
	ek, ak, titleA, _ := testKeys()
	s, err := NewSuite(ek, ak, titleA, SecurityAuthenticatedEncryption, true)
	require.NoError(t, err)
	s.UseGeneralCiphering(true)

	tag, ok := s.OuterTag()
	require.True(t, ok)
	assert.Equal(t, byte(base.TagGeneralDedCiphering), tag)
	assert.True(t, s.IsDedicated())
}

func TestSuite_WrapUnwrap_GeneralCiphering(t *testing.T) {
	ek, ak, titleA, titleB := testKeys()
	sender, err := NewSuite(ek, ak, titleA, SecurityAuthenticatedEncryption, false)
	require.NoError(t, err)
	sender.UseGeneralCiphering(true)

	receiver, err := NewSuite(ek, ak, titleB, SecurityAuthenticatedEncryption, false)
	require.NoError(t, err)
	require.NoError(t, receiver.Bind(titleA, nil, nil))

	outerTag, ok := sender.OuterTag()
	require.True(t, ok)

	wrapped, err := sender.Wrap(outerTag, []byte("general-ciphered payload"))
	require.NoError(t, err)

	got, err := receiver.Unwrap(wrapped)
	require.NoError(t, err)
	assert.Equal(t, []byte("general-ciphered payload"), got)
}
