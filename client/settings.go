package client

import (
	"crypto/ecdsa"
	"crypto/x509"
	"time"

	"github.com/dlms-go/dlmscosem/base"
	"github.com/dlms-go/dlmscosem/cipher"
)

// Clock supplies the current time for operations that stamp a DateTime,
// e.g. SetClockNow. Tests substitute a fixed clock; Settings defaults to
// time.Now.
type Clock func() time.Time

// Settings configures a Session: addressing, negotiated PDU size,
// conformance bitfield, and optional security context.
type Settings struct {
	ClientAddress      byte
	ServerAddress      uint16
	MaxPduSize         int
	Conformance        uint32
	HighPriority       bool
	EmptyRLRQ          bool
	ApplicationContext base.ApplicationContext

	Authentication    base.Authentication
	Password          []byte // Low and the High* mechanisms that hash it
	ClientSystemTitle []byte
	ServerSystemTitle []byte // filled in from AARE once known
	ClientPrivateKey  *ecdsa.PrivateKey
	ServerCertificate *x509.Certificate

	Security        cipher.Security
	Suite           *cipher.Suite // nil disables ciphering
	UseDedicatedKey bool
	DedicatedKey    []byte

	MaxAttributesPerRequest int // chunk_size for bulk operations, default 10

	Clock Clock // defaults to time.Now in NewSettings
}

// DefaultConformance mirrors the bits a logical-name client offering
// GET/SET/ACTION with block transfer and selective access would propose.
const DefaultConformance = base.ConformanceBlockBlockTransferWithGetOrRead |
	base.ConformanceBlockBlockTransferWithSetOrWrite |
	base.ConformanceBlockBlockTransferWithAction |
	base.ConformanceBlockAction | base.ConformanceBlockGet | base.ConformanceBlockSet |
	base.ConformanceBlockSelectiveAccess | base.ConformanceBlockMultipleReferences |
	base.ConformanceBlockAttribute0SupportedWithGet

// NewSettings returns Settings for a logical-name association with the
// given authentication mechanism, defaulting chunk_size to 10 per the
// bulk-operation contract.
func NewSettings(auth base.Authentication, maxPduSize int) *Settings {
	return &Settings{
		MaxPduSize:              maxPduSize,
		Conformance:             DefaultConformance,
		HighPriority:            true,
		EmptyRLRQ:               true,
		ApplicationContext:      base.ApplicationContextLNNoCiphering,
		Authentication:          auth,
		MaxAttributesPerRequest: 10,
		Clock:                   time.Now,
	}
}
