// Package config loads a ClientSettings value the way the pack's dittofs
// example loads its service config: spf13/viper binds environment
// variables and an optional YAML file onto the struct, and the values it
// produces are the exact client.Settings the library consumes — there is
// no parallel config model between the CLI and the library.
package config

import (
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dlms-go/dlmscosem/base"
	"github.com/dlms-go/dlmscosem/cipher"
	"github.com/dlms-go/dlmscosem/client"
	"github.com/spf13/viper"
)

// ClientSettings mirrors client.Settings field-for-field but with
// marshalable types (hex strings instead of raw byte slices, a named
// authentication mode instead of base.Authentication) so it can come from
// a YAML file or environment variables before being resolved into the
// value the session actually uses.
type ClientSettings struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`

	ClientAddress int    `mapstructure:"client_address" yaml:"client_address"`
	ServerAddress int    `mapstructure:"server_address" yaml:"server_address"`
	MaxPduSize    int    `mapstructure:"max_pdu_size" yaml:"max_pdu_size"`
	Authentication string `mapstructure:"authentication" yaml:"authentication"` // none|low|high_md5|high_sha1|high_gmac|high_sha256|high_ecdsa
	Password       string `mapstructure:"password" yaml:"password"`            // hex-encoded
	HighPriority   bool   `mapstructure:"high_priority" yaml:"high_priority"`
	EmptyRLRQ      bool   `mapstructure:"empty_rlrq" yaml:"empty_rlrq"`

	ClientSystemTitle string `mapstructure:"client_system_title" yaml:"client_system_title"` // hex-encoded
	ServerSystemTitle string `mapstructure:"server_system_title" yaml:"server_system_title"` // hex-encoded, optional

	Security          string `mapstructure:"security" yaml:"security"` // none|authentication|encryption|authenticated_encryption
	EncryptionKeyHex  string `mapstructure:"encryption_key" yaml:"encryption_key"`
	AuthenticationKeyHex string `mapstructure:"authentication_key" yaml:"authentication_key"`
	UseDedicatedKey   bool   `mapstructure:"use_dedicated_key" yaml:"use_dedicated_key"`
	DedicatedKeyHex   string `mapstructure:"dedicated_key" yaml:"dedicated_key"`
	UseGeneralCiphering bool `mapstructure:"use_general_ciphering" yaml:"use_general_ciphering"`

	ServerCertificatePath string `mapstructure:"server_certificate_path" yaml:"server_certificate_path"`

	MaxAttributesPerRequest int           `mapstructure:"max_attributes_per_request" yaml:"max_attributes_per_request"`
	DialTimeout             time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
}

// Load reads ClientSettings from an optional YAML file at configPath,
// environment variables under the DLMSCLIENT_ prefix, and defaults, in
// that precedence order (env overrides file overrides defaults).
func Load(configPath string) (*ClientSettings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DLMSCLIENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", configPath, err)
		}
	}

	var cfg ClientSettings
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 4059)
	v.SetDefault("client_address", 16)
	v.SetDefault("server_address", 1)
	v.SetDefault("max_pdu_size", 1024)
	v.SetDefault("authentication", "none")
	v.SetDefault("high_priority", true)
	v.SetDefault("empty_rlrq", true)
	v.SetDefault("security", "none")
	v.SetDefault("max_attributes_per_request", 10)
	v.SetDefault("dial_timeout", 10*time.Second)
	// Unmarshal only sees keys viper already knows, so the remaining fields
	// get empty defaults to make their DLMSCLIENT_ variables take effect.
	for _, k := range []string{"host", "password", "client_system_title", "server_system_title",
		"encryption_key", "authentication_key", "dedicated_key", "server_certificate_path"} {
		v.SetDefault(k, "")
	}
	v.SetDefault("use_dedicated_key", false)
	v.SetDefault("use_general_ciphering", false)
}

func decodeHex(field, s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("config: %s is not valid hex: %w", field, err)
	}
	return b, nil
}

func parseAuthentication(s string) (base.Authentication, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return base.AuthenticationNone, nil
	case "low":
		return base.AuthenticationLow, nil
	case "high_md5":
		return base.AuthenticationHighMD5, nil
	case "high_sha1":
		return base.AuthenticationHighSHA1, nil
	case "high_gmac":
		return base.AuthenticationHighGmac, nil
	case "high_sha256":
		return base.AuthenticationHighSha256, nil
	case "high_ecdsa":
		return base.AuthenticationHighEcdsa, nil
	default:
		return 0, fmt.Errorf("config: unknown authentication mode %q", s)
	}
}

func parseSecurity(s string) (cipher.Security, bool, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return 0, false, nil
	case "authentication":
		return cipher.SecurityAuthentication, true, nil
	case "encryption":
		return cipher.SecurityEncryption, true, nil
	case "authenticated_encryption":
		return cipher.SecurityAuthenticatedEncryption, true, nil
	default:
		return 0, false, fmt.Errorf("config: unknown security mode %q", s)
	}
}

func loadCertificate(path string) (*x509.Certificate, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading server certificate: %w", err)
	}
	block, _ := pem.Decode(raw)
	if block != nil {
		raw = block.Bytes
	}
	cert, err := x509.ParseCertificate(raw)
	if err != nil {
		return nil, fmt.Errorf("config: parsing server certificate: %w", err)
	}
	return cert, nil
}

// Resolve turns the marshalable ClientSettings into the client.Settings
// and cipher.Suite the library actually consumes, decoding every hex
// field and constructing the cipher suite when security is not none.
func (c *ClientSettings) Resolve() (*client.Settings, error) {
	auth, err := parseAuthentication(c.Authentication)
	if err != nil {
		return nil, err
	}
	password, err := decodeHex("password", c.Password)
	if err != nil {
		return nil, err
	}
	clientTitle, err := decodeHex("client_system_title", c.ClientSystemTitle)
	if err != nil {
		return nil, err
	}
	serverTitle, err := decodeHex("server_system_title", c.ServerSystemTitle)
	if err != nil {
		return nil, err
	}
	dedicatedKey, err := decodeHex("dedicated_key", c.DedicatedKeyHex)
	if err != nil {
		return nil, err
	}
	cert, err := loadCertificate(c.ServerCertificatePath)
	if err != nil {
		return nil, err
	}

	settings := client.NewSettings(auth, c.MaxPduSize)
	settings.ClientAddress = byte(c.ClientAddress)
	settings.ServerAddress = uint16(c.ServerAddress)
	settings.HighPriority = c.HighPriority
	settings.EmptyRLRQ = c.EmptyRLRQ
	settings.Password = password
	settings.ClientSystemTitle = clientTitle
	settings.ServerSystemTitle = serverTitle
	settings.ServerCertificate = cert
	settings.UseDedicatedKey = c.UseDedicatedKey
	settings.DedicatedKey = dedicatedKey
	if c.MaxAttributesPerRequest > 0 {
		settings.MaxAttributesPerRequest = c.MaxAttributesPerRequest
	}

	security, enabled, err := parseSecurity(c.Security)
	if err != nil {
		return nil, err
	}
	if enabled {
		ek, err := decodeHex("encryption_key", c.EncryptionKeyHex)
		if err != nil {
			return nil, err
		}
		ak, err := decodeHex("authentication_key", c.AuthenticationKeyHex)
		if err != nil {
			return nil, err
		}
		suite, err := cipher.NewSuite(ek, ak, clientTitle, security, c.UseDedicatedKey)
		if err != nil {
			return nil, fmt.Errorf("config: building cipher suite: %w", err)
		}
		suite.UseGeneralCiphering(c.UseGeneralCiphering)
		settings.Security = security
		settings.Suite = suite
		settings.ApplicationContext = base.ApplicationContextLNCiphering
	}

	return settings, nil
}
