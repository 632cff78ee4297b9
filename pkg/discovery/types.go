package discovery

import "errors"

const (
	// ServiceTypeBridge is the service type advertised by TORQBUS bridges.
	ServiceTypeBridge = "_torqbus._tcp"

	// Domain is the mDNS domain.
	Domain = "local"

	// DefaultPort is the default bridge port.
	DefaultPort = 5650

	// InstanceNamePrefix prefixes every bridge instance name.
	InstanceNamePrefix = "TORQBUS-"

	// MaxInstanceNameLen is the DNS label limit for instance names.
	MaxInstanceNameLen = 63
)

// TXT record keys for bridge discovery.
const (
	// TXTKeyName is the bridge name (required).
	TXTKeyName = "nm"

	// TXTKeyBitrate is the bus bitrate in bit/s (required).
	TXTKeyBitrate = "br"

	// TXTKeyFirmware is the bridge firmware version (optional).
	TXTKeyFirmware = "fw"

	// TXTKeyChannel is the bus channel identifier (optional).
	TXTKeyChannel = "ch"
)

// Discovery errors.
var (
	ErrMissingRequired     = errors.New("missing required field")
	ErrInvalidBitrate      = errors.New("bitrate out of range")
	ErrInstanceNameTooLong = errors.New("instance name exceeds 63 characters")
	ErrNotFound            = errors.New("bridge not found")
)

// BridgeInfo describes a bridge as carried in its TXT records.
type BridgeInfo struct {
	// Name identifies the bridge (from TXT "nm").
	Name string

	// Bitrate is the bus bitrate in bit/s (from TXT "br").
	Bitrate uint32

	// Firmware is the bridge firmware version (from TXT "fw", optional).
	Firmware string

	// Channel is the bus channel identifier (from TXT "ch", optional).
	Channel string
}

// BridgeService represents a discovered bridge.
type BridgeService struct {
	// InstanceName is the mDNS instance name (e.g., "TORQBUS-bench-rig").
	InstanceName string

	// Host is the hostname (e.g., "bench-rig.local").
	Host string

	// Port is the service port.
	Port uint16

	// Addresses contains resolved IP addresses.
	Addresses []string

	// BridgeInfo holds the decoded TXT record fields.
	BridgeInfo
}

// ValidateInstanceName checks if an instance name is valid for mDNS.
func ValidateInstanceName(name string) error {
	if name == "" {
		return errors.New("empty instance name")
	}
	if len(name) > MaxInstanceNameLen {
		return ErrInstanceNameTooLong
	}
	return nil
}
