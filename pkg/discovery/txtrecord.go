package discovery

import (
	"fmt"
	"strconv"
	"strings"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeBridgeTXT creates TXT records for bridge discovery.
func EncodeBridgeTXT(info *BridgeInfo) TXTRecordMap {
	txt := make(TXTRecordMap)

	// Required fields
	txt[TXTKeyName] = info.Name
	txt[TXTKeyBitrate] = strconv.FormatUint(uint64(info.Bitrate), 10)

	// Optional fields
	if info.Firmware != "" {
		txt[TXTKeyFirmware] = info.Firmware
	}
	if info.Channel != "" {
		txt[TXTKeyChannel] = info.Channel
	}

	return txt
}

// DecodeBridgeTXT parses TXT records from bridge discovery.
func DecodeBridgeTXT(txt TXTRecordMap) (*BridgeInfo, error) {
	info := &BridgeInfo{}

	// Parse name (required)
	name, ok := txt[TXTKeyName]
	if !ok || name == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyName)
	}
	info.Name = name

	// Parse bitrate (required)
	brStr, ok := txt[TXTKeyBitrate]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyBitrate)
	}
	br, err := strconv.ParseUint(brStr, 10, 32)
	if err != nil || br == 0 {
		return nil, ErrInvalidBitrate
	}
	info.Bitrate = uint32(br)

	// Optional fields
	info.Firmware = txt[TXTKeyFirmware]
	info.Channel = txt[TXTKeyChannel]

	return info, nil
}

// TXTRecordsToStrings converts a TXTRecordMap to a slice of "key=value" strings.
// This format is commonly used by mDNS libraries.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, fmt.Sprintf("%s=%s", k, v))
	}
	return result
}

// StringsToTXTRecords parses a slice of "key=value" strings into a TXTRecordMap.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		parts := strings.SplitN(s, "=", 2)
		if len(parts) == 2 {
			txt[parts[0]] = parts[1]
		} else if len(parts) == 1 && parts[0] != "" {
			// Key without value (boolean flag)
			txt[parts[0]] = ""
		}
	}
	return txt
}
