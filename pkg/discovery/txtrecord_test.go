package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeBridgeTXT(t *testing.T) {
	info := &BridgeInfo{
		Name:     "bench-rig",
		Bitrate:  1000000,
		Firmware: "2.4.1",
		Channel:  "can0",
	}

	txt := EncodeBridgeTXT(info)

	assert.Equal(t, "bench-rig", txt[TXTKeyName])
	assert.Equal(t, "1000000", txt[TXTKeyBitrate])
	assert.Equal(t, "2.4.1", txt[TXTKeyFirmware])
	assert.Equal(t, "can0", txt[TXTKeyChannel])
}

func TestEncodeBridgeTXTOmitsEmptyOptionals(t *testing.T) {
	txt := EncodeBridgeTXT(&BridgeInfo{Name: "rig", Bitrate: 500000})

	_, hasFW := txt[TXTKeyFirmware]
	_, hasCh := txt[TXTKeyChannel]
	assert.False(t, hasFW)
	assert.False(t, hasCh)
}

func TestDecodeBridgeTXTRoundTrip(t *testing.T) {
	info := &BridgeInfo{
		Name:     "bench-rig",
		Bitrate:  1000000,
		Firmware: "2.4.1",
	}

	decoded, err := DecodeBridgeTXT(EncodeBridgeTXT(info))
	require.NoError(t, err)
	assert.Equal(t, info, decoded)
}

func TestDecodeBridgeTXTErrors(t *testing.T) {
	tests := []struct {
		name    string
		txt     TXTRecordMap
		wantErr error
	}{
		{
			name:    "missing name",
			txt:     TXTRecordMap{TXTKeyBitrate: "500000"},
			wantErr: ErrMissingRequired,
		},
		{
			name:    "missing bitrate",
			txt:     TXTRecordMap{TXTKeyName: "rig"},
			wantErr: ErrMissingRequired,
		},
		{
			name:    "zero bitrate",
			txt:     TXTRecordMap{TXTKeyName: "rig", TXTKeyBitrate: "0"},
			wantErr: ErrInvalidBitrate,
		},
		{
			name:    "non-numeric bitrate",
			txt:     TXTRecordMap{TXTKeyName: "rig", TXTKeyBitrate: "fast"},
			wantErr: ErrInvalidBitrate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeBridgeTXT(tt.txt)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestStringsToTXTRecords(t *testing.T) {
	txt := StringsToTXTRecords([]string{"nm=rig", "br=500000", "flag", "fw=1.0=rc1"})

	assert.Equal(t, "rig", txt["nm"])
	assert.Equal(t, "500000", txt["br"])
	assert.Equal(t, "", txt["flag"])
	// Only the first "=" splits
	assert.Equal(t, "1.0=rc1", txt["fw"])
}

func TestTXTRecordsToStrings(t *testing.T) {
	strs := TXTRecordsToStrings(TXTRecordMap{"nm": "rig", "br": "500000"})

	assert.Len(t, strs, 2)
	assert.ElementsMatch(t, []string{"nm=rig", "br=500000"}, strs)
}

func TestBridgeServiceAddr(t *testing.T) {
	svc := &BridgeService{Host: "rig.local", Port: 5650}
	assert.Equal(t, "rig.local:5650", svc.Addr())

	svc.Addresses = []string{"192.168.1.20"}
	assert.Equal(t, "192.168.1.20:5650", svc.Addr())

	svc.Addresses = []string{"fe80::1"}
	assert.Equal(t, "[fe80::1]:5650", svc.Addr())
}

func TestValidateInstanceName(t *testing.T) {
	assert.NoError(t, ValidateInstanceName("TORQBUS-bench-rig"))
	assert.Error(t, ValidateInstanceName(""))

	long := make([]byte, 64)
	for i := range long {
		long[i] = 'a'
	}
	assert.ErrorIs(t, ValidateInstanceName(string(long)), ErrInstanceNameTooLong)
}
