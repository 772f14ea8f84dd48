// Non-volatile configuration record: a versioned snapshot of config
// values, read once at init and written through on change. Encoded as a
// flat list of fixed-point varints (protocol.EncodeVLQInt) with a version
// tag and a CRC16 checksum, so its length varies with the values.
package core

import (
	"tinyg/protocol"
)

// NVRecordVersion is bumped whenever the encoded field layout changes.
// A stored record whose version doesn't match is rejected and the caller
// falls back to defaults, rather than misinterpreting stale bytes.
const NVRecordVersion = 1

// nvFixedScale converts the config store's float64 values to a fixed-point
// integer representation for compact, endian-independent persistence.
const nvFixedScale = 1000

// NVStore is the persistence surface the controller reads once at init
// and writes through on change. Concrete implementations back this with
// flash, EEPROM, or (for host-side testing) a plain file.
type NVStore interface {
	ReadRecord() ([]byte, error)
	WriteRecord(data []byte) error
}

// EncodeNVRecord serializes version + fields (as fixed-point VLQ ints) +
// CRC16 into a single byte slice suitable for NVStore.WriteRecord. Each
// field's fixed-point value is split into a signed high half and a 31-bit
// low half, since a single 32-bit varint cannot hold a jerk limit scaled
// by nvFixedScale.
func EncodeNVRecord(fields []float64) []byte {
	out := protocol.NewScratchOutput()
	protocol.EncodeVLQUint(out, NVRecordVersion)
	protocol.EncodeVLQUint(out, uint32(len(fields)))
	for _, f := range fields {
		millis := int64(f * nvFixedScale)
		protocol.EncodeVLQInt(out, int32(millis>>31))
		protocol.EncodeVLQUint(out, uint32(millis&0x7FFFFFFF))
	}
	payload := out.Result()

	record := make([]byte, len(payload)+2)
	copy(record, payload)
	crc := protocol.CRC16(payload)
	record[len(payload)] = byte(crc & 0xFF)
	record[len(payload)+1] = byte(crc >> 8)
	return record
}

// DecodeNVRecord validates the CRC and version, returning the decoded
// fixed-point fields as float64. A mismatched version or CRC returns a
// StatusError(StatusInternalError) so callers can fall back to defaults
// instead of running with corrupted config.
func DecodeNVRecord(record []byte) ([]float64, error) {
	if len(record) < 2 {
		return nil, NewStatusError(StatusInternalError, 0, "nvconfig: record too short")
	}
	payload := record[:len(record)-2]
	wantCRC := uint16(record[len(payload)]) | uint16(record[len(payload)+1])<<8
	if protocol.CRC16(payload) != wantCRC {
		return nil, NewStatusError(StatusInternalError, 0, "nvconfig: checksum mismatch")
	}

	data := payload
	version, err := protocol.DecodeVLQUint(&data)
	if err != nil {
		return nil, NewStatusError(StatusInternalError, 0, "nvconfig: truncated version")
	}
	if version != NVRecordVersion {
		return nil, NewStatusError(StatusInternalError, 0, "nvconfig: version mismatch")
	}

	count, err := protocol.DecodeVLQUint(&data)
	if err != nil {
		return nil, NewStatusError(StatusInternalError, 0, "nvconfig: truncated field count")
	}

	fields := make([]float64, 0, count)
	for i := uint32(0); i < count; i++ {
		hi, err := protocol.DecodeVLQInt(&data)
		if err != nil {
			return nil, NewStatusError(StatusInternalError, 0, "nvconfig: truncated field")
		}
		lo, err := protocol.DecodeVLQUint(&data)
		if err != nil {
			return nil, NewStatusError(StatusInternalError, 0, "nvconfig: truncated field")
		}
		millis := int64(hi)<<31 | int64(lo)
		fields = append(fields, float64(millis)/nvFixedScale)
	}
	return fields, nil
}
