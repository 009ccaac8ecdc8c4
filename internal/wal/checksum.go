package wal

import "hash/crc32"

// castagnoliTable is faster than IEEE on modern hardware (SSE4.2 CRC32
// instruction support in encoding/hash/crc32).
var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

// CalculateCRC32 returns the checksum of data.
func CalculateCRC32(data []byte) uint32 {
	return crc32.Checksum(data, castagnoliTable)
}

// ValidateCRC32 reports whether data matches the expected checksum.
func ValidateCRC32(data []byte, expected uint32) bool {
	return CalculateCRC32(data) == expected
}
