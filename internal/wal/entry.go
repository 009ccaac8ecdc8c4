// Package wal is the write-ahead log: every mutating operation is
// durably recorded here before it is applied to the in-memory trees,
// giving the engine crash recovery via replay from the last checkpoint.
package wal

import (
	"encoding/binary"
	"io"
)

// Header and entry-type constants.
const (
	HeaderSize = 24 // fixed header size in bytes
	WALVersion = 1

	// Magic number for fast corruption detection.
	WALMagic = 0xDEADBEEF
)

// Entry operation types.
const (
	EntryInsert uint8 = iota + 1
	EntryUpdate
	EntryDelete
	EntryBegin
	EntryCommit
	EntryAbort
)

// Header is the fixed 24-byte prefix of every WAL entry.
type Header struct {
	Magic      uint32
	Version    uint8
	EntryType  uint8
	Reserved   uint16
	LSN        uint64
	PayloadLen uint32
	CRC32      uint32
}

// Entry is one complete record in the log.
type Entry struct {
	Header  Header
	Payload []byte
}

// Encode serializes the header into buf, which must be at least
// HeaderSize bytes long.
func (h *Header) Encode(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	buf[4] = h.Version
	buf[5] = h.EntryType
	binary.LittleEndian.PutUint16(buf[6:8], h.Reserved)
	binary.LittleEndian.PutUint64(buf[8:16], h.LSN)
	binary.LittleEndian.PutUint32(buf[16:20], h.PayloadLen)
	binary.LittleEndian.PutUint32(buf[20:24], h.CRC32)
}

// Decode deserializes buf into the header.
func (h *Header) Decode(buf []byte) {
	h.Magic = binary.LittleEndian.Uint32(buf[0:4])
	h.Version = buf[4]
	h.EntryType = buf[5]
	h.Reserved = binary.LittleEndian.Uint16(buf[6:8])
	h.LSN = binary.LittleEndian.Uint64(buf[8:16])
	h.PayloadLen = binary.LittleEndian.Uint32(buf[16:20])
	h.CRC32 = binary.LittleEndian.Uint32(buf[20:24])
}

// WriteTo writes the entry (header + payload) to w.
func (e *Entry) WriteTo(w io.Writer) (int64, error) {
	var headerBuf [HeaderSize]byte
	e.Header.Encode(headerBuf[:])

	n, err := w.Write(headerBuf[:])
	if err != nil {
		return int64(n), err
	}

	m, err := w.Write(e.Payload)
	return int64(n + m), err
}
