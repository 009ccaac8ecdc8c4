package heap

import (
	"encoding/binary"
	"io"
	"os"
)

// Iterator walks every record in the heap in physical (write) order,
// across segment boundaries, used by checkpoint creation and vacuum to
// see every version — live or superseded — without going through a
// B+Tree.
type Iterator struct {
	hm          *Manager
	segmentIdx  int
	currentFile *os.File
	currentPos  int64 // local offset within the current segment file
}

// NewIterator opens an iterator starting at the first segment.
func (h *Manager) NewIterator() (*Iterator, error) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if len(h.segments) == 0 {
		return nil, errNoSegments
	}

	seg := h.segments[0]
	f, err := os.Open(seg.Path)
	if err != nil {
		return nil, err
	}

	return &Iterator{
		hm:          h,
		segmentIdx:  0,
		currentFile: f,
		currentPos:  HeaderSize,
	}, nil
}

// Next returns the next record's body, MVCC header, and global offset.
// Returns io.EOF once every segment has been consumed.
func (it *Iterator) Next() ([]byte, *RecordHeader, int64, error) {
	for {
		it.hm.mutex.RLock()
		if it.segmentIdx >= len(it.hm.segments) {
			it.hm.mutex.RUnlock()
			return nil, nil, 0, io.EOF
		}
		seg := it.hm.segments[it.segmentIdx]
		startOffset := seg.StartOffset
		it.hm.mutex.RUnlock()

		globalOffset := startOffset + it.currentPos

		if _, err := it.currentFile.Seek(it.currentPos, 0); err != nil {
			return nil, nil, 0, err
		}

		headerBuf := make([]byte, EntryHeaderSize)
		if _, err := io.ReadFull(it.currentFile, headerBuf); err != nil {
			if err == io.EOF {
				if err := it.nextSegment(); err != nil {
					return nil, nil, 0, err
				}
				continue
			}
			return nil, nil, 0, err
		}

		docLen := binary.LittleEndian.Uint32(headerBuf[0:4])
		valid := headerBuf[4]
		createLSN := binary.LittleEndian.Uint64(headerBuf[5:13])
		deleteLSN := binary.LittleEndian.Uint64(headerBuf[13:21])
		prevOffset := int64(binary.LittleEndian.Uint64(headerBuf[21:29]))

		doc := make([]byte, docLen)
		if _, err := io.ReadFull(it.currentFile, doc); err != nil {
			return nil, nil, 0, err
		}

		it.currentPos += int64(EntryHeaderSize) + int64(docLen)

		header := &RecordHeader{
			Valid:      valid == 1,
			CreateLSN:  createLSN,
			DeleteLSN:  deleteLSN,
			PrevOffset: prevOffset,
		}

		return doc, header, globalOffset, nil
	}
}

func (it *Iterator) nextSegment() error {
	it.currentFile.Close()
	it.segmentIdx++

	it.hm.mutex.RLock()
	defer it.hm.mutex.RUnlock()

	if it.segmentIdx >= len(it.hm.segments) {
		return io.EOF
	}

	seg := it.hm.segments[it.segmentIdx]
	f, err := os.Open(seg.Path)
	if err != nil {
		return err
	}
	it.currentFile = f
	it.currentPos = HeaderSize
	return nil
}

// Close releases the iterator's file handle.
func (it *Iterator) Close() {
	if it.currentFile != nil {
		it.currentFile.Close()
	}
}
