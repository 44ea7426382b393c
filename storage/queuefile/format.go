package queuefile

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math"

	"github.com/and161185/csm-transport/internal/errs"
	"github.com/golang/snappy"
)

// File layout, all integers big endian:
//
//	header  := magic(4) count(4) head(4) tail(4)
//	element := length(4) crc(4) payload[length & lengthMask]
//
// head is the offset of the first element, tail the offset past the last committed one.
// Bytes after tail belong to an append that never committed and are discarded on open.
const (
	HeaderSize      = 16
	frameHeaderSize = 8

	magic = uint32(0x43534d51) // "CSMQ"

	compressedFlag = uint32(1) << 31
	lengthMask     = compressedFlag - 1

	maxFileSize = int64(math.MaxUint32)
)

var crcTable = crc32.MakeTable(crc32.Castagnoli)

type header struct {
	count uint32
	head  uint32
	tail  uint32
}

func (h header) encode() []byte {
	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(buf[0:4], magic)
	binary.BigEndian.PutUint32(buf[4:8], h.count)
	binary.BigEndian.PutUint32(buf[8:12], h.head)
	binary.BigEndian.PutUint32(buf[12:16], h.tail)
	return buf
}

func decodeHeader(buf []byte, fileSize int64) (header, error) {
	if len(buf) < HeaderSize {
		return header{}, fmt.Errorf("short header: %d bytes", len(buf))
	}
	if m := binary.BigEndian.Uint32(buf[0:4]); m != magic {
		return header{}, fmt.Errorf("bad magic %#x", m)
	}
	h := header{
		count: binary.BigEndian.Uint32(buf[4:8]),
		head:  binary.BigEndian.Uint32(buf[8:12]),
		tail:  binary.BigEndian.Uint32(buf[12:16]),
	}
	if h.head < HeaderSize || h.head > h.tail || int64(h.tail) > fileSize {
		return header{}, fmt.Errorf("offsets out of range: head=%d tail=%d size=%d", h.head, h.tail, fileSize)
	}
	return h, nil
}

// encodeFrame returns the on-disk bytes of one element.
func encodeFrame(data []byte, compress bool) []byte {
	payload := data
	length := uint32(len(data))
	if compress {
		payload = snappy.Encode(nil, data)
		length = uint32(len(payload)) | compressedFlag
	}

	frame := make([]byte, frameHeaderSize+len(payload))
	binary.BigEndian.PutUint32(frame[0:4], length)
	binary.BigEndian.PutUint32(frame[4:8], crc32.Checksum(payload, crcTable))
	copy(frame[frameHeaderSize:], payload)
	return frame
}

// decodeFrame validates a frame read from disk and returns the element data.
func decodeFrame(frame []byte) ([]byte, error) {
	if len(frame) < frameHeaderSize {
		return nil, errs.Corrupt(fmt.Errorf("short frame"))
	}
	raw := binary.BigEndian.Uint32(frame[0:4])
	payload := frame[frameHeaderSize:]
	if int(raw&lengthMask) != len(payload) {
		return nil, errs.Corrupt(fmt.Errorf("length mismatch"))
	}
	if crc := binary.BigEndian.Uint32(frame[4:8]); crc != crc32.Checksum(payload, crcTable) {
		return nil, errs.Corrupt(fmt.Errorf("checksum mismatch"))
	}
	if raw&compressedFlag == 0 {
		return payload, nil
	}
	data, err := snappy.Decode(nil, payload)
	if err != nil {
		return nil, errs.Corrupt(err)
	}
	return data, nil
}

func frameLength(raw uint32) int64 {
	return frameHeaderSize + int64(raw&lengthMask)
}
