// ABOUTME: Journal record framing for the file-backed quad store
// ABOUTME: LSN, op, graph and N-Quads payload followed by a CRC32 trailer

// Package journal implements a file-backed quad store: an append-only log of
// graph mutations replayed into memory on open
package journal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"time"
)

var (
	// ErrCorrupted indicates a record whose checksum does not match
	ErrCorrupted = errors.New("journal: corrupted record")

	// ErrTruncated indicates a record cut short, usually by a crash mid-write
	ErrTruncated = errors.New("journal: truncated record")

	// ErrClosed indicates an operation on a closed journal
	ErrClosed = errors.New("journal: closed")
)

// Op is the kind of mutation a record describes
type Op byte

const (
	// OpInsert appends quads to a graph
	OpInsert Op = 1

	// OpDrop removes every quad of a graph
	OpDrop Op = 2
)

func (op Op) String() string {
	switch op {
	case OpInsert:
		return "INSERT"
	case OpDrop:
		return "DROP"
	default:
		return "UNKNOWN"
	}
}

// Layout: LSN(8) + Op(1) + Reserved(3) + GraphLen(4) + PayloadLen(4) + Timestamp(8)
const headerSize = 28

// maxRecordSize bounds a single record so a damaged length field cannot
// trigger a huge allocation
const maxRecordSize = 256 << 20

// Record is one journaled mutation
type Record struct {
	LSN       uint64
	Op        Op
	Graph     string
	Payload   []byte // N-Quads for OpInsert, empty for OpDrop
	Timestamp time.Time
}

// Encode serializes the record followed by a CRC32 of everything before it
func (r *Record) Encode() []byte {
	graphLen := len(r.Graph)
	payloadLen := len(r.Payload)
	buf := make([]byte, headerSize+graphLen+payloadLen+4)

	binary.LittleEndian.PutUint64(buf[0:8], r.LSN)
	buf[8] = byte(r.Op)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(graphLen))
	binary.LittleEndian.PutUint32(buf[16:20], uint32(payloadLen))
	binary.LittleEndian.PutUint64(buf[20:28], uint64(r.Timestamp.UnixNano()))

	offset := headerSize
	offset += copy(buf[offset:], r.Graph)
	offset += copy(buf[offset:], r.Payload)

	binary.LittleEndian.PutUint32(buf[offset:], crc32.ChecksumIEEE(buf[:offset]))
	return buf
}

// Size returns the encoded size of the record
func (r *Record) Size() int {
	return headerSize + len(r.Graph) + len(r.Payload) + 4
}

func (r *Record) String() string {
	return fmt.Sprintf("journal[LSN=%d Op=%s Graph=%s PayloadLen=%d]", r.LSN, r.Op, r.Graph, len(r.Payload))
}

// readRecord reads the next record. It returns io.EOF at a clean end and
// ErrTruncated when the input ends inside a record.
func readRecord(r io.Reader) (*Record, int, error) {
	header := make([]byte, headerSize)
	n, err := io.ReadFull(r, header)
	if err == io.EOF {
		return nil, 0, io.EOF
	}
	if err != nil {
		return nil, n, ErrTruncated
	}

	graphLen := binary.LittleEndian.Uint32(header[12:16])
	payloadLen := binary.LittleEndian.Uint32(header[16:20])
	bodyLen := int64(graphLen) + int64(payloadLen) + 4
	if headerSize+bodyLen > maxRecordSize {
		return nil, n, ErrCorrupted
	}

	data := make([]byte, headerSize+int(bodyLen))
	copy(data, header)
	m, err := io.ReadFull(r, data[headerSize:])
	if err != nil {
		return nil, n + m, ErrTruncated
	}

	rec, err := decodeRecord(data)
	return rec, len(data), err
}

func decodeRecord(data []byte) (*Record, error) {
	if len(data) < headerSize+4 {
		return nil, ErrTruncated
	}
	end := len(data) - 4
	if binary.LittleEndian.Uint32(data[end:]) != crc32.ChecksumIEEE(data[:end]) {
		return nil, ErrCorrupted
	}

	graphLen := int(binary.LittleEndian.Uint32(data[12:16]))
	payloadLen := int(binary.LittleEndian.Uint32(data[16:20]))
	if headerSize+graphLen+payloadLen != end {
		return nil, ErrCorrupted
	}

	rec := &Record{
		LSN:       binary.LittleEndian.Uint64(data[0:8]),
		Op:        Op(data[8]),
		Timestamp: time.Unix(0, int64(binary.LittleEndian.Uint64(data[20:28]))),
	}
	offset := headerSize
	rec.Graph = string(data[offset : offset+graphLen])
	offset += graphLen
	if payloadLen > 0 {
		rec.Payload = append([]byte(nil), data[offset:offset+payloadLen]...)
	}
	return rec, nil
}
