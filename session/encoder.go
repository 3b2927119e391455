package session

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

const (
	recordFormatVersionCurrent = 1

	maxFieldLen = 255
)

// ErrCorrupt is returned by [Decode] for values that are not a valid record.
var ErrCorrupt = errors.New("session record corrupt")

// legacyRecord is the JSON shape written by the previous deployment.
type legacyRecord struct {
	UserID   *int64 `json:"userId"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Encode serializes r into the compact binary record format:
//
//	version(1) | subject_id(8, big endian) | len(1) name | len(1) role
func Encode(r Record) ([]byte, error) {
	if len(r.SubjectName) > maxFieldLen {
		return nil, errors.New("subject name too long")
	}
	if len(r.Role) > maxFieldLen {
		return nil, errors.New("role too long")
	}

	var buf bytes.Buffer
	buf.Grow(1 + 8 + 2 + len(r.SubjectName) + len(r.Role))

	buf.WriteByte(recordFormatVersionCurrent)

	var id [8]byte
	binary.BigEndian.PutUint64(id[:], uint64(r.SubjectID))
	buf.Write(id[:])

	buf.WriteByte(byte(len(r.SubjectName)))
	buf.WriteString(r.SubjectName)

	buf.WriteByte(byte(len(r.Role)))
	buf.WriteString(r.Role)

	return buf.Bytes(), nil
}

// Decode parses a value produced by [Encode]. Values starting with '{' are
// read as legacy JSON records. Any malformed input yields an error wrapping
// [ErrCorrupt].
func Decode(data []byte) (Record, error) {
	if len(data) == 0 {
		return Record{}, fmt.Errorf("%w: empty value", ErrCorrupt)
	}
	if data[0] == '{' {
		return decodeLegacy(data)
	}

	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if version != recordFormatVersionCurrent {
		return Record{}, fmt.Errorf("%w: unknown version %d", ErrCorrupt, version)
	}

	var id uint64
	if err := binary.Read(reader, binary.BigEndian, &id); err != nil {
		return Record{}, fmt.Errorf("%w: subject id: %v", ErrCorrupt, err)
	}

	name, err := readField(reader)
	if err != nil {
		return Record{}, fmt.Errorf("%w: subject name: %v", ErrCorrupt, err)
	}
	role, err := readField(reader)
	if err != nil {
		return Record{}, fmt.Errorf("%w: role: %v", ErrCorrupt, err)
	}

	if reader.Len() != 0 {
		return Record{}, fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, reader.Len())
	}

	return Record{
		SubjectID:   int64(id),
		SubjectName: name,
		Role:        role,
	}, nil
}

func readField(reader *bytes.Reader) (string, error) {
	n, err := reader.ReadByte()
	if err != nil {
		return "", err
	}
	field := make([]byte, n)
	if _, err := io.ReadFull(reader, field); err != nil {
		return "", err
	}
	return string(field), nil
}

func decodeLegacy(data []byte) (Record, error) {
	var legacy legacyRecord
	if err := json.Unmarshal(data, &legacy); err != nil {
		return Record{}, fmt.Errorf("%w: legacy json: %v", ErrCorrupt, err)
	}
	if legacy.UserID == nil {
		return Record{}, fmt.Errorf("%w: legacy json: missing userId", ErrCorrupt)
	}
	return Record{
		SubjectID:   *legacy.UserID,
		SubjectName: legacy.Username,
		Role:        legacy.Role,
	}, nil
}
