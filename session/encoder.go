package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
)

const (
	recordFormatVersionCurrent = 2
	recordFormatVersionV1      = 1
)

// ErrInvalidRecord is returned by Decode for unknown format versions or
// truncated buffers. Vault implementations treat it as "no session".
var ErrInvalidRecord = errors.New("invalid session record")

func writeString8(buf *bytes.Buffer, field, s string) error {
	if len(s) > math.MaxUint8 {
		return errors.New(field + " too long")
	}
	buf.WriteByte(byte(len(s)))
	buf.WriteString(s)
	return nil
}

func writeString16(buf *bytes.Buffer, field, s string) error {
	if len(s) > math.MaxUint16 {
		return errors.New(field + " too long")
	}
	var l [2]byte
	binary.BigEndian.PutUint16(l[:], uint16(len(s)))
	buf.Write(l[:])
	buf.WriteString(s)
	return nil
}

func readString8(r *bytes.Reader) (string, error) {
	n, err := r.ReadByte()
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func readString16(r *bytes.Reader) (string, error) {
	var l [2]byte
	if _, err := io.ReadFull(r, l[:]); err != nil {
		return "", err
	}
	b := make([]byte, binary.BigEndian.Uint16(l[:]))
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

// Encode serializes a session record in the current binary format:
// a version byte, length-prefixed strings, big-endian timestamps.
func Encode(s *Session) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(recordFormatVersionCurrent)

	if err := writeString8(&buf, "sessionID", s.SessionID); err != nil {
		return nil, err
	}
	if err := writeString8(&buf, "accountID", s.AccountID); err != nil {
		return nil, err
	}
	if err := writeString8(&buf, "address", s.ExternalAddress); err != nil {
		return nil, err
	}
	if err := writeString8(&buf, "role", string(s.Role)); err != nil {
		return nil, err
	}
	if err := writeString16(&buf, "token", s.Token); err != nil {
		return nil, err
	}
	if err := writeString8(&buf, "deviceID", s.DeviceID); err != nil {
		return nil, err
	}

	if s.DeviceAuthorized {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}

	for _, ts := range []int64{s.CreatedAt, s.CachedAt, s.ExpiresAt, s.LastRefresh} {
		if err := binary.Write(&buf, binary.BigEndian, ts); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// Decode parses a binary session record. It accepts the current format
// and the v1 layout, which predates device fields and LastRefresh.
func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, ErrInvalidRecord
	}
	if version != recordFormatVersionCurrent && version != recordFormatVersionV1 {
		return nil, ErrInvalidRecord
	}

	s := &Session{}

	if s.SessionID, err = readString8(reader); err != nil {
		return nil, ErrInvalidRecord
	}
	if s.AccountID, err = readString8(reader); err != nil {
		return nil, ErrInvalidRecord
	}
	if s.ExternalAddress, err = readString8(reader); err != nil {
		return nil, ErrInvalidRecord
	}

	roleStr, err := readString8(reader)
	if err != nil {
		return nil, ErrInvalidRecord
	}
	role, ok := ParseRole(roleStr)
	if !ok {
		return nil, ErrInvalidRecord
	}
	s.Role = role

	if s.Token, err = readString16(reader); err != nil {
		return nil, ErrInvalidRecord
	}

	if version == recordFormatVersionCurrent {
		if s.DeviceID, err = readString8(reader); err != nil {
			return nil, ErrInvalidRecord
		}
		authorized, err := reader.ReadByte()
		if err != nil {
			return nil, ErrInvalidRecord
		}
		s.DeviceAuthorized = authorized == 1
	}

	for _, dst := range []*int64{&s.CreatedAt, &s.CachedAt, &s.ExpiresAt} {
		if err := binary.Read(reader, binary.BigEndian, dst); err != nil {
			return nil, ErrInvalidRecord
		}
	}
	if version == recordFormatVersionCurrent {
		if err := binary.Read(reader, binary.BigEndian, &s.LastRefresh); err != nil {
			return nil, ErrInvalidRecord
		}
	}

	return s, nil
}
