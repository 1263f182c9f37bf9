package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const sessionFormatVersionCurrent = 1

var errFieldTooLong = errors.New("session field too long")

// Encode serialises s. SessionID is not written; it is the cache key.
//
//	layout: version(1) | len(1) userID | len(1) email | createdAt(8, big endian)
func Encode(s *Session) ([]byte, error) {
	if s == nil {
		return nil, errors.New("nil session")
	}
	if len(s.UserID) > 255 || len(s.Email) > 255 {
		return nil, errFieldTooLong
	}

	var buf bytes.Buffer
	buf.Grow(11 + len(s.UserID) + len(s.Email))

	buf.WriteByte(sessionFormatVersionCurrent)
	buf.WriteByte(byte(len(s.UserID)))
	buf.WriteString(s.UserID)
	buf.WriteByte(byte(len(s.Email)))
	buf.WriteString(s.Email)

	if err := binary.Write(&buf, binary.BigEndian, s.CreatedAt); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses a blob written by Encode.
func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != sessionFormatVersionCurrent {
		return nil, errors.New("invalid session version")
	}

	s := &Session{}
	if s.UserID, err = readShortString(reader); err != nil {
		return nil, err
	}
	if s.Email, err = readShortString(reader); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &s.CreatedAt); err != nil {
		return nil, err
	}
	if reader.Len() != 0 {
		return nil, errors.New("trailing session bytes")
	}
	return s, nil
}

func readShortString(r *bytes.Reader) (string, error) {
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
