package token

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const (
	pairFormatVersionCurrent = 1
	maxTokenLen              = 1<<16 - 1
)

var errInvalidPairRecord = errors.New("invalid token pair record")

// encodePair writes version(1) accessLen(2) access refreshLen(2) refresh.
func encodePair(p Pair) ([]byte, error) {
	if len(p.AccessToken) > maxTokenLen || len(p.RefreshToken) > maxTokenLen {
		return nil, errors.New("token too long")
	}

	var buf bytes.Buffer
	buf.Grow(5 + len(p.AccessToken) + len(p.RefreshToken))
	buf.WriteByte(pairFormatVersionCurrent)
	writeString(&buf, p.AccessToken)
	writeString(&buf, p.RefreshToken)
	return buf.Bytes(), nil
}

func decodePair(data []byte) (Pair, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return Pair{}, err
	}
	if version != pairFormatVersionCurrent {
		return Pair{}, errInvalidPairRecord
	}

	access, err := readString(reader)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := readString(reader)
	if err != nil {
		return Pair{}, err
	}
	if reader.Len() != 0 {
		return Pair{}, errInvalidPairRecord
	}
	return Pair{AccessToken: access, RefreshToken: refresh}, nil
}

func writeString(buf *bytes.Buffer, s string) {
	var n [2]byte
	binary.BigEndian.PutUint16(n[:], uint16(len(s)))
	buf.Write(n[:])
	buf.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
