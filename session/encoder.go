package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

// Version 1 used one-byte field lengths; it is still read.
const (
	recordFormatV1      = 1
	recordFormatVersion = 2
	maxFieldLen         = 1<<16 - 1
)

const (
	flagAuthenticated byte = 1 << iota
	flagHasUser
	flagVerified
)

var errInvalidRecord = errors.New("invalid session record")

// record is the whitelisted persisted subset of the session.
type record struct {
	Authenticated bool
	User          *User
}

func encodeRecord(r record) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(recordFormatVersion)

	var flags byte
	if r.Authenticated {
		flags |= flagAuthenticated
	}
	if r.User != nil {
		flags |= flagHasUser
		if r.User.Verified {
			flags |= flagVerified
		}
	}
	buf.WriteByte(flags)

	if r.User == nil {
		return buf.Bytes(), nil
	}
	for _, field := range []struct {
		name  string
		value string
	}{
		{"user id", r.User.ID},
		{"phone", r.User.Phone},
		{"name", r.User.Name},
		{"account kind", r.User.AccountKind},
	} {
		if len(field.value) > maxFieldLen {
			return nil, errors.New(field.name + " too long")
		}
		var n [2]byte
		binary.BigEndian.PutUint16(n[:], uint16(len(field.value)))
		buf.Write(n[:])
		buf.WriteString(field.value)
	}
	return buf.Bytes(), nil
}

func decodeRecord(data []byte) (record, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return record{}, err
	}
	if version != recordFormatVersion && version != recordFormatV1 {
		return record{}, errInvalidRecord
	}
	flags, err := reader.ReadByte()
	if err != nil {
		return record{}, err
	}

	r := record{Authenticated: flags&flagAuthenticated != 0}
	if flags&flagHasUser == 0 {
		if reader.Len() != 0 {
			return record{}, errInvalidRecord
		}
		return r, nil
	}

	fields := make([]string, 4)
	for i := range fields {
		n, err := readFieldLen(reader, version)
		if err != nil {
			return record{}, err
		}
		b := make([]byte, n)
		if _, err := io.ReadFull(reader, b); err != nil {
			return record{}, err
		}
		fields[i] = string(b)
	}
	if reader.Len() != 0 {
		return record{}, errInvalidRecord
	}

	r.User = &User{
		ID:          fields[0],
		Phone:       fields[1],
		Name:        fields[2],
		AccountKind: fields[3],
		Verified:    flags&flagVerified != 0,
	}
	return r, nil
}

func readFieldLen(r *bytes.Reader, version byte) (int, error) {
	if version == recordFormatV1 {
		n, err := r.ReadByte()
		return int(n), err
	}
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return 0, err
	}
	if int(n) > r.Len() {
		return 0, errInvalidRecord
	}
	return int(n), nil
}
