package ledger

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"time"
)

// RecordSize is the fixed persisted size of an EventRecord:
// discriminator, creator, name, description, supply, claimed, active, created_at.
const RecordSize = 8 + MaxIdentityLen + (4 + MaxNameLen) + (4 + MaxDescriptionLen) + 8 + 8 + 1 + 8

const (
	offCreator     = 8
	offName        = offCreator + MaxIdentityLen
	offDescription = offName + 4 + MaxNameLen
	offSupply      = offDescription + 4 + MaxDescriptionLen
	offClaimed     = offSupply + 8
	offActive      = offClaimed + 8
	offCreatedAt   = offActive + 1
)

// Discriminator tags persisted event records.
var Discriminator = func() [8]byte {
	sum := sha256.Sum256([]byte("account:Event"))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}()

// MarshalBinary encodes the record into exactly RecordSize bytes.
func (r EventRecord) MarshalBinary() ([]byte, error) {
	if len(r.Creator) > MaxIdentityLen {
		return nil, ErrInvalidIdentity
	}
	if len(r.Name) > MaxNameLen {
		return nil, &fieldError{field: "name", size: len(r.Name), max: MaxNameLen}
	}
	if len(r.Description) > MaxDescriptionLen {
		return nil, &fieldError{field: "description", size: len(r.Description), max: MaxDescriptionLen}
	}

	buf := make([]byte, RecordSize)
	le := binary.LittleEndian
	copy(buf[:8], Discriminator[:])
	copy(buf[offCreator:offName], r.Creator)
	le.PutUint32(buf[offName:], uint32(len(r.Name)))
	copy(buf[offName+4:], r.Name)
	le.PutUint32(buf[offDescription:], uint32(len(r.Description)))
	copy(buf[offDescription+4:], r.Description)
	le.PutUint64(buf[offSupply:], r.TokenSupply)
	le.PutUint64(buf[offClaimed:], r.TokensClaimed)
	if r.IsActive {
		buf[offActive] = 1
	}
	le.PutUint64(buf[offCreatedAt:], uint64(r.CreatedAt.Unix()))
	return buf, nil
}

// UnmarshalBinary decodes a RecordSize buffer, rejecting anything that does
// not describe a valid record.
func (r *EventRecord) UnmarshalBinary(data []byte) error {
	if len(data) != RecordSize {
		return fmt.Errorf("ledger: record is %d bytes, want %d", len(data), RecordSize)
	}
	if !bytes.Equal(data[:8], Discriminator[:]) {
		return fmt.Errorf("ledger: record discriminator mismatch")
	}
	le := binary.LittleEndian

	creator := bytes.TrimRight(data[offCreator:offName], "\x00")
	nameLen := le.Uint32(data[offName:])
	if nameLen > MaxNameLen {
		return &fieldError{field: "name", size: int(nameLen), max: MaxNameLen}
	}
	descLen := le.Uint32(data[offDescription:])
	if descLen > MaxDescriptionLen {
		return &fieldError{field: "description", size: int(descLen), max: MaxDescriptionLen}
	}

	var active bool
	switch data[offActive] {
	case 0:
	case 1:
		active = true
	default:
		return fmt.Errorf("ledger: invalid active flag %d", data[offActive])
	}

	out := EventRecord{
		Creator:       Identity(creator),
		Name:          Name(data[offName+4 : offName+4+int(nameLen)]),
		Description:   Description(data[offDescription+4 : offDescription+4+int(descLen)]),
		TokenSupply:   le.Uint64(data[offSupply:]),
		TokensClaimed: le.Uint64(data[offClaimed:]),
		IsActive:      active,
		CreatedAt:     time.Unix(int64(le.Uint64(data[offCreatedAt:])), 0).UTC(),
	}
	if out.TokensClaimed > out.TokenSupply {
		return fmt.Errorf("ledger: claimed %d exceeds supply %d", out.TokensClaimed, out.TokenSupply)
	}
	*r = out
	return nil
}
