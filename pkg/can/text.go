package can

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// String encodes the frame in SLCAN text form, as understood by USBtin and
// most serial CAN adapters:
//
//	t<iii><l><dd...>       standard data frame
//	T<iiiiiiii><l><dd...>  extended data frame
//	r<iii><l>              standard remote request
//	R<iiiiiiii><l>         extended remote request
func (f *Frame) String() string {
	var b strings.Builder
	b.Grow(1 + 8 + 1 + 2*len(f.Data))

	switch {
	case f.RTR && f.Extended:
		b.WriteByte('R')
	case f.RTR:
		b.WriteByte('r')
	case f.Extended:
		b.WriteByte('T')
	default:
		b.WriteByte('t')
	}

	if f.Extended {
		fmt.Fprintf(&b, "%08x", f.ID)
	} else {
		fmt.Fprintf(&b, "%03x", f.ID)
	}
	b.WriteString(strconv.Itoa(len(f.Data)))
	for _, d := range f.Data {
		fmt.Fprintf(&b, "%02x", d)
	}
	return b.String()
}

// ParseFrame decodes the SLCAN text form produced by String. Hex digits may be
// upper or lower case and surrounding whitespace is ignored. The length digit
// of a remote request is accepted but no payload is kept.
func ParseFrame(s string) (*Frame, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrMalformed)
	}

	f := &Frame{}
	idLen := 3
	switch s[0] {
	case 't':
	case 'T':
		f.Extended, idLen = true, 8
	case 'r':
		f.RTR = true
	case 'R':
		f.Extended, f.RTR, idLen = true, true, 8
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformed, s[0])
	}

	rest := s[1:]
	if len(rest) < idLen+1 {
		return nil, fmt.Errorf("%w: %q too short", ErrMalformed, s)
	}

	id, err := strconv.ParseUint(rest[:idLen], 16, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: identifier %q", ErrMalformed, rest[:idLen])
	}
	f.ID = uint32(id)

	dlc := int(rest[idLen] - '0')
	if dlc < 0 || dlc > MaxDataLength {
		return nil, fmt.Errorf("%w: length %q", ErrMalformed, rest[idLen])
	}

	payload := rest[idLen+1:]
	if f.RTR {
		if payload != "" {
			return nil, fmt.Errorf("%w: trailing data on remote request", ErrMalformed)
		}
	} else {
		if len(payload) != 2*dlc {
			return nil, fmt.Errorf("%w: want %d data bytes, got %q", ErrMalformed, dlc, payload)
		}
		if dlc > 0 {
			f.Data, err = hex.DecodeString(payload)
			if err != nil {
				return nil, fmt.Errorf("%w: data %q", ErrMalformed, payload)
			}
		}
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// FromFields builds a frame from separate editor fields: a hex identifier and
// up to eight hex data bytes. Unparsable fields read as zero, identifiers above
// the standard range force the extended flag, and remote requests drop data.
func FromFields(idHex string, data []string, extended, rtr bool) (*Frame, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(idHex), 16, 32)
	if err != nil {
		id = 0
	}
	if id > MaxStandardID {
		extended = true
	}

	if len(data) > MaxDataLength {
		return nil, fmt.Errorf("%w: got %d", ErrDataLength, len(data))
	}

	f := &Frame{ID: uint32(id), Extended: extended, RTR: rtr}
	if !rtr && len(data) > 0 {
		f.Data = make([]byte, len(data))
		for i, field := range data {
			v, err := strconv.ParseUint(strings.TrimSpace(field), 16, 8)
			if err != nil {
				v = 0
			}
			f.Data[i] = byte(v)
		}
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}
