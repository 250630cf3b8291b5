// token.go - Compact binary token for handing notes to another holder.
//
// Layout (protobuf wire format, no generated code):
//
//	token { 1: version varint, 2: keyset id string, 3: repeated note bytes }
//	note  { 1: denomination varint, 2: secret bytes, 3: C bytes }
//
// Y is not transmitted; the receiver recomputes it from the secret.

package ecash

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"

	"ecash/internal/group"
)

const (
	tokenVersion = 1
	tokenPrefix  = "ecashA"
)

// ErrMalformedToken is returned for tokens that do not decode.
var ErrMalformedToken = errors.New("malformed token")

// EncodeToken serializes notes issued under keysetID.
func EncodeToken(keysetID string, notes []Note) []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, tokenVersion)
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendString(b, keysetID)
	for _, n := range notes {
		var nb []byte
		nb = protowire.AppendTag(nb, 1, protowire.VarintType)
		nb = protowire.AppendVarint(nb, n.Denomination)
		nb = protowire.AppendTag(nb, 2, protowire.BytesType)
		nb = protowire.AppendBytes(nb, n.Secret)
		nb = protowire.AppendTag(nb, 3, protowire.BytesType)
		nb = protowire.AppendBytes(nb, n.C.Bytes())
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendBytes(b, nb)
	}
	return b
}

// DecodeToken parses a token, validating every point against g.
func DecodeToken(g group.Group, b []byte) (string, []Note, error) {
	var (
		version  uint64
		keysetID string
		notes    []Note
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return "", nil, fmt.Errorf("%w: %v", ErrMalformedToken, protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == 1 && typ == protowire.VarintType:
			version, n = protowire.ConsumeVarint(b)
		case num == 2 && typ == protowire.BytesType:
			keysetID, n = protowire.ConsumeString(b)
		case num == 3 && typ == protowire.BytesType:
			var raw []byte
			raw, n = protowire.ConsumeBytes(b)
			if n >= 0 {
				note, err := decodeNote(g, raw)
				if err != nil {
					return "", nil, err
				}
				notes = append(notes, note)
			}
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return "", nil, fmt.Errorf("%w: %v", ErrMalformedToken, protowire.ParseError(n))
		}
		b = b[n:]
	}
	if version != tokenVersion {
		return "", nil, fmt.Errorf("%w: unsupported version %d", ErrMalformedToken, version)
	}
	return keysetID, notes, nil
}

func decodeNote(g group.Group, b []byte) (Note, error) {
	var note Note
	var c []byte
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Note{}, fmt.Errorf("%w: %v", ErrMalformedToken, protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == 1 && typ == protowire.VarintType:
			note.Denomination, n = protowire.ConsumeVarint(b)
		case num == 2 && typ == protowire.BytesType:
			var s []byte
			s, n = protowire.ConsumeBytes(b)
			note.Secret = append([]byte(nil), s...)
		case num == 3 && typ == protowire.BytesType:
			c, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return Note{}, fmt.Errorf("%w: %v", ErrMalformedToken, protowire.ParseError(n))
		}
		b = b[n:]
	}
	if len(note.Secret) == 0 {
		return Note{}, fmt.Errorf("%w: note without secret", ErrMalformedToken)
	}
	point, err := g.DecodePoint(c)
	if err != nil {
		return Note{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	y, err := HashToCurve(g, note.Secret)
	if err != nil {
		return Note{}, err
	}
	note.C = point
	note.Y = y
	return note, nil
}

// FormatToken renders a token as a copy-pasteable string.
func FormatToken(keysetID string, notes []Note) string {
	return tokenPrefix + base64.RawURLEncoding.EncodeToString(EncodeToken(keysetID, notes))
}

// ParseToken reverses FormatToken.
func ParseToken(g group.Group, s string) (string, []Note, error) {
	if !strings.HasPrefix(s, tokenPrefix) {
		return "", nil, fmt.Errorf("%w: missing %q prefix", ErrMalformedToken, tokenPrefix)
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(s, tokenPrefix))
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	return DecodeToken(g, raw)
}
