package tokenstore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"golang.org/x/oauth2"
)

const (
	tokenFormatVersionCurrent = 2
	tokenFormatVersionV1      = 1
)

// Encode serialises tok as
//
//	version | u16 len access | access | u16 len refresh | refresh | u8 len type | type | i64 expiry
//
// Expiry is unix seconds, 0 when unset. Version 1 lacked the token type.
func Encode(tok *oauth2.Token) ([]byte, error) {
	if tok == nil {
		return nil, errors.New("nil token")
	}
	var buf bytes.Buffer
	buf.WriteByte(tokenFormatVersionCurrent)

	if err := writeString16(&buf, tok.AccessToken); err != nil {
		return nil, fmt.Errorf("access token: %w", err)
	}
	if err := writeString16(&buf, tok.RefreshToken); err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}

	if len(tok.TokenType) > 255 {
		return nil, errors.New("token type too long")
	}
	buf.WriteByte(byte(len(tok.TokenType)))
	buf.WriteString(tok.TokenType)

	var expiry int64
	if !tok.Expiry.IsZero() {
		expiry = tok.Expiry.Unix()
	}
	if err := binary.Write(&buf, binary.BigEndian, expiry); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses data produced by Encode, including the v1 layout.
func Decode(data []byte) (*oauth2.Token, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, ErrCorrupt
	}
	if version != tokenFormatVersionCurrent && version != tokenFormatVersionV1 {
		return nil, fmt.Errorf("%w: unknown version %d", ErrCorrupt, version)
	}

	tok := &oauth2.Token{}
	if tok.AccessToken, err = readString16(reader); err != nil {
		return nil, ErrCorrupt
	}
	if tok.RefreshToken, err = readString16(reader); err != nil {
		return nil, ErrCorrupt
	}

	if version == tokenFormatVersionCurrent {
		typeLen, err := reader.ReadByte()
		if err != nil {
			return nil, ErrCorrupt
		}
		tokenType := make([]byte, typeLen)
		if _, err := io.ReadFull(reader, tokenType); err != nil {
			return nil, ErrCorrupt
		}
		tok.TokenType = string(tokenType)
	} else {
		tok.TokenType = "Bearer"
	}

	var expiry int64
	if err := binary.Read(reader, binary.BigEndian, &expiry); err != nil {
		return nil, ErrCorrupt
	}
	if expiry != 0 {
		tok.Expiry = time.Unix(expiry, 0)
	}
	if reader.Len() != 0 {
		return nil, fmt.Errorf("%w: trailing bytes", ErrCorrupt)
	}

	return tok, nil
}

func writeString16(buf *bytes.Buffer, s string) error {
	if len(s) > math.MaxUint16 {
		return errors.New("value too long")
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(s))); err != nil {
		return err
	}
	buf.WriteString(s)
	return nil
}

func readString16(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		return "", err
	}
	return string(out), nil
}
