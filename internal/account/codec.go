// internal/account/codec.go
package account

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"

	"github.com/rovshanmuradov/launchpad/internal/launchpad"
)

// Kind names a record layout. The name seeds the 8-byte discriminator
// written ahead of every encoded record.
type Kind string

const (
	KindGlobalConfig   Kind = "GlobalConfig"
	KindMarket         Kind = "BondingCurve"
	KindVesting        Kind = "VestingAccount"
	KindCreatorProfile Kind = "CreatorProfile"
)

// Kinds lists every record layout.
var Kinds = []Kind{KindGlobalConfig, KindMarket, KindVesting, KindCreatorProfile}

const DiscriminatorSize = 8

var (
	ErrShortData             = errors.New("account data shorter than discriminator")
	ErrDiscriminatorMismatch = errors.New("account discriminator mismatch")
	ErrUnknownKind           = errors.New("unknown account kind")
)

// Discriminator is the first 8 bytes of sha256("account:<Kind>").
func Discriminator(kind Kind) [DiscriminatorSize]byte {
	sum := sha256.Sum256([]byte("account:" + string(kind)))
	var d [DiscriminatorSize]byte
	copy(d[:], sum[:DiscriminatorSize])
	return d
}

// KindOf identifies the layout of encoded account data.
func KindOf(data []byte) (Kind, error) {
	if len(data) < DiscriminatorSize {
		return "", ErrShortData
	}
	for _, k := range Kinds {
		d := Discriminator(k)
		if bytes.Equal(data[:DiscriminatorSize], d[:]) {
			return k, nil
		}
	}
	return "", fmt.Errorf("discriminator %x: %w", data[:DiscriminatorSize], ErrUnknownKind)
}

func encode(kind Kind, v any) ([]byte, error) {
	var buf bytes.Buffer
	d := Discriminator(kind)
	buf.Write(d[:])
	if err := bin.NewBorshEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("encode %s: %w", kind, err)
	}
	return buf.Bytes(), nil
}

func decode(kind Kind, data []byte, v any) error {
	if len(data) < DiscriminatorSize {
		return fmt.Errorf("decode %s: %w", kind, ErrShortData)
	}
	d := Discriminator(kind)
	if !bytes.Equal(data[:DiscriminatorSize], d[:]) {
		return fmt.Errorf("decode %s: %w", kind, ErrDiscriminatorMismatch)
	}
	if err := bin.NewBorshDecoder(data[DiscriminatorSize:]).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", kind, err)
	}
	return nil
}

func EncodeConfig(c *launchpad.GlobalConfig) ([]byte, error) { return encode(KindGlobalConfig, c) }

func DecodeConfig(data []byte) (*launchpad.GlobalConfig, error) {
	var c launchpad.GlobalConfig
	if err := decode(KindGlobalConfig, data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func EncodeMarket(m *launchpad.Market) ([]byte, error) { return encode(KindMarket, m) }

func DecodeMarket(data []byte) (*launchpad.Market, error) {
	var m launchpad.Market
	if err := decode(KindMarket, data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func EncodeVesting(v *launchpad.VestingSchedule) ([]byte, error) { return encode(KindVesting, v) }

func DecodeVesting(data []byte) (*launchpad.VestingSchedule, error) {
	var v launchpad.VestingSchedule
	if err := decode(KindVesting, data, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func EncodeProfile(p *launchpad.CreatorProfile) ([]byte, error) { return encode(KindCreatorProfile, p) }

func DecodeProfile(data []byte) (*launchpad.CreatorProfile, error) {
	var p launchpad.CreatorProfile
	if err := decode(KindCreatorProfile, data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
