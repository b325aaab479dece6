package simulator

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"
)

var errEmptyHex = errors.New("empty hex string")

const zeroHash = "0x0000000000000000000000000000000000000000000000000000000000000000"

//nolint:golint,gochecknoglobals
var (
	weiPerEther    = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	hashPattern    = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)
)

func encodeUint(v uint64) string {
	return "0x" + strconv.FormatUint(v, 16)
}

func encodeBig(v *big.Int) string {
	if v.Sign() == 0 {
		return "0x0"
	}
	return "0x" + v.Text(16)
}

func decodeBig(s string) (*big.Int, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return nil, fmt.Errorf("hex string %q without 0x prefix", s)
	}
	digits := s[2:]
	if digits == "" {
		return nil, errEmptyHex
	}
	v, ok := new(big.Int).SetString(digits, 16)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid hex quantity %q", s)
	}
	return v, nil
}

func decodeUint(s string) (uint64, error) {
	v, err := decodeBig(s)
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("hex quantity %q overflows uint64", s)
	}
	return v.Uint64(), nil
}

func decodeData(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	if !strings.HasPrefix(s, "0x") {
		return nil, fmt.Errorf("hex data %q without 0x prefix", s)
	}
	return hex.DecodeString(s[2:])
}

func normalizeAddress(s string) (string, error) {
	if !addressPattern.MatchString(s) {
		return "", fmt.Errorf("invalid address %q", s)
	}
	return strings.ToLower(s), nil
}

func normalizeHash(s string) (string, error) {
	if !hashPattern.MatchString(s) {
		return "", fmt.Errorf("invalid hash %q", s)
	}
	return strings.ToLower(s), nil
}

func uint64Bytes(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}
