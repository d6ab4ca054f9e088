package ledger

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// FingerprintSize is the byte length of a content fingerprint.
const FingerprintSize = 32

// Fingerprint identifies a piece of content. The all-zero value is reserved.
type Fingerprint [FingerprintSize]byte

// digest codes whose 32-byte output can be used as a fingerprint.
var fingerprintHashCodes = map[uint64]bool{
	multihash.SHA2_256:   true,
	multihash.SHA3_256:   true,
	multihash.KECCAK_256: true,
	// blake2b-256
	multihash.BLAKE2B_MIN + 31: true,
}

// ParseFingerprint accepts 64 hex characters (optionally 0x-prefixed) or a CID
// whose multihash carries a 32-byte digest.
func ParseFingerprint(s string) (Fingerprint, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Fingerprint{}, ErrInvalidFingerprint
	}

	raw := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(raw) == hex.EncodedLen(FingerprintSize) {
		if b, err := hex.DecodeString(raw); err == nil {
			return FingerprintFromBytes(b)
		}
	}

	c, err := cid.Decode(s)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("%w: not hex or cid", ErrInvalidFingerprint)
	}
	return FingerprintFromCID(c)
}

// FingerprintFromBytes copies a 32-byte slice into a fingerprint.
func FingerprintFromBytes(b []byte) (Fingerprint, error) {
	var fp Fingerprint
	if len(b) != FingerprintSize {
		return fp, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidFingerprint, FingerprintSize, len(b))
	}
	copy(fp[:], b)
	return fp, nil
}

// FingerprintFromCID extracts the digest of a content identifier.
func FingerprintFromCID(c cid.Cid) (Fingerprint, error) {
	decoded, err := multihash.Decode(c.Hash())
	if err != nil {
		return Fingerprint{}, fmt.Errorf("%w: %v", ErrInvalidFingerprint, err)
	}
	if !fingerprintHashCodes[decoded.Code] {
		return Fingerprint{}, fmt.Errorf("%w: unsupported hash %s", ErrInvalidFingerprint, decoded.Name)
	}
	return FingerprintFromBytes(decoded.Digest)
}

// IsZero reports whether the fingerprint is the reserved unset value.
func (f Fingerprint) IsZero() bool {
	return f == Fingerprint{}
}

// String renders the fingerprint as 0x-prefixed lowercase hex.
func (f Fingerprint) String() string {
	return "0x" + hex.EncodeToString(f[:])
}

// CID renders the fingerprint as a CIDv1 raw sha2-256 identifier.
func (f Fingerprint) CID() (cid.Cid, error) {
	mh, err := multihash.Encode(f[:], multihash.SHA2_256)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, mh), nil
}

func (f Fingerprint) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *Fingerprint) UnmarshalText(text []byte) error {
	parsed, err := ParseFingerprint(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}
