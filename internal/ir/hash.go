package ir

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for SHA-256 content addressing.
// The version suffix leaves room for algorithm migration.
const (
	DomainDefinition = "metricc/definition/v1"
	DomainRequest    = "metricc/request/v1"
)

// Hasher names the content hash embedded in generated identifiers.
// Hash must be a pure function of its three inputs.
type Hasher interface {
	Name() string
	Hash(expression, title, format string) string
}

// MD5Hasher hashes "expression#title#format" with MD5. It is the default
// because identifiers already issued by existing clients use it.
type MD5Hasher struct{}

// Name implements Hasher.
func (MD5Hasher) Name() string { return "md5" }

// Hash implements Hasher.
func (MD5Hasher) Hash(expression, title, format string) string {
	sum := md5.Sum([]byte(expression + "#" + title + "#" + format))
	return hex.EncodeToString(sum[:])
}

// SHA256Hasher hashes the same triple with SHA-256 and domain separation.
// Fields are NUL separated so no triple can collide with another by
// shifting a '#' between fields.
type SHA256Hasher struct{}

// Name implements Hasher.
func (SHA256Hasher) Name() string { return "sha256" }

// Hash implements Hasher.
func (SHA256Hasher) Hash(expression, title, format string) string {
	data := make([]byte, 0, len(expression)+len(title)+len(format)+2)
	data = append(data, expression...)
	data = append(data, 0x00)
	data = append(data, title...)
	data = append(data, 0x00)
	data = append(data, format...)
	return hashWithDomain(DomainDefinition, data)
}

// HasherByName returns the hasher registered under name.
func HasherByName(name string) (Hasher, error) {
	switch name {
	case "", "md5":
		return MD5Hasher{}, nil
	case "sha256":
		return SHA256Hasher{}, nil
	}
	return nil, fmt.Errorf("unknown hash %q: must be md5 or sha256", name)
}

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The NUL separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Digest computes the content-addressed digest of v under the request
// domain. v is serialized with MarshalCanonical.
func Digest(v any) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("Digest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRequest, canonical), nil
}

