package creds

import (
	"crypto/md5"
	"encoding/hex"

	"github.com/google/uuid"
)

// PinHash is the salted MD5 proof carried inside a SOAP security token. The
// legacy gateway protocol dictates MD5 here; it is not used for anything
// beyond proving possession of the PIN.
type PinHash struct {
	Type      string `json:"type" xml:"Type"`
	Seed      string `json:"seed" xml:"Seed"`
	HashValue string `json:"hashValue" xml:"HashValue"`
}

// SecurityToken authenticates a SOAP call.
type SecurityToken struct {
	SourceKey string  `json:"sourceKey" xml:"SourceKey"`
	ClientIP  string  `json:"clientIp" xml:"ClientIP"`
	PinHash   PinHash `json:"pinHash" xml:"PinHash"`
}

// BuildSecurityToken assembles a token with a fresh random seed:
// hashValue = hex(md5(sourceKey + seed + pin)).
func BuildSecurityToken(sourceKey, pin, clientIP string) SecurityToken {
	seed := uuid.NewString()
	digest := md5.Sum([]byte(sourceKey + seed + pin))
	return SecurityToken{
		SourceKey: sourceKey,
		ClientIP:  clientIP,
		PinHash: PinHash{
			Type:      "md5",
			Seed:      seed,
			HashValue: hex.EncodeToString(digest[:]),
		},
	}
}
