// internal/wifi/config.go
package wifi

import (
	"bytes"
	"errors"
	"fmt"
)

// Station credential limits (802.11 SSID and WPA passphrase).
const (
	MaxSSIDLength     = 32
	MaxPasswordLength = 64
)

var ErrEmptySSID = errors.New("wifi: ssid required")

// Config holds station credentials.
// Fixed arrays: always zero-padded before persistence or any driver call.
type Config struct {
	SSID     [MaxSSIDLength]byte
	Password [MaxPasswordLength]byte
}

// NewConfig builds a zero-padded Config. Over-long values are rejected, not truncated.
func NewConfig(ssid, password string) (Config, error) {
	var c Config

	if ssid == "" {
		return c, ErrEmptySSID
	}
	if len(ssid) > MaxSSIDLength {
		return c, fmt.Errorf("wifi: ssid is %d bytes, max %d", len(ssid), MaxSSIDLength)
	}
	if len(password) > MaxPasswordLength {
		return c, fmt.Errorf("wifi: password is %d bytes, max %d", len(password), MaxPasswordLength)
	}

	copy(c.SSID[:], ssid)
	copy(c.Password[:], password)
	return c, nil
}

// SSIDString returns the ssid up to the first padding byte.
func (c Config) SSIDString() string {
	return trimPad(c.SSID[:])
}

// PasswordString returns the password up to the first padding byte.
func (c Config) PasswordString() string {
	return trimPad(c.Password[:])
}

// IsZero reports whether no ssid is set.
func (c Config) IsZero() bool {
	return c.SSID[0] == 0
}

func trimPad(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}
