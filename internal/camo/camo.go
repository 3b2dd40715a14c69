// Package camo derives signed image-proxy URLs so upstream media hosts
// never see client IPs.
package camo

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/url"

	"github.com/ternarybob/imago/internal/common"
)

// URL maps an upstream media URL to its proxied equivalent. When the camo
// key or host is not configured the input is returned unchanged. The
// derivation is deterministic and performs no I/O:
//
//	https://{camo_host}/{hex(hmac-sha1(key, url))}/{hex(url)}
func URL(config *common.Config, u *url.URL) (*url.URL, error) {
	if config.CamoKey == "" || config.CamoHost == "" {
		return u, nil
	}

	key, err := hex.DecodeString(config.CamoKey)
	if err != nil {
		return nil, fmt.Errorf("camo key is not valid hex: %w", err)
	}

	mac := hmac.New(sha1.New, key)
	mac.Write([]byte(u.String()))
	digest := hex.EncodeToString(mac.Sum(nil))
	encoded := hex.EncodeToString([]byte(u.String()))

	proxied, err := url.Parse(fmt.Sprintf("https://%s/%s/%s", config.CamoHost, digest, encoded))
	if err != nil {
		return nil, fmt.Errorf("could not build camo URL: %w", err)
	}
	return proxied, nil
}
