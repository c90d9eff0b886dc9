// package signature implements OAuth 1.0a request signing for the Discogs API.
//
// Discogs signs requests with HMAC-SHA1 over a canonical base string built
// from the HTTP method, the request URL, and the sorted request parameters.
// All three parts use strict RFC 3986 percent-encoding, which also escapes
// the sub-delims ! ' ( ) * that looser encoders leave alone.
//
// The package is pure: no I/O, no clock, no randomness besides [Nonce].
package signature

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/url"
	"sort"
	"strings"

	"github.com/google/uuid"
)

const upperhex = "0123456789ABCDEF"

// PercentEncode escapes s per RFC 3986, leaving only unreserved characters
// (A-Z a-z 0-9 - _ . ~) literal. Hex digits are uppercase.
func PercentEncode(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&0x0F])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '-' || c == '_' || c == '.' || c == '~':
		return true
	}
	return false
}

// BaseString builds the canonical signature base string
// METHOD&encode(url)&encode(sortedParams).
//
// Parameters are encoded first, then sorted by encoded key (and encoded value
// for repeated keys), then joined as k=v pairs with &.
func BaseString(method, rawURL string, params url.Values) string {
	type pair struct {
		k, v string
	}

	pairs := make([]pair, 0, len(params))
	for k, vs := range params {
		ek := PercentEncode(k)
		for _, v := range vs {
			pairs = append(pairs, pair{k: ek, v: PercentEncode(v)})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].k != pairs[j].k {
			return pairs[i].k < pairs[j].k
		}
		return pairs[i].v < pairs[j].v
	})

	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p.k + "=" + p.v
	}

	return strings.ToUpper(method) + "&" + PercentEncode(rawURL) + "&" + PercentEncode(strings.Join(parts, "&"))
}

// Sign produces the base64 HMAC-SHA1 signature for a request.
//
// The signing key is encode(consumerSecret)&encode(tokenSecret); during the
// request-token leg the token secret is empty and the trailing & remains.
func Sign(method, rawURL string, params url.Values, consumerSecret, tokenSecret string) string {
	key := PercentEncode(consumerSecret) + "&" + PercentEncode(tokenSecret)

	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(BaseString(method, rawURL, params)))

	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Nonce returns a fresh request nonce, unique per call.
func Nonce() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// AuthorizationHeader assembles an `OAuth k="v", ...` header value from the
// oauth_* protocol parameters, percent-encoding keys and values. Keys are
// emitted in sorted order so the header is deterministic.
func AuthorizationHeader(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, PercentEncode(k)+`="`+PercentEncode(params.Get(k))+`"`)
	}

	return "OAuth " + strings.Join(parts, ", ")
}
