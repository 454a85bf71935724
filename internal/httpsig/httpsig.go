// Package httpsig signs and verifies protocol requests with HTTP message
// signatures (RFC 9421 profile: ecdsa-p256-sha256 over method, authority,
// path and content digest).
package httpsig

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// Header names.
const (
	HeaderSignature      = "Signature"
	HeaderSignatureInput = "Signature-Input"
	HeaderContentDigest  = "Content-Digest"
)

// Algorithm is the only supported signature algorithm.
const Algorithm = "ecdsa-p256-sha256"

const label = "sig1"

// ContentDigest returns the content-digest header value for body.
func ContentDigest(body []byte) string {
	sum := sha256.Sum256(body)
	return "sha-256=:" + encode(sum[:]) + ":"
}

// componentValue returns the canonical value of a derived or header
// component, and false when the component is not supported.
func componentValue(req *http.Request, name string) (string, bool) {
	switch name {
	case "@method":
		return strings.ToUpper(req.Method), true
	case "@authority":
		host := req.Host
		if host == "" {
			host = req.URL.Host
		}
		return strings.ToLower(host), true
	case "@path":
		p := req.URL.EscapedPath()
		if p == "" {
			p = "/"
		}
		return p, true
	case "content-digest":
		return req.Header.Get(HeaderContentDigest), true
	}
	return "", false
}

// signatureBase renders the string that is signed. Unsupported components are
// left out.
func signatureBase(req *http.Request, components []string, params string) string {
	var b strings.Builder
	for _, c := range components {
		v, ok := componentValue(req, c)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "%q: %s\n", c, v)
	}
	fmt.Fprintf(&b, "\"@signature-params\": %s", params)
	return b.String()
}

// signatureParams serializes the inner list and parameters of a signature.
func signatureParams(components []string, created int64, keyID string) string {
	quoted := make([]string, len(components))
	for i, c := range components {
		quoted[i] = strconv.Quote(c)
	}
	return fmt.Sprintf("(%s);created=%d;keyid=%q;alg=%q", strings.Join(quoted, " "), created, keyID, Algorithm)
}

func encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}
