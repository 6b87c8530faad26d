// Package auth verifies bearer tokens presented when opening staff streams.
// Supports modes: dev (unverified restaurant:role tokens), hmac (HS256), and
// jwks (RS256 with keys fetched from a JWKS URL).
package auth

import (
	"crypto"
	"crypto/hmac"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Config selects the verification mode and claim names.
type Config struct {
	Mode            string `envconfig:"AUTH_MODE" default:"dev"`
	HMACSecret      string `envconfig:"AUTH_HMAC_SECRET"`
	JWKSURL         string `envconfig:"AUTH_JWKS_URL"`
	RestaurantClaim string `envconfig:"AUTH_RESTAURANT_CLAIM" default:"restaurant"`
	RoleClaim       string `envconfig:"AUTH_ROLE_CLAIM" default:"role"`
	StaffClaim      string `envconfig:"AUTH_STAFF_CLAIM" default:"sub"`
}

// Principal is the identity carried by a verified staff token.
type Principal struct {
	RestaurantID string
	Role         string
	StaffID      string
}

// Verifier validates tokens and extracts the principal.
type Verifier struct {
	cfg  Config
	http *http.Client

	mu        sync.RWMutex
	keys      jwks
	lastFetch time.Time
	cacheTTL  time.Duration
}

type jwks struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
	Alg string `json:"alg"`
}

func NewVerifier(cfg Config) *Verifier {
	if cfg.Mode == "" {
		cfg.Mode = "dev"
	}
	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	return &Verifier{
		cfg:      cfg,
		http:     &http.Client{Timeout: 5 * time.Second},
		cacheTTL: 10 * time.Minute,
	}
}

// Verify checks token and returns its principal.
func (v *Verifier) Verify(token string) (Principal, error) {
	if v.cfg.Mode == "dev" {
		// token format: restaurantID:role[:staffID]
		parts := strings.Split(token, ":")
		if len(parts) < 2 || parts[0] == "" {
			return Principal{}, errors.New("invalid dev token; expected restaurant:role")
		}
		p := Principal{RestaurantID: parts[0], Role: parts[1]}
		if len(parts) > 2 {
			p.StaffID = parts[2]
		}
		return p, nil
	}

	segs := strings.Split(token, ".")
	if len(segs) != 3 {
		return Principal{}, errors.New("invalid JWT")
	}
	headerJSON, err := b64urlDecode(segs[0])
	if err != nil {
		return Principal{}, err
	}
	payloadJSON, err := b64urlDecode(segs[1])
	if err != nil {
		return Principal{}, err
	}
	sig, err := b64urlDecode(segs[2])
	if err != nil {
		return Principal{}, err
	}
	var hdr map[string]any
	if err := json.Unmarshal(headerJSON, &hdr); err != nil {
		return Principal{}, err
	}
	var claims map[string]any
	if err := json.Unmarshal(payloadJSON, &claims); err != nil {
		return Principal{}, err
	}
	alg, _ := hdr["alg"].(string)
	kid, _ := hdr["kid"].(string)
	signingInput := []byte(segs[0] + "." + segs[1])

	switch v.cfg.Mode {
	case "hmac":
		if alg != "HS256" {
			return Principal{}, errors.New("unsupported alg for hmac mode")
		}
		mac := hmac.New(sha256.New, []byte(v.cfg.HMACSecret))
		mac.Write(signingInput)
		if !hmac.Equal(mac.Sum(nil), sig) {
			return Principal{}, errors.New("bad signature")
		}
	case "jwks":
		if alg != "RS256" {
			return Principal{}, errors.New("unsupported alg for jwks mode")
		}
		pub, err := v.rsaPublicKey(kid)
		if err != nil {
			return Principal{}, err
		}
		h := sha256.Sum256(signingInput)
		if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, h[:], sig); err != nil {
			return Principal{}, errors.New("bad signature")
		}
	default:
		return Principal{}, errors.New("unsupported auth mode: " + v.cfg.Mode)
	}

	if exp, ok := claims["exp"].(float64); ok && time.Now().Unix() >= int64(exp) {
		return Principal{}, errors.New("token expired")
	}
	restaurant, _ := claims[v.cfg.RestaurantClaim].(string)
	role, _ := claims[v.cfg.RoleClaim].(string)
	staff, _ := claims[v.cfg.StaffClaim].(string)
	if restaurant == "" {
		return Principal{}, errors.New("missing restaurant claim")
	}
	if role == "" {
		role = "staff"
	}
	return Principal{RestaurantID: restaurant, Role: strings.ToLower(role), StaffID: staff}, nil
}

func b64urlDecode(s string) ([]byte, error) { return base64.RawURLEncoding.DecodeString(s) }

func (v *Verifier) rsaPublicKey(kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	cached := v.keys
	stale := time.Since(v.lastFetch) > v.cacheTTL
	v.mu.RUnlock()
	if len(cached.Keys) == 0 || stale {
		if err := v.fetchJWKS(); err != nil {
			return nil, err
		}
		v.mu.RLock()
		cached = v.keys
		v.mu.RUnlock()
	}
	for _, k := range cached.Keys {
		if k.Kid != kid || !strings.EqualFold(k.Kty, "RSA") {
			continue
		}
		nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
		if err != nil {
			return nil, err
		}
		eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
		if err != nil {
			return nil, err
		}
		e := 0
		for _, b := range eBytes {
			e = e<<8 | int(b)
		}
		return &rsa.PublicKey{N: new(big.Int).SetBytes(nBytes), E: e}, nil
	}
	return nil, errors.New("kid not found in JWKS")
}

func (v *Verifier) fetchJWKS() error {
	if v.cfg.JWKSURL == "" {
		return errors.New("JWKS URL not configured")
	}
	req, err := http.NewRequest(http.MethodGet, v.cfg.JWKSURL, nil)
	if err != nil {
		return err
	}
	resp, err := v.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	var j jwks
	if err := json.NewDecoder(resp.Body).Decode(&j); err != nil {
		return err
	}
	v.mu.Lock()
	v.keys = j
	v.lastFetch = time.Now()
	v.mu.Unlock()
	return nil
}
