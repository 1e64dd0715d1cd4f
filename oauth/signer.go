package oauth

import (
	"crypto"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"hash"
)

// Signature method names.
const (
	MethodPlaintext  = "PLAINTEXT"
	MethodHMACSHA1   = "HMAC-SHA1"
	MethodHMACSHA256 = "HMAC-SHA256"
	MethodRSASHA1    = "RSA-SHA1"
)

// Encoding selects how digest bytes are rendered.
type Encoding string

const (
	EncodingBase64 Encoding = "base64"
	EncodingHex    Encoding = "hex"
)

func (e Encoding) encode(b []byte) string {
	if e == EncodingHex {
		return hex.EncodeToString(b)
	}
	return base64.StdEncoding.EncodeToString(b)
}

// A Signer signs messages to create signed OAuth1 Requests.
type Signer interface {
	// Name returns the name of the signing method.
	Name() string
	// Sign signs the message using the given signing key.
	Sign(key string, message string) (string, error)
}

// PlaintextSigner returns the signing key itself as the signature.
type PlaintextSigner struct{}

// Name returns the PLAINTEXT method.
func (PlaintextSigner) Name() string { return MethodPlaintext }

// Sign returns key unchanged.
func (PlaintextSigner) Sign(key, _ string) (string, error) { return key, nil }

// HMACSigner signs messages with an HMAC digest keyed by the signing key.
type HMACSigner struct {
	Method   string
	Hash     func() hash.Hash
	Encoding Encoding
}

// NewHMACSHA1Signer returns an HMAC-SHA1 signer with base64 output.
func NewHMACSHA1Signer() *HMACSigner {
	return &HMACSigner{Method: MethodHMACSHA1, Hash: sha1.New, Encoding: EncodingBase64}
}

// NewHMACSHA256Signer returns an HMAC-SHA256 signer with base64 output.
func NewHMACSHA256Signer() *HMACSigner {
	return &HMACSigner{Method: MethodHMACSHA256, Hash: sha256.New, Encoding: EncodingBase64}
}

// Name returns the configured method name.
func (s *HMACSigner) Name() string {
	return s.Method
}

// Sign calculates the HMAC digest of message.
func (s *HMACSigner) Sign(key, message string) (string, error) {
	return hmacSign(key, message, s.Hash, s.Encoding), nil
}

func hmacSign(key, message string, algo func() hash.Hash, enc Encoding) string {
	mac := hmac.New(algo, []byte(key))
	mac.Write([]byte(message))
	return enc.encode(mac.Sum(nil))
}

// FastCryptoHash returns the HMAC-SHA1 of data keyed with key.
func FastCryptoHash(data, key string, enc Encoding) string {
	return hmacSign(key, data, sha1.New, enc)
}

// RSASigner RSA PKCS1-v1_5 signs SHA1 digests of messages using the given
// RSA private key.
type RSASigner struct {
	PrivateKey *rsa.PrivateKey
}

// Name returns the RSA-SHA1 method.
func (s *RSASigner) Name() string {
	return MethodRSASHA1
}

// Sign uses RSA PKCS1-v1_5 to sign a SHA1 digest of the given message. The
// signing key is not used with this scheme.
func (s *RSASigner) Sign(_, message string) (string, error) {
	digest := sha1.Sum([]byte(message))
	signature, err := rsa.SignPKCS1v15(rand.Reader, s.PrivateKey, crypto.SHA1, digest[:])
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(signature), nil
}

// SignerFor returns the built-in signer for a method name, or nil.
func SignerFor(method string) Signer {
	switch method {
	case "", MethodPlaintext:
		return PlaintextSigner{}
	case MethodHMACSHA1:
		return NewHMACSHA1Signer()
	case MethodHMACSHA256:
		return NewHMACSHA256Signer()
	}
	return nil
}
