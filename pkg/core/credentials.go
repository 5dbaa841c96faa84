package core

import "fmt"

// Credentials holds an API key pair. The fields are unexported so a value cannot be
// modified after NewCredentials returns it.
type Credentials struct {
	apiKey    string
	secretKey string
}

// NewCredentials creates an immutable API key pair.
func NewCredentials(apiKey, secretKey string) Credentials {
	return Credentials{apiKey: apiKey, secretKey: secretKey}
}

// APIKey returns the public key sent in the X-MBX-APIKEY header.
func (c Credentials) APIKey() string {
	return c.apiKey
}

// SecretKey returns the private key used for signing.
func (c Credentials) SecretKey() string {
	return c.secretKey
}

// IsZero reports whether either half of the pair is missing.
func (c Credentials) IsZero() bool {
	return c.apiKey == "" || c.secretKey == ""
}

// String renders the pair with the key masked and the secret omitted.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{APIKey:%s}", MaskKey(c.apiKey))
}

// GoString keeps %#v from printing the secret.
func (c Credentials) GoString() string {
	return c.String()
}

// MaskKey keeps the first and last four characters of a key.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}
