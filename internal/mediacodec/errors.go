package mediacodec

import "errors"

var (
	// ErrDecryption indicates the ciphertext could not be decrypted with the
	// supplied key material (bad key, truncated payload, MAC or padding failure).
	ErrDecryption = errors.New("media decryption failed")
	// ErrInvalidKeyMaterial indicates the key material is not valid base64 or
	// has the wrong length.
	ErrInvalidKeyMaterial = errors.New("invalid media key material")
)
