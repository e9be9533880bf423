// Package mediacodec decrypts WhatsApp media payloads and sniffs the format
// of the decrypted bytes.
package mediacodec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// MediaKind selects the key-expansion info string. WhatsApp derives distinct
// key material per media class from the same mediaKey.
type MediaKind string

const (
	MediaImage    MediaKind = "image"
	MediaAudio    MediaKind = "audio"
	MediaVideo    MediaKind = "video"
	MediaDocument MediaKind = "document"
)

const (
	mediaKeyLength  = 32
	expandedKeySize = 112
	macLength       = 10
)

// DecryptedAsset is the decrypted plaintext together with its sniffed format.
type DecryptedAsset struct {
	Bytes  []byte
	Format Format
}

func (k MediaKind) info() []byte {
	switch k {
	case MediaImage:
		return []byte("WhatsApp Image Keys")
	case MediaAudio:
		return []byte("WhatsApp Audio Keys")
	case MediaVideo:
		return []byte("WhatsApp Video Keys")
	case MediaDocument:
		return []byte("WhatsApp Document Keys")
	}
	return []byte("WhatsApp Document Keys")
}

// Decrypt decrypts an encrypted media blob with the base64 key material that
// accompanied it. The key material is expanded once via HKDF-SHA256 into an
// IV, a cipher key, and a MAC key; the trailing 10-byte MAC is verified
// before CBC decryption. Decrypt is deterministic and has no side effects.
func Decrypt(encrypted []byte, keyMaterialB64 string, kind MediaKind) (DecryptedAsset, error) {
	mediaKey, err := base64.StdEncoding.DecodeString(keyMaterialB64)
	if err != nil {
		return DecryptedAsset{}, fmt.Errorf("%w: %v", ErrInvalidKeyMaterial, err)
	}
	if len(mediaKey) != mediaKeyLength {
		return DecryptedAsset{}, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKeyMaterial, len(mediaKey), mediaKeyLength)
	}

	expanded := make([]byte, expandedKeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, mediaKey, nil, kind.info()), expanded); err != nil {
		return DecryptedAsset{}, fmt.Errorf("%w: key expansion: %v", ErrDecryption, err)
	}
	iv := expanded[:aes.BlockSize]
	cipherKey := expanded[16:48]
	macKey := expanded[48:80]

	if len(encrypted) < aes.BlockSize+macLength {
		return DecryptedAsset{}, fmt.Errorf("%w: payload too short (%d bytes)", ErrDecryption, len(encrypted))
	}
	ciphertext := encrypted[:len(encrypted)-macLength]
	mac := encrypted[len(encrypted)-macLength:]

	h := hmac.New(sha256.New, macKey)
	h.Write(iv)
	h.Write(ciphertext)
	if !hmac.Equal(mac, h.Sum(nil)[:macLength]) {
		return DecryptedAsset{}, fmt.Errorf("%w: mac mismatch", ErrDecryption)
	}

	if len(ciphertext)%aes.BlockSize != 0 {
		return DecryptedAsset{}, fmt.Errorf("%w: ciphertext not block aligned", ErrDecryption)
	}
	block, err := aes.NewCipher(cipherKey)
	if err != nil {
		return DecryptedAsset{}, fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ciphertext)

	plain, err = stripPadding(plain)
	if err != nil {
		return DecryptedAsset{}, err
	}

	return DecryptedAsset{Bytes: plain, Format: DetectFormat(plain)}, nil
}

// stripPadding removes and validates PKCS#7 padding.
func stripPadding(plain []byte) ([]byte, error) {
	if len(plain) == 0 {
		return nil, fmt.Errorf("%w: empty plaintext", ErrDecryption)
	}
	pad := int(plain[len(plain)-1])
	if pad == 0 || pad > aes.BlockSize || pad > len(plain) {
		return nil, fmt.Errorf("%w: bad padding", ErrDecryption)
	}
	for _, b := range plain[len(plain)-pad:] {
		if int(b) != pad {
			return nil, fmt.Errorf("%w: bad padding", ErrDecryption)
		}
	}
	return plain[:len(plain)-pad], nil
}
