package mirror

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
)

// EncryptionKMSEnvelope is the object metadata value marking an envelope
// encrypted object.
const EncryptionKMSEnvelope = "kms-envelope"

const (
	dataKeySize = 32 // AES-256
	ivSize      = 16
	tagSize     = 16
)

// ErrMalformedEnvelope is returned when an encrypted payload is truncated or
// has an invalid header.
var ErrMalformedEnvelope = errors.New("malformed envelope")

// Envelope encrypts payloads with a fresh AES-256-GCM data key that is
// itself encrypted by KMS.
//
// Sealed layout: [4 bytes: key length][encrypted key][16 bytes: IV][16 bytes: tag][ciphertext]
type Envelope struct {
	kms   KMSAPI
	keyID string
}

// NewEnvelope creates an envelope using the KMS key keyID. keyID may be
// empty for an envelope that only opens payloads.
func NewEnvelope(client KMSAPI, keyID string) *Envelope {
	return &Envelope{kms: client, keyID: keyID}
}

// CanSeal reports whether a KMS key is configured.
func (e *Envelope) CanSeal() bool {
	return e != nil && e.keyID != ""
}

// Seal encrypts data.
func (e *Envelope) Seal(ctx context.Context, data []byte) ([]byte, error) {
	if !e.CanSeal() {
		return nil, fmt.Errorf("KMS key not configured, cannot encrypt data")
	}

	dataKey := make([]byte, dataKeySize)
	if _, err := rand.Read(dataKey); err != nil {
		return nil, fmt.Errorf("failed to generate data key: %w", err)
	}
	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("failed to generate IV: %w", err)
	}

	aesGCM, err := newGCM(dataKey)
	if err != nil {
		return nil, err
	}
	sealed := aesGCM.Seal(nil, iv, data, nil)
	ciphertext, authTag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	out, err := e.kms.Encrypt(ctx, &kms.EncryptInput{
		KeyId:     aws.String(e.keyID),
		Plaintext: dataKey,
	})
	if err != nil {
		return nil, fmt.Errorf("KMS encryption failed: %w", err)
	}

	var result bytes.Buffer
	result.Grow(4 + len(out.CiphertextBlob) + ivSize + tagSize + len(ciphertext))
	if err := binary.Write(&result, binary.BigEndian, uint32(len(out.CiphertextBlob))); err != nil {
		return nil, fmt.Errorf("failed to write key length: %w", err)
	}
	result.Write(out.CiphertextBlob)
	result.Write(iv)
	result.Write(authTag)
	result.Write(ciphertext)
	return result.Bytes(), nil
}

// Open decrypts a payload produced by Seal.
func (e *Envelope) Open(ctx context.Context, data []byte) ([]byte, error) {
	if e == nil || e.kms == nil {
		return nil, fmt.Errorf("KMS client not configured, cannot decrypt data")
	}

	buf := bytes.NewReader(data)
	var keyLen uint32
	if err := binary.Read(buf, binary.BigEndian, &keyLen); err != nil {
		return nil, fmt.Errorf("%w: key length: %v", ErrMalformedEnvelope, err)
	}
	if int64(keyLen) > int64(buf.Len())-ivSize-tagSize {
		return nil, fmt.Errorf("%w: key length %d exceeds payload", ErrMalformedEnvelope, keyLen)
	}

	encryptedKey := make([]byte, keyLen)
	iv := make([]byte, ivSize)
	authTag := make([]byte, tagSize)
	for _, part := range [][]byte{encryptedKey, iv, authTag} {
		if _, err := io.ReadFull(buf, part); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
		}
	}
	ciphertext, err := io.ReadAll(buf)
	if err != nil {
		return nil, err
	}

	out, err := e.kms.Decrypt(ctx, &kms.DecryptInput{CiphertextBlob: encryptedKey})
	if err != nil {
		return nil, fmt.Errorf("KMS decrypt failed: %w", err)
	}

	aesGCM, err := newGCM(out.Plaintext)
	if err != nil {
		return nil, err
	}
	plaintext, err := aesGCM.Open(nil, iv, append(ciphertext, authTag...), nil)
	if err != nil {
		return nil, fmt.Errorf("AES-GCM decrypt failed: %w", err)
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	// 16-byte nonce, shared with payloads written by other mirror tooling.
	aesGCM, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aesGCM, nil
}
