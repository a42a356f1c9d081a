package security

import (
	"bytes"
	"testing"
)

func TestDeriveKeyFromClusterID(t *testing.T) {
	tests := []struct {
		name      string
		clusterID string
	}{
		{
			name:      "simple ID",
			clusterID: "cluster-123",
		},
		{
			name:      "UUID",
			clusterID: "550e8400-e29b-41d4-a716-446655440000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := DeriveKeyFromClusterID(tt.clusterID)

			if len(key) != 32 {
				t.Errorf("DeriveKeyFromClusterID() returned key of length %d, want 32", len(key))
			}

			// Verify key is deterministic
			key2 := DeriveKeyFromClusterID(tt.clusterID)
			if !bytes.Equal(key, key2) {
				t.Error("DeriveKeyFromClusterID() should be deterministic")
			}

			// Verify different IDs produce different keys
			differentKey := DeriveKeyFromClusterID(tt.clusterID + "-different")
			if bytes.Equal(key, differentKey) {
				t.Error("Different cluster IDs should produce different keys")
			}
		})
	}
}

func TestSetClusterEncryptionKey_RejectsBadLength(t *testing.T) {
	if err := SetClusterEncryptionKey([]byte("too-short")); err == nil {
		t.Error("expected error for non-32-byte key")
	}
}

func TestClusterEncryptDecryptRoundtrip(t *testing.T) {
	key := DeriveKeyFromClusterID("roundtrip-cluster")
	if err := SetClusterEncryptionKey(key); err != nil {
		t.Fatalf("SetClusterEncryptionKey: %v", err)
	}

	plaintext := []byte("ca root key material")
	ciphertext, err := Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if bytes.Contains(ciphertext, plaintext) {
		t.Error("ciphertext should not contain the plaintext")
	}

	decrypted, err := Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Errorf("roundtrip mismatch: got %q, want %q", decrypted, plaintext)
	}

	// Nonces are random, so sealing twice never yields the same bytes.
	ciphertext2, err := Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if bytes.Equal(ciphertext, ciphertext2) {
		t.Error("two encryptions should differ in nonce")
	}
}

func TestDecrypt_Truncated(t *testing.T) {
	if err := SetClusterEncryptionKey(DeriveKeyFromClusterID("truncated-cluster")); err != nil {
		t.Fatalf("SetClusterEncryptionKey: %v", err)
	}
	if _, err := Decrypt([]byte{0x01, 0x02}); err == nil {
		t.Error("expected error for truncated ciphertext")
	}
}
