package crypto

import (
	"encoding/hex"
	"errors"
	"path/filepath"
	"testing"
)

func TestKeystoreRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	path := filepath.Join(t.TempDir(), "keys", "client.keystore")
	if err := SaveToKeystore(path, key, "pass", WithLightScrypt()); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := LoadFromKeystore(path, "pass")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Address() != key.Address() {
		t.Fatalf("address mismatch: %s vs %s", loaded.Address().Hex(), key.Address().Hex())
	}
	if _, err := LoadFromKeystore(path, "wrong"); err == nil {
		t.Fatalf("expected wrong passphrase to fail")
	}
}

func TestKeystoreRefusesOverwrite(t *testing.T) {
	first, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	second, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	path := filepath.Join(t.TempDir(), "vendor.keystore")
	if err := SaveToKeystore(path, first, "pass", WithLightScrypt()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := SaveToKeystore(path, second, "pass", WithLightScrypt()); !errors.Is(err, ErrKeystoreExists) {
		t.Fatalf("expected ErrKeystoreExists, got %v", err)
	}
	if err := SaveToKeystore(path, second, "pass", WithLightScrypt(), WithOverwrite()); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	loaded, err := LoadFromKeystore(path, "pass")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Address() != second.Address() {
		t.Fatalf("expected overwritten key")
	}
}

func TestPrivateKeyFromHex(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	encoded := "0x" + hex.EncodeToString(key.Bytes())
	parsed, err := PrivateKeyFromHex(encoded)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Address() != key.Address() {
		t.Fatalf("address mismatch")
	}
	if _, err := PrivateKeyFromHex("zz"); err == nil {
		t.Fatalf("expected invalid hex to fail")
	}
}
