package cache

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want error
	}{
		{"valid", "usersgetid1", nil},
		{"empty", "", ErrInvalidKey},
		{"whitespace", "   ", ErrInvalidKey},
		{"newline", "a\nb", ErrInvalidKey},
		{"carriage return", "a\rb", ErrInvalidKey},
		{"too long", strings.Repeat("k", MaxKeyLength+1), ErrKeyTooLong},
		{"max length", strings.Repeat("k", MaxKeyLength), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateKey(tt.key); !errors.Is(err, tt.want) {
				t.Errorf("ValidateKey() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestStorageKey(t *testing.T) {
	if got := StorageKey("usersgetid1"); got != "usersgetid1" {
		t.Errorf("valid key rewritten: %q", got)
	}

	long := strings.Repeat("x", MaxKeyLength*2)
	fp := StorageKey(long)
	if err := ValidateKey(fp); err != nil {
		t.Errorf("fingerprint invalid: %v", err)
	}
	if fp != StorageKey(long) {
		t.Error("fingerprint not deterministic")
	}
	if fp == StorageKey(long+"y") {
		t.Error("distinct long keys share a fingerprint")
	}
	if !strings.HasPrefix(StorageKey("a\nb"), "xx:") {
		t.Error("key with newline not fingerprinted")
	}
}
