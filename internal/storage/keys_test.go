package storage

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(millis int64) func() time.Time {
	return func() time.Time {
		return time.UnixMilli(millis)
	}
}

func TestGenerateKeyIsReproducible(t *testing.T) {
	gen := NewKeyGeneratorWith(
		fixedClock(1700000000123),
		bytes.NewReader([]byte{0xde, 0xad, 0xbe, 0xef}),
	)

	key := gen.GenerateKey("u1", "report.pdf")
	require.Equal(t, "users/u1/1700000000123-deadbeef-report.pdf", key)
}

func TestGenerateKeySanitizesName(t *testing.T) {
	tests := []struct {
		name         string
		originalName string
		want         string
	}{
		{
			name:         "uppercase and spaces",
			originalName: "Report Final.PDF",
			want:         "users/u1/1700000000123-deadbeef-reportfinal.pdf",
		},
		{
			name:         "path traversal stripped",
			originalName: "../../etc/passwd",
			want:         "users/u1/1700000000123-deadbeef-passwd",
		},
		{
			name:         "windows separators stripped",
			originalName: `..\..\windows\system32\cmd.exe`,
			want:         "users/u1/1700000000123-deadbeef-cmd.exe",
		},
		{
			name:         "empty name falls back",
			originalName: "",
			want:         "users/u1/1700000000123-deadbeef-file",
		},
		{
			name:         "non-latin name falls back",
			originalName: "отчёт.документ",
			want:         "users/u1/1700000000123-deadbeef-file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := NewKeyGeneratorWith(
				fixedClock(1700000000123),
				bytes.NewReader([]byte{0xde, 0xad, 0xbe, 0xef}),
			)

			got := gen.GenerateKey("u1", tt.originalName)
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, got, "..")
		})
	}
}

func TestGenerateKeyUniqueWithinSameMillisecond(t *testing.T) {
	// Часы заморожены, уникальность обеспечивает только случайная часть
	gen := NewKeyGenerator()
	gen.now = fixedClock(1700000000123)

	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		key := gen.GenerateKey("u1", "report.pdf")
		_, dup := seen[key]
		require.False(t, dup, "duplicate key generated: %s", key)
		seen[key] = struct{}{}
	}
}

func TestGenerateKeyNamespacedByUser(t *testing.T) {
	gen := NewKeyGenerator()

	key := gen.GenerateKey("user-42", "data.bin")
	assert.True(t, strings.HasPrefix(key, "users/user-42/"))
}

func TestGenerateKeyCapsLongNames(t *testing.T) {
	gen := NewKeyGenerator()

	key := gen.GenerateKey("u1", strings.Repeat("a", 500)+".txt")
	assert.LessOrEqual(t, len(key), 128)
	assert.True(t, strings.HasSuffix(key, ".txt"))
}
