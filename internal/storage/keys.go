package storage

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

const maxBaseNameLen = 64

// KeyGenerator порождает ключи объектов вида
// users/{userId}/{unixMillis}-{hex}-{basename}{.ext}.
// Ключ одноразовый: однажды выданный ключ повторно не используется.
// Часы и источник случайности инжектируются для воспроизводимости в тестах.
type KeyGenerator struct {
	now    func() time.Time
	random io.Reader
}

func NewKeyGenerator() *KeyGenerator {
	return &KeyGenerator{
		now:    time.Now,
		random: rand.Reader,
	}
}

// NewKeyGeneratorWith позволяет подменить часы и случайность
func NewKeyGeneratorWith(now func() time.Time, random io.Reader) *KeyGenerator {
	return &KeyGenerator{now: now, random: random}
}

// GenerateKey строит уникальный ключ объекта для пользователя.
// Ключ не зависит от выбранного бэкенда, поэтому смена хранилища
// не ломает уже сохраненные метаданные.
func (g *KeyGenerator) GenerateKey(userID, originalName string) string {
	millis := g.now().UnixMilli()

	token := make([]byte, 4)
	if _, err := io.ReadFull(g.random, token); err != nil {
		// crypto/rand практически не отказывает, но ключ обязан
		// выдаваться всегда
		u := uuid.New()
		copy(token, u[:4])
	}

	base, ext := splitName(originalName)

	return fmt.Sprintf("users/%s/%d-%s-%s%s",
		userID, millis, hex.EncodeToString(token), base, ext)
}

// splitName отделяет расширение и санитизирует обе части имени
func splitName(name string) (string, string) {
	// Отбрасываем любые директории из клиентского имени файла
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))

	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)

	base = sanitize(base, maxBaseNameLen)
	if base == "" {
		base = "file"
	}

	if ext != "" {
		ext = "." + sanitize(strings.TrimPrefix(ext, "."), 16)
		if ext == "." {
			ext = ""
		}
	}

	return base, ext
}

// sanitize приводит строку к нижнему регистру и безопасному набору
// символов [a-z0-9._-], чтобы исключить path traversal и проблемы
// с кодировками
func sanitize(s string, maxLen int) string {
	s = strings.ToLower(s)

	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}

	out := strings.Trim(b.String(), ".")
	if len(out) > maxLen {
		out = out[:maxLen]
	}
	return out
}
