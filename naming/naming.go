// Package naming turns user-supplied filenames into safe ASCII output names.
package naming

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v4"
)

const maxNameLen = 100

// translit maps Cyrillic letters to their phonetic Latin equivalents.
var translit = map[rune]string{
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d", 'е': "e", 'ё': "yo",
	'ж': "zh", 'з': "z", 'и': "i", 'й': "y", 'к': "k", 'л': "l", 'м': "m",
	'н': "n", 'о': "o", 'п': "p", 'р': "r", 'с': "s", 'т': "t", 'у': "u",
	'ф': "f", 'х': "h", 'ц': "ts", 'ч': "ch", 'ш': "sh", 'щ': "sch",
	'ъ': "", 'ы': "y", 'ь': "", 'э': "e", 'ю': "yu", 'я': "ya",
	'А': "A", 'Б': "B", 'В': "V", 'Г': "G", 'Д': "D", 'Е': "E", 'Ё': "YO",
	'Ж': "ZH", 'З': "Z", 'И': "I", 'Й': "Y", 'К': "K", 'Л': "L", 'М': "M",
	'Н': "N", 'О': "O", 'П': "P", 'Р': "R", 'С': "S", 'Т': "T", 'У': "U",
	'Ф': "F", 'Х': "H", 'Ц': "TS", 'Ч': "CH", 'Ш': "SH", 'Щ': "SCH",
	'Ъ': "", 'Ы': "Y", 'Ь': "", 'Э': "E", 'Ю': "YU", 'Я': "YA",
}

func isSafe(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' ||
		r >= '0' && r <= '9' || r == '-' || r == '_' || r == '.'
}

// Translit converts arbitrary text into a safe ASCII name using only
// [A-Za-z0-9._-]. It is total: any input, including the empty string,
// yields a non-empty result of at least 3 characters.
func Translit(text string) string {
	var b strings.Builder
	for _, r := range text {
		switch {
		case translit[r] != "":
			b.WriteString(translit[r])
		case r == ' ' || r == '\t':
			b.WriteByte('_')
		case isSafe(r):
			b.WriteRune(r)
		default:
			// Soft/hard signs map to "" above and are simply dropped.
			if _, dropped := translit[r]; !dropped {
				b.WriteByte('_')
			}
		}
	}

	result := collapseUnderscores(b.String())
	result = strings.Trim(result, "_")

	if len(result) < 3 {
		ts := fmt.Sprintf("%d", time.Now().UnixMilli())
		result = "video_" + ts[len(ts)-6:]
	}
	if len(result) > maxNameLen {
		result = result[:maxNameLen]
	}
	return result
}

func collapseUnderscores(s string) string {
	var b strings.Builder
	prev := false
	for _, r := range s {
		if r == '_' {
			if prev {
				continue
			}
			prev = true
		} else {
			prev = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// TempName returns a unique name for an intermediate artifact, extension
// included.
func TempName(ext string) string {
	return "temp_" + shortuuid.New()[:8] + ext
}

// OutputName builds a human-readable stem for an output file: optional
// prefix, transliterated original name without extension, and a short
// random suffix so concurrent jobs never collide. The caller appends
// the extension.
func OutputName(originalName, prefix string) string {
	stem := strings.TrimSuffix(filepath.Base(originalName), filepath.Ext(originalName))
	name := Translit(stem)
	if prefix != "" {
		name = prefix + "_" + name
	}
	return name + "_" + shortuuid.New()[:6]
}
