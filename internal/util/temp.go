package util

import (
	"crypto/rand"
	"os"
	"path/filepath"
)

const tempSuffixLength = 8

const tempAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// RandomSuffix returns n random characters drawn from [a-z0-9].
func RandomSuffix(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = tempAlphabet[int(b)%len(tempAlphabet)]
	}
	return string(buf), nil
}

// TempSibling returns a currently unused path in the same directory as path,
// named <stem>-<random suffix>.<ext>. An empty ext leaves the suffix bare.
// The file itself is not created.
func TempSibling(path, ext string) (string, error) {
	dir := filepath.Dir(path)
	stem := GetFileStem(path)
	for {
		suffix, err := RandomSuffix(tempSuffixLength)
		if err != nil {
			return "", err
		}
		name := stem + "-" + suffix
		if ext != "" {
			name += "." + ext
		}
		candidate := filepath.Join(dir, name)
		if _, err := os.Lstat(candidate); err != nil {
			if os.IsNotExist(err) {
				return candidate, nil
			}
			return "", err
		}
	}
}
