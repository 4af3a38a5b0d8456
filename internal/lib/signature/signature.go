package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// * Sign возвращает hex(HMAC_SHA256(body, secret)).
// Используется воркером при отправке и в тестах.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// * Valid сверяет подпись батча с ожидаемой.
// Сравнение за константное время, пустая подпись или пустой секрет — отказ.
func Valid(body []byte, sig, secret string) bool {
	if secret == "" || sig == "" {
		return false
	}

	expected := Sign(body, secret)

	return hmac.Equal([]byte(expected), []byte(sig))
}
