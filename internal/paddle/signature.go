package paddle

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// Verifier проверяет заголовок Paddle-Signature вида "ts=<unix>;h1=<hex>".
// Подпись равна HMAC-SHA256(secret, "{ts}:{rawBody}").
type Verifier struct {
	secret    string
	tolerance time.Duration
	now       func() time.Time
}

// NewVerifier создаёт проверку подписи. tolerance > 0 включает отказ
// для подписей с меткой времени дальше tolerance от текущего момента,
// 0 отключает проверку свежести.
func NewVerifier(secret string, tolerance time.Duration) *Verifier {
	return &Verifier{
		secret:    secret,
		tolerance: tolerance,
		now:       time.Now,
	}
}

// Verify сообщает, подписано ли тело секретом. Любая ошибка разбора,
// пустой секрет или заголовок дают false.
func (v *Verifier) Verify(body []byte, header string) bool {
	if v.secret == "" || header == "" {
		return false
	}

	ts, digests := parseHeader(header)
	if ts == "" || len(digests) == 0 {
		return false
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}
	if v.tolerance > 0 {
		skew := v.now().Sub(time.Unix(unix, 0))
		if skew < 0 {
			skew = -skew
		}
		if skew > v.tolerance {
			return false
		}
	}

	expected := computeMAC(v.secret, ts, body)
	for _, d := range digests {
		got, err := hex.DecodeString(d)
		if err != nil {
			continue
		}
		if hmac.Equal(expected, got) {
			return true
		}
	}
	return false
}

// Sign формирует значение заголовка Paddle-Signature для тела и метки времени.
func Sign(secret string, ts time.Time, body []byte) string {
	tsStr := strconv.FormatInt(ts.Unix(), 10)
	return "ts=" + tsStr + ";h1=" + hex.EncodeToString(computeMAC(secret, tsStr, body))
}

func computeMAC(secret, ts string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte(":"))
	mac.Write(body)
	return mac.Sum(nil)
}

// parseHeader разбирает сегменты, разделённые ";". При ротации секрета
// Paddle присылает несколько h1, поэтому возвращаются все.
func parseHeader(header string) (string, []string) {
	var (
		ts      string
		digests []string
	)
	for _, part := range strings.Split(header, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "ts":
			ts = value
		case "h1":
			if value != "" {
				digests = append(digests, value)
			}
		}
	}
	return ts, digests
}
