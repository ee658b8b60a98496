package views

import (
	"fmt"
	"html"
	"math"
	"strconv"
	"strings"
	"time"
	"zyvpn-miniapp/internal/api"
)

// StarsPerUSD - курс Telegram Stars для отображения
const StarsPerUSD = 50

var moscow = time.FixedZone("MSK", 3*60*60)

func esc(s string) string {
	return html.EscapeString(s)
}

// Num печатает число без лишних нулей: 0.5, 1, 2.25
func Num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// RUB - округлённая сумма в рублях
func RUB(v float64) string {
	return fmt.Sprintf("%d ₽", int64(math.Round(v)))
}

func TON(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64) + " TON"
}

// StarRUB - цена одной звезды в рублях
func StarRUB(r api.ExchangeRates) float64 {
	return r.UsdRUB / StarsPerUSD
}

// Bar рисует полосу из width делений, percent в диапазоне 0..100
func Bar(percent float64, width int) string {
	percent = math.Max(0, math.Min(100, percent))
	filled := int(math.Round(percent / 100 * float64(width)))
	return strings.Repeat("▓", filled) + strings.Repeat("░", width-filled)
}

func Date(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.In(moscow).Format("02.01.2006")
}

func DateTime(t time.Time) string {
	return t.In(moscow).Format("02.01.06 15:04")
}

// ShortAddr - UQBvW8...XgGG
func ShortAddr(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
