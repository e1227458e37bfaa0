package utils

import (
	"regexp"
	"strconv"
	"strings"
)

var rxKeepNums = regexp.MustCompile(`[^\d\.\-]`)

// ParseFloatLenient парсит "0,85", " 0.9 ", "1 234,5" (NBSP/NNBSP) и т.п.
// Пороги в форме и в CLI часто приходят с запятой.
func ParseFloatLenient(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	repl := strings.NewReplacer("\u00A0", "", "\u202F", "", " ", "", "\t", "", ",", ".")
	s = repl.Replace(s)
	s = rxKeepNums.ReplaceAllString(s, "")
	if s == "" || s == "-" || s == "." {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

// ParseUnit: число из [0,1]; иначе ok=false.
func ParseUnit(s string) (float64, bool) {
	f, ok := ParseFloatLenient(s)
	if !ok || f < 0 || f > 1 {
		return 0, false
	}
	return f, true
}

// ParseBool понимает 1/0, true/false, yes/no, on/off.
func ParseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}
