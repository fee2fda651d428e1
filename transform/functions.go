package transform

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func transformUppercase(input string, _ map[string]string) (string, error) {
	return strings.ToUpper(input), nil
}

func transformLowercase(input string, _ map[string]string) (string, error) {
	return strings.ToLower(input), nil
}

func transformTrim(input string, _ map[string]string) (string, error) {
	return strings.TrimSpace(input), nil
}

func transformTitle(input string, _ map[string]string) (string, error) {
	var b strings.Builder
	b.Grow(len(input))
	startOfWord := true
	for _, r := range input {
		if unicode.IsSpace(r) {
			startOfWord = true
			b.WriteRune(r)
			continue
		}
		if startOfWord {
			b.WriteRune(unicode.ToUpper(r))
			startOfWord = false
		} else {
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

func transformReverse(input string, _ map[string]string) (string, error) {
	runes := []rune(input)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes), nil
}

func transformBase64Encode(input string, _ map[string]string) (string, error) {
	return base64.StdEncoding.EncodeToString([]byte(input)), nil
}

func transformBase64Decode(input string, _ map[string]string) (string, error) {
	decoded, err := base64.StdEncoding.DecodeString(input)
	if err != nil {
		return "", fmt.Errorf("invalid base64 input: %v", err)
	}
	return string(decoded), nil
}

func transformURLEncode(input string, _ map[string]string) (string, error) {
	return url.QueryEscape(input), nil
}

func transformURLDecode(input string, _ map[string]string) (string, error) {
	decoded, err := url.QueryUnescape(input)
	if err != nil {
		return "", fmt.Errorf("invalid url-encoded input: %v", err)
	}
	return decoded, nil
}

func transformSHA256(input string, _ map[string]string) (string, error) {
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:]), nil
}

func transformMD5(input string, _ map[string]string) (string, error) {
	hash := md5.Sum([]byte(input))
	return hex.EncodeToString(hash[:]), nil
}

func transformReplace(input string, args map[string]string) (string, error) {
	old, ok := args["old"]
	if !ok {
		return "", fmt.Errorf("replace requires an %q argument", "old")
	}
	return strings.ReplaceAll(input, old, args["new"]), nil
}

func transformSubstring(input string, args map[string]string) (string, error) {
	runes := []rune(input)
	start := 0
	if s, ok := args["start"]; ok {
		parsed, err := strconv.Atoi(s)
		if err != nil {
			return "", fmt.Errorf("invalid start %q: %v", s, err)
		}
		start = parsed
	}
	if start < 0 {
		start = 0
	}
	if start >= len(runes) {
		return "", nil
	}
	end := len(runes)
	if l, ok := args["length"]; ok {
		parsed, err := strconv.Atoi(l)
		if err != nil {
			return "", fmt.Errorf("invalid length %q: %v", l, err)
		}
		if start+parsed < end {
			end = start + parsed
		}
	}
	return string(runes[start:end]), nil
}

func transformPrepend(input string, args map[string]string) (string, error) {
	return args["value"] + input, nil
}

func transformAppend(input string, args map[string]string) (string, error) {
	return input + args["value"], nil
}

func transformDefault(input string, args map[string]string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return args["value"], nil
	}
	return input, nil
}

func transformNumberFormat(input string, args map[string]string) (string, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(input))
	if err != nil {
		return "", fmt.Errorf("invalid number %q: %v", input, err)
	}
	places := int32(2)
	if p, ok := args["decimals"]; ok {
		parsed, err := strconv.Atoi(p)
		if err != nil {
			return "", fmt.Errorf("invalid decimals %q: %v", p, err)
		}
		places = int32(parsed)
	}
	return d.StringFixed(places), nil
}

// transformDateFormat reparses a timestamp between layouts. The layouts are Go
// reference layouts; the special value "unix" means epoch seconds.
func transformDateFormat(input string, args map[string]string) (string, error) {
	from := args["from"]
	if from == "" {
		from = time.RFC3339
	}
	to := args["to"]
	if to == "" {
		to = time.RFC3339
	}

	var parsed time.Time
	if from == "unix" {
		seconds, err := strconv.ParseInt(strings.TrimSpace(input), 10, 64)
		if err != nil {
			return "", fmt.Errorf("invalid unix timestamp %q: %v", input, err)
		}
		parsed = time.Unix(seconds, 0).UTC()
	} else {
		var err error
		parsed, err = time.Parse(from, input)
		if err != nil {
			return "", fmt.Errorf("invalid date %q for layout %q: %v", input, from, err)
		}
	}

	if to == "unix" {
		return strconv.FormatInt(parsed.Unix(), 10), nil
	}
	return parsed.Format(to), nil
}

func transformUUID(_ string, _ map[string]string) (string, error) {
	return uuid.New().String(), nil
}
