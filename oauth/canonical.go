package oauth

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Data holds request parameters. Values are strings, numbers, bools, nil, or
// sequences ([]string, []any) for multi-valued parameters.
type Data map[string]any

// Pair is one key/value entry of a sorted parameter list.
type Pair struct {
	Key   string
	Value any
}

// Request describes an outgoing request for signing.
type Request struct {
	Method string
	// URL may carry an already-encoded query string.
	URL  string
	Data Data
	// Body, when set, is hashed verbatim in body-hash mode instead of Data.
	Body            string
	IncludeBodyHash bool
}

// PercentEncode percent encodes a string according to RFC 3986 2.1.
// This is encodeURIComponent plus the reserved characters ! * ' ( ).
func PercentEncode(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	for i := 0; i < len(input); i++ {
		c := input[i]
		if shouldEscape(c) {
			fmt.Fprintf(&b, "%%%02X", c)
		} else {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// shouldEscape returns false if the byte is an unreserved character that
// should not be escaped and true otherwise, according to RFC 3986 2.1.
func shouldEscape(c byte) bool {
	if 'A' <= c && c <= 'Z' || 'a' <= c && c <= 'z' || '0' <= c && c <= '9' {
		return false
	}
	switch c {
	case '-', '.', '_', '~':
		return false
	}
	return true
}

// Stringify renders a parameter value the way it appears on the wire.
// A nil value is the literal "null".
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case uint:
		return strconv.FormatUint(uint64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case []string:
		return strings.Join(t, ",")
	case []any:
		parts := make([]string, len(t))
		for i, item := range t {
			parts[i] = Stringify(item)
		}
		return strings.Join(parts, ",")
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// EncodeValue percent encodes a single scalar parameter value.
func EncodeValue(v any) string {
	return PercentEncode(Stringify(v))
}

// sequence reports the members of a multi-valued parameter.
func sequence(v any) ([]any, bool) {
	switch t := v.(type) {
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, true
	case []any:
		return t, true
	}
	return nil, false
}

// PercentEncodeData percent encodes every key and value. Sequence members are
// encoded, comma joined, and the joined string is encoded a second time, so
// ["*", "!"] becomes %252A%2C%2521.
func PercentEncodeData(data Data) map[string]string {
	encoded := make(map[string]string, len(data))
	for key, value := range data {
		if items, ok := sequence(value); ok {
			parts := make([]string, len(items))
			for i, item := range items {
				parts[i] = EncodeValue(item)
			}
			encoded[PercentEncode(key)] = PercentEncode(strings.Join(parts, ","))
			continue
		}
		encoded[PercentEncode(key)] = EncodeValue(value)
	}
	return encoded
}

// SortObjectProperties returns the entries of data ordered by key.
func SortObjectProperties[V any](data map[string]V) []Pair {
	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	pairs := make([]Pair, len(keys))
	for i, key := range keys {
		pairs[i] = Pair{Key: key, Value: data[key]}
	}
	return pairs
}

// GetDataAsParameterString joins sorted pairs as key=value with "&". A
// sequence value expands into one key=item entry per member, members sorted.
func GetDataAsParameterString(pairs []Pair) string {
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		if items, ok := sequence(p.Value); ok {
			values := make([]string, len(items))
			for i, item := range items {
				values[i] = Stringify(item)
			}
			sort.Strings(values)
			for _, v := range values {
				parts = append(parts, p.Key+"="+v)
			}
			continue
		}
		parts = append(parts, p.Key+"="+Stringify(p.Value))
	}
	return strings.Join(parts, "&")
}

// EncodeQuery renders data as a query string with RFC 3986 encoding, keys
// sorted. Sequence members repeat the key.
func EncodeQuery(data Data) string {
	parts := make([]string, 0, len(data))
	for _, p := range SortObjectProperties(data) {
		key := PercentEncode(p.Key)
		if items, ok := sequence(p.Value); ok {
			for _, item := range items {
				parts = append(parts, key+"="+EncodeValue(item))
			}
			continue
		}
		parts = append(parts, key+"="+EncodeValue(p.Value))
	}
	return strings.Join(parts, "&")
}

// ConvertQueryStringToObject parses an encoded query string. Values are
// percent decoded; keys repeated in the query collect into a []string in
// encounter order.
func ConvertQueryStringToObject(queryString string) Data {
	data := Data{}
	for _, pair := range strings.Split(queryString, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		if decoded, err := url.PathUnescape(value); err == nil {
			value = decoded
		}
		existing, ok := data[key]
		if !ok {
			data[key] = value
			continue
		}
		switch t := existing.(type) {
		case []string:
			data[key] = append(t, value)
		default:
			data[key] = []string{Stringify(t), value}
		}
	}
	return data
}

// ConvertURLToObject parses the query portion of rawURL, split on the first "?".
func ConvertURLToObject(rawURL string) Data {
	_, query, found := strings.Cut(rawURL, "?")
	if !found {
		return Data{}
	}
	return ConvertQueryStringToObject(query)
}

// GetBaseURL strips the query string from rawURL.
func GetBaseURL(rawURL string) string {
	base, _, _ := strings.Cut(rawURL, "?")
	return base
}

// GetRequestParameterString collects the OAuth parameters, request body data
// and URL query into the normalized parameter string. Body data is left out
// when oauth_body_hash stands in for it. On key collisions the query wins over
// the body and the body wins over the OAuth parameters.
func GetRequestParameterString(req Request, oauthParams Params) string {
	merged := make(Data, len(oauthParams)+len(req.Data))
	for key, value := range oauthParams {
		merged[key] = value
	}
	if _, ok := oauthParams[BodyHashParam]; !ok {
		for key, value := range req.Data {
			merged[key] = value
		}
	}
	for key, value := range ConvertURLToObject(req.URL) {
		merged[key] = value
	}
	return GetDataAsParameterString(SortObjectProperties(PercentEncodeData(merged)))
}

// GetBaseString combines the uppercase request method, the percent encoded
// base URL and the percent encoded parameter string into the signature base
// string.
func GetBaseString(req Request, oauthParams Params) string {
	return strings.Join([]string{
		strings.ToUpper(req.Method),
		PercentEncode(GetBaseURL(req.URL)),
		PercentEncode(GetRequestParameterString(req, oauthParams)),
	}, "&")
}
