package oauth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPercentEncode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"reserved characters", "a!b*c'd(e)f", "a%21b%2Ac%27d%28e%29f"},
		{"empty", "", ""},
		{"unreserved untouched", "AZaz09-._~", "AZaz09-._~"},
		{"space and plus", "a b+c", "a%20b%2Bc"},
		{"utf-8 bytes", "é", "%C3%A9"},
		{"separators", "a=b&c,d/e?", "a%3Db%26c%2Cd%2Fe%3F"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, PercentEncode(tt.in))
		})
	}
}

func TestPercentEncodeData(t *testing.T) {
	t.Run("simple object", func(t *testing.T) {
		got := PercentEncodeData(Data{"one": 1, "two": "two", "3": nil})
		require.Equal(t, map[string]string{"one": "1", "two": "two", "3": "null"}, got)
	})

	t.Run("bad characters", func(t *testing.T) {
		got := PercentEncodeData(Data{"(one)": 1, "two": "two!", "3": "*"})
		require.Equal(t, map[string]string{"%28one%29": "1", "two": "two%21", "3": "%2A"}, got)
	})

	t.Run("arrays are encoded twice", func(t *testing.T) {
		got := PercentEncodeData(Data{
			"one": []any{1, 2, 3},
			"two": "two",
			"3":   []string{"*", "!"},
		})
		require.Equal(t, map[string]string{
			"one": "1%2C2%2C3",
			"two": "two",
			"3":   "%252A%2C%2521",
		}, got)
	})

	t.Run("two passes over array members", func(t *testing.T) {
		members := []string{"a b", "c&d"}
		once := PercentEncode(members[0]) + "," + PercentEncode(members[1])
		got := PercentEncodeData(Data{"k": members})
		require.Equal(t, PercentEncode(once), got["k"])
	})
}

func TestSortObjectProperties(t *testing.T) {
	got := SortObjectProperties(Data{"b": "one", "g": "two", "z": "three", "a": "four"})
	require.Equal(t, []Pair{
		{Key: "a", Value: "four"},
		{Key: "b", Value: "one"},
		{Key: "g", Value: "two"},
		{Key: "z", Value: "three"},
	}, got)

	require.Equal(t, []Pair{{Key: "a", Value: 2}, {Key: "b", Value: 1}},
		SortObjectProperties(map[string]int{"b": 1, "a": 2}))
}

func TestGetDataAsParameterString(t *testing.T) {
	t.Run("simple values", func(t *testing.T) {
		got := GetDataAsParameterString(SortObjectProperties(Data{
			"oauth_consumer_key":     "consumerKey",
			"oauth_nonce":            "aAbBcCdD",
			"oauth_signature_method": "signatureMethod",
			"oauth_timestamp":        "7654",
			"oauth_version":          "1.0a",
		}))
		require.Equal(t, "oauth_consumer_key=consumerKey"+
			"&oauth_nonce=aAbBcCdD"+
			"&oauth_signature_method=signatureMethod"+
			"&oauth_timestamp=7654"+
			"&oauth_version=1.0a", got)
	})

	t.Run("multi valued keys repeat", func(t *testing.T) {
		got := GetDataAsParameterString(SortObjectProperties(Data{
			"a": []string{"z", "b"},
			"c": "d",
		}))
		require.Equal(t, "a=b&a=z&c=d", got)
	})

	t.Run("empty", func(t *testing.T) {
		require.Equal(t, "", GetDataAsParameterString(nil))
	})
}

func TestConvertQueryStringToObject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Data
	}{
		{"simple values", "a=b&c=d&e=f", Data{"a": "b", "c": "d", "e": "f"}},
		{"encoded values", "a=%28b%29&c=d%2A&e=f%2Cg", Data{"a": "(b)", "c": "d*", "e": "f,g"}},
		{"repeated keys", "a=b1&a=b2&c=d&e=f&e=g", Data{"a": []string{"b1", "b2"}, "c": "d", "e": []string{"f", "g"}}},
		{"missing value", "a&b=", Data{"a": "", "b": ""}},
		{"empty", "", Data{}},
		{"value with equals", "sig=abc%3D&x=a=b", Data{"sig": "abc=", "x": "a=b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ConvertQueryStringToObject(tt.in))
		})
	}
}

func TestEncodeQuery(t *testing.T) {
	require.Equal(t, "a=x%20y&b=1&b=2&c=%2A", EncodeQuery(Data{"c": "*", "a": "x y", "b": []string{"1", "2"}}))
	require.Equal(t, "", EncodeQuery(nil))
	require.Equal(t, Data{"q": "a b+c", "n": "5"}, ConvertQueryStringToObject(EncodeQuery(Data{"q": "a b+c", "n": 5})))
}

func TestQueryStringRoundTrip(t *testing.T) {
	flat := Data{"alpha": "1", "beta": "two", "gamma": "3"}
	encoded := GetDataAsParameterString(SortObjectProperties(flat))
	require.Equal(t, flat, ConvertQueryStringToObject(encoded))
}

func TestConvertURLToObject(t *testing.T) {
	require.Equal(t, Data{}, ConvertURLToObject("https://example.com/path"))
	require.Equal(t, Data{"a": "b"}, ConvertURLToObject("https://example.com/path?a=b"))
	require.Equal(t, Data{"a": "b?c"}, ConvertURLToObject("https://example.com/path?a=b?c"))
	require.Equal(t, "https://example.com/path", GetBaseURL("https://example.com/path?a=b?c"))
}

func TestGetRequestParameterString(t *testing.T) {
	oauthParams := Params{
		ConsumerKeyParam:     "consumerKey",
		NonceParam:           "aAbBcCdD",
		SignatureMethodParam: "signatureMethod",
		TimestampParam:       "7654",
		VersionParam:         "1.0a",
	}

	t.Run("merges body and query", func(t *testing.T) {
		req := Request{URL: "base?parm1=one&parm2=two", Data: Data{"one": "1"}}
		require.Equal(t, "oauth_consumer_key=consumerKey"+
			"&oauth_nonce=aAbBcCdD"+
			"&oauth_signature_method=signatureMethod"+
			"&oauth_timestamp=7654"+
			"&oauth_version=1.0a"+
			"&one=1"+
			"&parm1=one"+
			"&parm2=two", GetRequestParameterString(req, oauthParams))
	})

	t.Run("body hash excludes body data", func(t *testing.T) {
		withHash := Params{BodyHashParam: "hash"}
		for k, v := range oauthParams {
			withHash[k] = v
		}
		req := Request{URL: "base?parm1=one", Data: Data{"one": "1"}}
		got := GetRequestParameterString(req, withHash)
		require.NotContains(t, got, "one=1")
		require.Contains(t, got, "oauth_body_hash=hash")
		require.Contains(t, got, "parm1=one")
	})

	t.Run("query wins over body", func(t *testing.T) {
		req := Request{URL: "base?x=query", Data: Data{"x": "body"}}
		require.Contains(t, GetRequestParameterString(req, Params{}), "x=query")
	})

	t.Run("repeated query keys join", func(t *testing.T) {
		req := Request{URL: "base?a=1&a=2"}
		require.Equal(t, "a=1%2C2", GetRequestParameterString(req, Params{}))
	})
}

func TestGetBaseString(t *testing.T) {
	req := Request{Method: "get", URL: "https://api.example.com/a b?x=1"}
	got := GetBaseString(req, Params{ConsumerKeyParam: "ck"})
	require.Equal(t, "GET&https%3A%2F%2Fapi.example.com%2Fa%20b&oauth_consumer_key%3Dck%26x%3D1", got)
}
