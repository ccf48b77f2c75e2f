package template

import (
	"bytes"
	"net/url"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantMethod  string
		wantURI     string
		wantHeaders Headers
		wantBody    string
	}{
		{
			name:        "get without body",
			raw:         "GET /login HTTP/1.1\r\nHost: x\r\n\r\n",
			wantMethod:  "GET",
			wantURI:     "/login",
			wantHeaders: Headers{{Name: "Host", Value: "x"}},
			wantBody:    "",
		},
		{
			name:       "post with body",
			raw:        "POST /api?a=1 HTTP/1.1\r\nHost: x\r\nContent-Type: application/json\r\n\r\n{\"a\":1}",
			wantMethod: "POST",
			wantURI:    "/api?a=1",
			wantHeaders: Headers{
				{Name: "Host", Value: "x"},
				{Name: "Content-Type", Value: "application/json"},
			},
			wantBody: `{"a":1}`,
		},
		{
			name:        "no blank line separator",
			raw:         "GET / HTTP/1.1\r\nHost: x",
			wantMethod:  "GET",
			wantURI:     "/",
			wantHeaders: Headers{{Name: "Host", Value: "x"}},
			wantBody:    "",
		},
		{
			name:       "malformed header line is skipped",
			raw:        "GET / HTTP/1.1\r\nHost: x\r\nbroken-line\r\nAccept: */*\r\n\r\n",
			wantMethod: "GET",
			wantURI:    "/",
			wantHeaders: Headers{
				{Name: "Host", Value: "x"},
				{Name: "Accept", Value: "*/*"},
			},
		},
		{
			name:       "value containing separator is split once",
			raw:        "GET / HTTP/1.1\r\nX-Note: a: b\r\n\r\n",
			wantMethod: "GET",
			wantURI:    "/",
			wantHeaders: Headers{
				{Name: "X-Note", Value: "a: b"},
			},
		},
		{
			name:       "body keeps later blank lines",
			raw:        "POST / HTTP/1.1\r\nHost: x\r\n\r\npart1\r\n\r\npart2",
			wantMethod: "POST",
			wantURI:    "/",
			wantHeaders: Headers{
				{Name: "Host", Value: "x"},
			},
			wantBody: "part1\r\n\r\npart2",
		},
		{
			name: "empty transcript degrades",
			raw:  "",
		},
		{
			name:       "start line only",
			raw:        "OPTIONS",
			wantMethod: "OPTIONS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.raw)

			if got.Method != tt.wantMethod {
				t.Errorf("Method = %q, want %q", got.Method, tt.wantMethod)
			}
			if got.URI != tt.wantURI {
				t.Errorf("URI = %q, want %q", got.URI, tt.wantURI)
			}
			if string(got.Body) != tt.wantBody {
				t.Errorf("Body = %q, want %q", got.Body, tt.wantBody)
			}
			if len(got.Headers) != len(tt.wantHeaders) {
				t.Fatalf("Headers = %v, want %v", got.Headers, tt.wantHeaders)
			}
			for i := range got.Headers {
				if got.Headers[i] != tt.wantHeaders[i] {
					t.Errorf("Headers[%d] = %v, want %v", i, got.Headers[i], tt.wantHeaders[i])
				}
			}
		})
	}
}

func TestBuild_Substitution(t *testing.T) {
	raw := "POST /search?q=$[PAYLOAD]$ HTTP/1.1\r\nHost: shop.local\r\nX-Probe: $[PAYLOAD]$\r\n\r\nterm=$[PAYLOAD]$&page=1"

	d := Build(raw, "ab'c", 7, Target{Host: "shop.local:8443", SSL: true})

	if d.Index != 7 {
		t.Errorf("Index = %d, want 7", d.Index)
	}
	if d.Method != "POST" {
		t.Errorf("Method = %q, want POST", d.Method)
	}
	if d.URL != "https://shop.local:8443/search?q=ab'c" {
		t.Errorf("URL = %q", d.URL)
	}
	if got := d.Headers.Get("x-probe"); got != "ab'c" {
		t.Errorf("X-Probe = %q, want ab'c", got)
	}
	if string(d.Body) != "term=ab'c&page=1" {
		t.Errorf("Body = %q", d.Body)
	}
}

func TestBuild_SchemeFromSSLFlag(t *testing.T) {
	raw := "GET /a HTTP/1.1\r\nHost: h\r\n\r\n"

	if got := Build(raw, "", 0, Target{Host: "h"}).URL; got != "http://h/a" {
		t.Errorf("plain URL = %q", got)
	}
	if got := Build(raw, "", 0, Target{Host: "h", SSL: true}).URL; got != "https://h/a" {
		t.Errorf("ssl URL = %q", got)
	}
}

// Templating then parsing the produced request back recovers method, URI
// suffix and body byte-for-byte apart from the substituted placeholders.
func TestBuild_RoundTrip(t *testing.T) {
	payloads := []string{"", "admin", "' OR 1=1 --", "ünïcödé", "a\r\nb", strings.Repeat("x", 4096)}
	raw := "PUT /items/$[PAYLOAD]$/edit?x=1 HTTP/1.1\r\nHost: api\r\nAuthorization: Bearer t\r\n\r\n{\"name\":\"$[PAYLOAD]$\"}"
	target := Target{Host: "api", SSL: true}

	for _, p := range payloads {
		d := Build(raw, p, 0, target)
		expected := Parse(Substitute(raw, p))

		if d.Method != "PUT" {
			t.Errorf("payload %q: Method = %q", p, d.Method)
		}

		u, err := url.Parse(d.URL)
		if err == nil && u.Host != "api" {
			t.Errorf("payload %q: host = %q", p, u.Host)
		}
		if !strings.HasSuffix(d.URL, expected.URI) {
			t.Errorf("payload %q: URL %q does not end with %q", p, d.URL, expected.URI)
		}
		if !bytes.Equal(d.Body, []byte(`{"name":"`+p+`"}`)) {
			t.Errorf("payload %q: Body = %q", p, d.Body)
		}
		if d.Headers.Get("Authorization") != "Bearer t" {
			t.Errorf("payload %q: Authorization = %q", p, d.Headers.Get("Authorization"))
		}
	}
}

func TestPrepare_PlaceholderAbsent(t *testing.T) {
	raw := "GET /login HTTP/1.1\r\nHost: x\r\n\r\n"

	descs := Prepare(raw, []string{"admin", "guest"}, Target{Host: "x"})

	if len(descs) != 2 {
		t.Fatalf("len = %d, want 2", len(descs))
	}
	for i, d := range descs {
		if d.Index != i {
			t.Errorf("descs[%d].Index = %d", i, d.Index)
		}
	}
	a, b := descs[0], descs[1]
	if a.Method != b.Method || a.URL != b.URL || !bytes.Equal(a.Body, b.Body) || len(a.Headers) != len(b.Headers) {
		t.Errorf("descriptors differ beyond index: %+v vs %+v", a, b)
	}
}

func TestHeaders_Values(t *testing.T) {
	var h Headers
	h.Add("Cookie", "a=1")
	h.Add("Accept", "*/*")
	h.Add("cookie", "b=2")

	got := h.Values("COOKIE")
	if len(got) != 2 || got[0] != "a=1" || got[1] != "b=2" {
		t.Errorf("Values = %v", got)
	}
	if h.Get("missing") != "" {
		t.Error("Get on missing header should be empty")
	}
}

func TestCurl(t *testing.T) {
	raw := "POST /x HTTP/1.1\r\nHost: h\r\nContent-Type: text/plain\r\n\r\nhello"

	got := Curl(raw, Target{Host: "h", SSL: true})
	want := "curl 'https://h/x' -X 'POST' --data 'hello' -H 'Host: h' -H 'Content-Type: text/plain'"
	if got != want {
		t.Errorf("Curl = %q\nwant   %q", got, want)
	}
}
