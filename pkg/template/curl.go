package template

import "strings"

// Curl renders a raw transcript as a curl command line.
func Curl(raw string, target Target) string {
	t := Parse(raw)

	var b strings.Builder
	b.WriteString("curl '")
	b.WriteString(target.URL(t.URI))
	b.WriteString("' -X '")
	b.WriteString(t.Method)
	b.WriteString("' --data '")
	b.Write(t.Body)
	b.WriteString("'")
	for _, h := range t.Headers {
		b.WriteString(" -H '")
		b.WriteString(h.Name)
		b.WriteString(headerSep)
		b.WriteString(h.Value)
		b.WriteString("'")
	}
	return b.String()
}
