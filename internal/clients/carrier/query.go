package carrier

import (
	"net/url"
	"strconv"
	"strings"
)

// query builds a query string in insertion order with bracket notation for
// nested keys (filter[states]) and arrays (filter[states][]=paid). Escaping
// follows RFC 3986, so spaces become %20.
type query struct {
	parts []string
}

func (q *query) add(key, value string) {
	q.parts = append(q.parts, escapeQuery(key)+"="+escapeQuery(value))
}

func (q *query) addInt(key string, value int) {
	if value > 0 {
		q.add(key, strconv.Itoa(value))
	}
}

func (q *query) addNonEmpty(key, value string) {
	if value != "" {
		q.add(key, value)
	}
}

func (q *query) addList(key string, values []string) {
	for _, v := range values {
		q.add(key+"[]", v)
	}
}

func (q *query) encode() string {
	return strings.Join(q.parts, "&")
}

func escapeQuery(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
