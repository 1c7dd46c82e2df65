package sources

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-rate-signals/models"
)

type node = map[string]any

// jsonLDNodes decodes every ld+json script under sel, flattening top-level
// arrays and @graph containers. Malformed blocks are skipped.
func jsonLDNodes(sel *goquery.Selection) []node {
	var out []node
	sel.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var raw any
		if err := json.Unmarshal([]byte(strings.TrimSpace(s.Text())), &raw); err != nil {
			return
		}
		out = append(out, flattenNodes(raw)...)
	})
	return out
}

func flattenNodes(raw any) []node {
	switch v := raw.(type) {
	case []any:
		var out []node
		for _, item := range v {
			out = append(out, flattenNodes(item)...)
		}
		return out
	case node:
		if graph, ok := v["@graph"]; ok {
			return flattenNodes(graph)
		}
		return []node{v}
	default:
		return nil
	}
}

// hasType reports whether n's @type equals or contains typ.
func hasType(n node, types ...string) bool {
	check := func(t string) bool {
		for _, want := range types {
			if strings.EqualFold(t, want) {
				return true
			}
		}
		return false
	}
	switch v := n["@type"].(type) {
	case string:
		return check(v)
	case []any:
		for _, t := range v {
			if s, ok := t.(string); ok && check(s) {
				return true
			}
		}
	}
	return false
}

func child(n node, key string) node {
	switch v := n[key].(type) {
	case node:
		return v
	case []any:
		if len(v) > 0 {
			if m, ok := v[0].(node); ok {
				return m
			}
		}
	}
	return nil
}

func children(n node, key string) []node {
	switch v := n[key].(type) {
	case node:
		return []node{v}
	case []any:
		out := make([]node, 0, len(v))
		for _, item := range v {
			if m, ok := item.(node); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

func str(n node, key string) string {
	if n == nil {
		return ""
	}
	switch v := n[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	}
	return ""
}

func number(n node, key string) (float64, bool) {
	if n == nil {
		return 0, false
	}
	switch v := n[key].(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

// geoOf reads location.geo, or geo directly, as coordinates.
func geoOf(n node) *models.LatLon {
	g := child(n, "geo")
	if g == nil {
		g = child(child(n, "location"), "geo")
	}
	lat, okLat := number(g, "latitude")
	lon, okLon := number(g, "longitude")
	if !okLat || !okLon {
		return nil
	}
	return &models.LatLon{Latitude: lat, Longitude: lon}
}

// priceText renders a JSON-LD offer price with its currency.
func priceText(offer node) string {
	p := str(offer, "price")
	if p == "" {
		p = str(child(offer, "priceSpecification"), "price")
	}
	if p == "" {
		p = str(offer, "lowPrice")
	}
	if p == "" {
		return ""
	}
	if cur := str(offer, "priceCurrency"); cur != "" {
		return fmt.Sprintf("%s %s", cur, p)
	}
	return p
}
