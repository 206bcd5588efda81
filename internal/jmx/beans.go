// Package jmx decodes the JSON document served by a JMX-over-HTTP servlet
// (Hadoop's /jmx and friends) into flat numeric samples.
package jmx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Sample is one numeric bean attribute.
type Sample struct {
	Bean      string
	Attribute string
	Value     float64
}

type document struct {
	Beans []map[string]json.RawMessage `json:"beans"`
}

// Decode returns every numeric (and boolean) top-level attribute of every bean,
// sorted by bean then attribute. Nested objects and strings are skipped.
func Decode(body []byte) ([]Sample, error) {
	var doc document
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding jmx payload: %w", err)
	}
	if doc.Beans == nil {
		return nil, fmt.Errorf("decoding jmx payload: no \"beans\" array")
	}

	var samples []Sample
	for _, bean := range doc.Beans {
		var name string
		if raw, ok := bean["name"]; ok {
			_ = json.Unmarshal(raw, &name)
		}
		if name == "" {
			continue
		}
		for attr, raw := range bean {
			if attr == "name" || attr == "modelerType" {
				continue
			}
			if v, ok := numeric(raw); ok {
				samples = append(samples, Sample{Bean: name, Attribute: attr, Value: v})
			}
		}
	}

	sort.Slice(samples, func(i, j int) bool {
		if samples[i].Bean != samples[j].Bean {
			return samples[i].Bean < samples[j].Bean
		}
		return samples[i].Attribute < samples[j].Attribute
	})
	return samples, nil
}

func numeric(raw json.RawMessage) (float64, bool) {
	s := strings.TrimSpace(string(raw))
	switch s {
	case "true":
		return 1, true
	case "false":
		return 0, true
	}
	if strings.HasPrefix(s, `"`) {
		return 0, false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	v, err := n.Float64()
	if err != nil {
		return 0, false
	}
	return v, true
}

// Filter keeps the samples whose bean name contains any of the substrings.
// An empty list keeps everything.
func Filter(samples []Sample, beans []string) []Sample {
	if len(beans) == 0 {
		return samples
	}
	var out []Sample
	for _, s := range samples {
		for _, b := range beans {
			if strings.Contains(s.Bean, b) {
				out = append(out, s)
				break
			}
		}
	}
	return out
}
