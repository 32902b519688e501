package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Keywords holds the editorial word lists consumed by the scorer and the
// quality gate. The file is optional; a missing file yields the defaults.
type Keywords struct {
	RelevanceKeywords  []string `yaml:"relevance_keywords"`
	SignalKeywords     []string `yaml:"signal_keywords"`
	AggregatorPrefixes []string `yaml:"aggregator_source_prefixes"`
	SensationalWords   []string `yaml:"sensational_words"`
	SensitiveKeywords  []string `yaml:"sensitive_keywords"`
	BlockedDomains     []string `yaml:"blocked_domains"`
}

func defaultKeywords() *Keywords {
	return &Keywords{
		RelevanceKeywords: []string{
			"aviation", "airline", "aircraft", "flight", "airport", "airspace",
			"runway", "notam", "atc", "faa", "easa", "iata", "icao", "ntsb",
			"airworthiness", "safety", "incident", "turbulence", "diversion",
			"民航", "航空", "航班", "飞机",
			"机场", "适航", "飞行", "跑道",
		},
		SignalKeywords: []string{
			"pilot", "crew", "cockpit", "type rating", "simulator", "checkride",
			"飞行员", "机组", "训练", "模拟机",
		},
		AggregatorPrefixes: []string{"google_"},
		SensationalWords: []string{
			"shocking", "unbelievable", "you won't believe",
			"震惊", "突发！",
		},
		SensitiveKeywords: []string{
			"crash killed", "casualties", "事故遇难",
		},
	}
}

// LoadKeywords reads the keyword config file, falling back to built-in
// defaults when the file is absent.
func LoadKeywords(path string) (*Keywords, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultKeywords(), nil
		}

		return nil, fmt.Errorf("read keywords config: %w", err)
	}

	kw := &Keywords{}
	if err := yaml.Unmarshal(data, kw); err != nil {
		return nil, fmt.Errorf("parse keywords config: %w", err)
	}

	defaults := defaultKeywords()
	if len(kw.RelevanceKeywords) == 0 {
		kw.RelevanceKeywords = defaults.RelevanceKeywords
	}

	if len(kw.SignalKeywords) == 0 {
		kw.SignalKeywords = defaults.SignalKeywords
	}

	if len(kw.AggregatorPrefixes) == 0 {
		kw.AggregatorPrefixes = defaults.AggregatorPrefixes
	}

	return kw, nil
}
