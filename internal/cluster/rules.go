package cluster

import (
	"errors"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tracelens/rootgraph/internal/models"
)

// AdviceEngine maps detected clusters onto remediation hints from a YAML
// rule pack. Hints ride on the API response only; the cluster model itself
// stays untouched.
type AdviceEngine struct {
	rules  []Rule
	logger *slog.Logger
}

// Rule is a single advice rule.
type Rule struct {
	ID     string    `yaml:"id"`
	Match  RuleMatch `yaml:"match"`
	Advice []string  `yaml:"advice"`
}

// RuleMatch defines optional attributes for rule matching. Empty fields
// match everything.
type RuleMatch struct {
	Cause         string  `yaml:"cause"`
	MinCount      int     `yaml:"min_count"`
	MinConfidence float64 `yaml:"min_confidence"`
}

// RuleConfigFile is the YAML root structure.
type RuleConfigFile struct {
	Rules []Rule `yaml:"rules"`
}

// NewAdviceEngine loads rules from the provided path. If the path is empty
// or the file does not exist, a nil engine is returned and advice is
// simply skipped.
func NewAdviceEngine(path string, logger *slog.Logger) (*AdviceEngine, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var cfg RuleConfigFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AdviceEngine{rules: cfg.Rules, logger: logger}, nil
}

// Advise returns the deduplicated hints matching any of the clusters.
func (e *AdviceEngine) Advise(clusters []models.FailureCluster) []string {
	if e == nil || len(clusters) == 0 {
		return nil
	}

	matched := make([]string, 0)
	for _, rule := range e.rules {
		for _, c := range clusters {
			if rule.Match.Cause != "" && !strings.EqualFold(rule.Match.Cause, c.CommonCause) {
				continue
			}
			if rule.Match.MinCount > 0 && c.Count < rule.Match.MinCount {
				continue
			}
			if rule.Match.MinConfidence > 0 && c.Confidence < rule.Match.MinConfidence {
				continue
			}
			matched = appendUnique(matched, rule.Advice...)
			break
		}
	}
	return matched
}

func appendUnique(existing []string, additions ...string) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, item := range existing {
		seen[item] = struct{}{}
	}
	for _, item := range additions {
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		existing = append(existing, item)
		seen[item] = struct{}{}
	}
	return existing
}
