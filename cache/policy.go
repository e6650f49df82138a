package cache

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// ResourceClass names a category of cacheable result with its own TTL
type ResourceClass string

const (
	// ClassBrandAnalysis is a complete brand analysis result
	ClassBrandAnalysis ResourceClass = "brand-analysis"
	// ClassBrandDiscovery is the site profile gathered by discovery
	ClassBrandDiscovery ResourceClass = "brand-discovery"
	// ClassProviderScan is the raw answers of one provider for one subject
	ClassProviderScan ResourceClass = "provider-scan"
)

// Policy maps each resource class to its validity window
type Policy map[ResourceClass]time.Duration

// DefaultPolicy returns the standard TTL table
func DefaultPolicy() Policy {
	return Policy{
		ClassBrandAnalysis:  6 * time.Hour,
		ClassBrandDiscovery: 1 * time.Hour,
		ClassProviderScan:   30 * time.Minute,
	}
}

// TTL returns the validity window of class
func (p Policy) TTL(class ResourceClass) (time.Duration, bool) {
	ttl, ok := p[class]
	return ttl, ok
}

// Validate checks that every class has a positive TTL
func (p Policy) Validate() error {
	if len(p) == 0 {
		return fmt.Errorf("cache policy has no resource classes")
	}
	for class, ttl := range p {
		if class == "" {
			return fmt.Errorf("cache policy contains an empty resource class")
		}
		if ttl <= 0 {
			return fmt.Errorf("resource class %s must have a positive TTL, got %s", class, ttl)
		}
	}
	return nil
}

// MaxTTL returns the longest TTL in the table
func (p Policy) MaxTTL() time.Duration {
	var longest time.Duration
	for _, ttl := range p {
		if ttl > longest {
			longest = ttl
		}
	}
	return longest
}

// Classes returns the resource classes in name order
func (p Policy) Classes() []ResourceClass {
	classes := make([]ResourceClass, 0, len(p))
	for class := range p {
		classes = append(classes, class)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i] < classes[j] })
	return classes
}

// policyFile is the YAML layout of a policy override file:
//
//	resource_classes:
//	  brand-analysis: 12h
//	  provider-scan: 15m
type policyFile struct {
	ResourceClasses map[string]string `yaml:"resource_classes"`
}

// LoadPolicyFile overlays the TTLs found in the YAML file at path onto base
func LoadPolicyFile(path string, base Policy) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cache policy file: %w", err)
	}

	var file policyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse cache policy file: %w", err)
	}

	merged := make(Policy, len(base)+len(file.ResourceClasses))
	for class, ttl := range base {
		merged[class] = ttl
	}
	for name, raw := range file.ResourceClasses {
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("resource class %s: invalid ttl %q: %w", name, raw, err)
		}
		merged[ResourceClass(name)] = ttl
	}

	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return merged, nil
}
