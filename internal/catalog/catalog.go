/*
Copyright 2025 The llm-d Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package catalog provides the registry of course codes a term draws its
// offered courses from.
package catalog

import (
	"fmt"
	"maps"
	"math/rand/v2"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog maps course codes to titles. It is immutable once built.
type Catalog struct {
	titles map[string]string
}

var defaultTitles = map[string]string{
	"C101": "Statistics & Probability I",
	"C102": "Econometrics III",
	"C103": "Machine Learning",
	"C104": "Analytical Geometry",
	"C105": "Introduction to C++",
	"C106": "Python Programming",
	"C107": "Linear Algebra",
	"C108": "Introduction to Logic",
	"C109": "Advance Calculus",
	"C110": "Probability & Measure Theory",
}

// Default returns the built-in catalog of ten courses.
func Default() *Catalog {
	c, _ := New(defaultTitles)
	return c
}

// New builds a catalog from code -> title entries.
func New(titles map[string]string) (*Catalog, error) {
	if len(titles) == 0 {
		return nil, fmt.Errorf("catalog must contain at least one course")
	}
	out := make(map[string]string, len(titles))
	for code, title := range titles {
		code = strings.TrimSpace(code)
		if code == "" {
			return nil, fmt.Errorf("catalog contains an empty course code")
		}
		if _, dup := out[code]; dup {
			return nil, fmt.Errorf("catalog contains course %s twice", code)
		}
		out[code] = strings.TrimSpace(title)
	}
	return &Catalog{titles: out}, nil
}

// Load reads a YAML document of the form
//
//	C101: Statistics & Probability I
//	C102: Econometrics III
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}
	var titles map[string]string
	if err := yaml.Unmarshal(data, &titles); err != nil {
		return nil, fmt.Errorf("parsing catalog %s: %w", path, err)
	}
	c, err := New(titles)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog %s: %w", path, err)
	}
	return c, nil
}

// Len returns the number of courses.
func (c *Catalog) Len() int {
	return len(c.titles)
}

// Codes returns every course code in ascending order.
func (c *Catalog) Codes() []string {
	return slices.Sorted(maps.Keys(c.titles))
}

// Title returns the title of code.
func (c *Catalog) Title(code string) (string, bool) {
	t, ok := c.titles[code]
	return t, ok
}

// Draw picks n distinct codes uniformly at random without replacement.
func (c *Catalog) Draw(n int, rng *rand.Rand) ([]string, error) {
	if n < 1 || n > c.Len() {
		return nil, fmt.Errorf("cannot offer %d courses from a catalog of %d", n, c.Len())
	}
	codes := c.Codes()
	rng.Shuffle(len(codes), func(i, j int) {
		codes[i], codes[j] = codes[j], codes[i]
	})
	return codes[:n], nil
}
