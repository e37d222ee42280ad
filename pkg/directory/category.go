// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package directory

import "strings"

// Agent categories.
const (
	CategoryResearch    = "research"
	CategoryContent     = "content"
	CategoryBusiness    = "business"
	CategorySocial      = "social"
	CategoryDevelopment = "development"
	CategoryAnalysis    = "analysis"
	CategoryGeneral     = "general"
)

// categoryKeywords is checked in order; the first match wins.
var categoryKeywords = []struct {
	category string
	keywords []string
}{
	{CategoryResearch, []string{"research", "search", "web", "crawl", "scrape", "rag", "knowledge"}},
	{CategoryContent, []string{"content", "create", "generate", "write", "blog", "tweet", "educator", "summar"}},
	{CategoryBusiness, []string{"business", "real-estate", "estate", "property", "booking", "invoice", "lead", "market"}},
	{CategorySocial, []string{"social", "reddit", "twitter", "linkedin", "youtube"}},
	{CategoryDevelopment, []string{"code", "dev", "github", "app-maker", "stack", "n8n", "mcp"}},
	{CategoryAnalysis, []string{"analy", "data", "finance", "stats", "nba"}},
}

// InferCategory derives a category from an agent name.
func InferCategory(name string) string {
	lower := strings.ToLower(name)
	for _, entry := range categoryKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.category
			}
		}
	}
	return CategoryGeneral
}
