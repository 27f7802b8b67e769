// internal/service/template_service.go
package service

import (
	"sort"
	"strings"

	"github.com/unclebandit/leopard-outreach/internal/model"
)

// Defaults used when a lead field is blank, so a message never reads "Olá ,".
var placeholderDefaults = map[string]string{
	"name":     "você",
	"industry": "seu setor",
	"location": "sua região",
	"website":  "seu site",
}

// RenderTemplate replaces every ${key} in template with data[key] in a single
// pass. Placeholders inside substituted values are left as they are.
func RenderTemplate(template string, data map[string]string) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, "${"+k+"}", data[k])
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// RenderForLead interpolates the lead placeholders, falling back to neutral
// wording for blank fields.
func RenderForLead(template string, lead *model.Lead) string {
	fields := map[string]string{
		"name":     lead.Name,
		"industry": lead.Industry,
		"location": lead.Location,
		"website":  lead.Website,
	}
	for k, v := range fields {
		if strings.TrimSpace(v) == "" {
			fields[k] = placeholderDefaults[k]
		}
	}
	return RenderTemplate(template, fields)
}
