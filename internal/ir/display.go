package ir

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titler = cases.Title(language.English)

// DisplayName turns a rule name such as "non_manifold_uvs" into "Non Manifold Uvs".
func DisplayName(name string) string {
	name = strings.TrimSuffix(strings.TrimSuffix(name, "_get"), "_fix")
	fields := strings.FieldsFunc(name, func(r rune) bool {
		switch r {
		case '_', '-', '/', '"', ',', ' ':
			return true
		}
		return false
	})
	if len(fields) == 0 {
		return name
	}
	for i, f := range fields {
		fields[i] = titler.String(f)
	}
	return strings.Join(fields, " ")
}
