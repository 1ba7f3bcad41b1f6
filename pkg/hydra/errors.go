package hydra

import (
	"github.com/platinummonkey/gantry/pkg/metadata"
	"github.com/platinummonkey/gantry/pkg/validation"
)

// ErrorTitle is the title of every error document
const ErrorTitle = "An error occurred"

// Error renders a hydra:Error document
func Error(status int, detail string) Document {
	return Document{
		"@context":          "/contexts/Error",
		"@type":             "hydra:Error",
		"hydra:title":       ErrorTitle,
		"hydra:description": detail,
		"title":             ErrorTitle,
		"detail":            detail,
		"status":            status,
	}
}

// Violations renders a ConstraintViolationList document
func Violations(status int, violations validation.ViolationList) Document {
	list := make([]any, 0, len(violations))
	for _, v := range violations {
		list = append(list, Document{
			"propertyPath": v.PropertyPath,
			"message":      v.Message,
			"code":         v.Code,
		})
	}
	detail := violations.Error()
	return Document{
		"@context":          "/contexts/ConstraintViolationList",
		"@type":             "ConstraintViolationList",
		"hydra:title":       ErrorTitle,
		"hydra:description": detail,
		"title":             ErrorTitle,
		"detail":            detail,
		"status":            status,
		"violations":        list,
	}
}

// Entrypoint lists the collection path of every resource
func Entrypoint(resources []*metadata.Resource) Document {
	doc := Document{
		"@context": "/contexts/Entrypoint",
		"@id":      "/",
		"@type":    "Entrypoint",
	}
	for _, res := range resources {
		doc[metadata.LowerCamel(res.Name)] = res.IRIPrefix
	}
	return doc
}

// Context renders the JSON-LD context of a resource, mapping every
// property into the API vocabulary
func Context(res *metadata.Resource) Document {
	terms := Document{
		"@vocab": "/docs.jsonld#",
		"hydra":  "http://www.w3.org/ns/hydra/core#",
	}
	for _, f := range res.Fields {
		term := Document{"@id": res.Name + "/" + f.Name}
		if f.Relation != nil {
			term["@type"] = "@id"
		}
		terms[f.Name] = term
	}
	return Document{"@context": terms}
}
