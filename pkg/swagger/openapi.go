package swagger

import (
	"regexp"
	"sort"

	"github.com/platinummonkey/gantry/pkg/filter"
	"github.com/platinummonkey/gantry/pkg/metadata"
)

// Version is the OpenAPI version of generated documents
const Version = "3.0.3"

// Media types of generated operations
const (
	mediaJSONLD     = "application/ld+json"
	mediaMergePatch = "application/merge-patch+json"
)

// Document is an OpenAPI document
type Document struct {
	OpenAPI    string               `json:"openapi" yaml:"openapi"`
	Info       Info                 `json:"info" yaml:"info"`
	Paths      map[string]*PathItem `json:"paths" yaml:"paths"`
	Components Components           `json:"components" yaml:"components"`
}

// Info describes the API
type Info struct {
	Title       string `json:"title" yaml:"title"`
	Version     string `json:"version" yaml:"version"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Components holds the reusable schemas
type Components struct {
	Schemas         map[string]*Schema         `json:"schemas" yaml:"schemas"`
	SecuritySchemes map[string]*SecurityScheme `json:"securitySchemes,omitempty" yaml:"securitySchemes,omitempty"`
}

// SecurityScheme declares how callers authenticate
type SecurityScheme struct {
	Type   string `json:"type" yaml:"type"`
	Scheme string `json:"scheme" yaml:"scheme"`
}

// PathItem holds the operations of one path
type PathItem struct {
	Get    *Operation `json:"get,omitempty" yaml:"get,omitempty"`
	Post   *Operation `json:"post,omitempty" yaml:"post,omitempty"`
	Put    *Operation `json:"put,omitempty" yaml:"put,omitempty"`
	Patch  *Operation `json:"patch,omitempty" yaml:"patch,omitempty"`
	Delete *Operation `json:"delete,omitempty" yaml:"delete,omitempty"`
}

// Operation is one documented HTTP operation
type Operation struct {
	OperationID string               `json:"operationId" yaml:"operationId"`
	Tags        []string             `json:"tags" yaml:"tags"`
	Summary     string               `json:"summary" yaml:"summary"`
	Parameters  []Parameter          `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	RequestBody *RequestBody         `json:"requestBody,omitempty" yaml:"requestBody,omitempty"`
	Responses   map[string]*Response `json:"responses" yaml:"responses"`
}

// Parameter is a path or query parameter
type Parameter struct {
	Name        string  `json:"name" yaml:"name"`
	In          string  `json:"in" yaml:"in"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool    `json:"required" yaml:"required"`
	Schema      *Schema `json:"schema" yaml:"schema"`
	Style       string  `json:"style,omitempty" yaml:"style,omitempty"`
	Explode     *bool   `json:"explode,omitempty" yaml:"explode,omitempty"`
}

// RequestBody documents an operation input
type RequestBody struct {
	Required bool                  `json:"required" yaml:"required"`
	Content  map[string]*MediaType `json:"content" yaml:"content"`
}

// Response documents one status code
type Response struct {
	Description string                `json:"description" yaml:"description"`
	Content     map[string]*MediaType `json:"content,omitempty" yaml:"content,omitempty"`
}

// MediaType binds a schema to a content type
type MediaType struct {
	Schema *Schema `json:"schema" yaml:"schema"`
}

// Schema is the subset of JSON schema used by generated documents
type Schema struct {
	Ref        string             `json:"$ref,omitempty" yaml:"$ref,omitempty"`
	Type       string             `json:"type,omitempty" yaml:"type,omitempty"`
	Format     string             `json:"format,omitempty" yaml:"format,omitempty"`
	Enum       []string           `json:"enum,omitempty" yaml:"enum,omitempty"`
	Nullable   bool               `json:"nullable,omitempty" yaml:"nullable,omitempty"`
	ReadOnly   bool               `json:"readOnly,omitempty" yaml:"readOnly,omitempty"`
	Required   []string           `json:"required,omitempty" yaml:"required,omitempty"`
	Properties map[string]*Schema `json:"properties,omitempty" yaml:"properties,omitempty"`
	Items      *Schema            `json:"items,omitempty" yaml:"items,omitempty"`
}

// FilterDescriber returns the query variables understood by a resource
type FilterDescriber func(res *metadata.Resource) []filter.Description

var pathVariable = regexp.MustCompile(`\{([^}]+)\}`)

// Generate builds the document of every resource in a resolved registry
func Generate(reg *metadata.Registry, info Info, describe FilterDescriber) *Document {
	doc := &Document{
		OpenAPI: Version,
		Info:    info,
		Paths:   make(map[string]*PathItem),
		Components: Components{
			Schemas: make(map[string]*Schema),
			SecuritySchemes: map[string]*SecurityScheme{
				"bearer": {Type: "http", Scheme: "bearer"},
			},
		},
	}

	for _, res := range reg.Resources() {
		doc.Components.Schemas[res.Name] = resourceSchema(res)

		var queryParams []Parameter
		if describe != nil {
			queryParams = filterParameters(describe(res))
		}

		if res.HasOperation(metadata.OpGetCollection) || res.HasOperation(metadata.OpPost) {
			item := doc.path(res.IRIPrefix)
			if res.HasOperation(metadata.OpGetCollection) {
				item.Get = collectionOperation(res, "get"+res.Name+"Collection", nil, queryParams)
			}
			if res.HasOperation(metadata.OpPost) {
				item.Post = writeOperation(res, "post"+res.Name, "Creates a "+res.Name+" resource.", mediaJSONLD, "201")
			}
		}

		itemPath := res.IRIPrefix + "/{id}"
		idParam := []Parameter{pathParameter("id", res.Name+" identifier")}
		if res.HasOperation(metadata.OpGet) {
			op := readOperation(res, "get"+res.Name+"Item", "Retrieves a "+res.Name+" resource.")
			op.Parameters = idParam
			doc.path(itemPath).Get = op
		}
		if res.HasOperation(metadata.OpPut) {
			op := writeOperation(res, "put"+res.Name+"Item", "Replaces the "+res.Name+" resource.", mediaJSONLD, "200")
			op.Parameters = idParam
			op.Responses["404"] = &Response{Description: "Resource not found"}
			doc.path(itemPath).Put = op
		}
		if res.HasOperation(metadata.OpPatch) {
			op := writeOperation(res, "patch"+res.Name+"Item", "Updates the "+res.Name+" resource.", mediaMergePatch, "200")
			op.Parameters = idParam
			op.Responses["404"] = &Response{Description: "Resource not found"}
			doc.path(itemPath).Patch = op
		}
		if res.HasOperation(metadata.OpDelete) {
			doc.path(itemPath).Delete = &Operation{
				OperationID: "delete" + res.Name + "Item",
				Tags:        []string{res.Name},
				Summary:     "Removes the " + res.Name + " resource.",
				Parameters:  idParam,
				Responses: map[string]*Response{
					"204": {Description: res.Name + " resource deleted"},
					"404": {Description: "Resource not found"},
				},
			}
		}

		for _, link := range res.Links {
			var pathParams []Parameter
			for _, m := range pathVariable.FindAllStringSubmatch(link.Path, -1) {
				pathParams = append(pathParams, pathParameter(m[1], link.FromClass+" identifier"))
			}
			doc.path(link.Path).Get = collectionOperation(res,
				"get"+link.FromClass+res.Name+"Collection", pathParams, queryParams)
		}
	}
	return doc
}

func (d *Document) path(p string) *PathItem {
	item, ok := d.Paths[p]
	if !ok {
		item = &PathItem{}
		d.Paths[p] = item
	}
	return item
}

func ref(res *metadata.Resource) *Schema {
	return &Schema{Ref: "#/components/schemas/" + res.Name}
}

func jsonLD(schema *Schema) map[string]*MediaType {
	return map[string]*MediaType{mediaJSONLD: {Schema: schema}}
}

func pathParameter(name, description string) Parameter {
	return Parameter{Name: name, In: "path", Description: description, Required: true, Schema: &Schema{Type: "string"}}
}

func readOperation(res *metadata.Resource, id, summary string) *Operation {
	return &Operation{
		OperationID: id,
		Tags:        []string{res.Name},
		Summary:     summary,
		Responses: map[string]*Response{
			"200": {Description: res.Name + " resource", Content: jsonLD(ref(res))},
			"404": {Description: "Resource not found"},
		},
	}
}

func writeOperation(res *metadata.Resource, id, summary, media, status string) *Operation {
	return &Operation{
		OperationID: id,
		Tags:        []string{res.Name},
		Summary:     summary,
		RequestBody: &RequestBody{
			Required: true,
			Content:  map[string]*MediaType{media: {Schema: ref(res)}},
		},
		Responses: map[string]*Response{
			status: {Description: res.Name + " resource", Content: jsonLD(ref(res))},
			"400":  {Description: "Invalid input"},
			"422":  {Description: "Unprocessable entity"},
		},
	}
}

func collectionOperation(res *metadata.Resource, id string, pathParams, queryParams []Parameter) *Operation {
	params := append([]Parameter{}, pathParams...)
	params = append(params, paginationParameters(res.Pagination)...)
	params = append(params, queryParams...)

	return &Operation{
		OperationID: id,
		Tags:        []string{res.Name},
		Summary:     "Retrieves the collection of " + res.Name + " resources.",
		Parameters:  params,
		Responses: map[string]*Response{
			"200": {
				Description: res.Name + " collection",
				Content: jsonLD(&Schema{
					Type: "object",
					Properties: map[string]*Schema{
						"hydra:member":     {Type: "array", Items: ref(res)},
						"hydra:totalItems": {Type: "integer"},
						"hydra:view":       {Type: "object"},
						"hydra:search":     {Type: "object"},
					},
				}),
			},
		},
	}
}

func paginationParameters(p metadata.Pagination) []Parameter {
	if !p.Enabled {
		return nil
	}
	params := []Parameter{{
		Name: "page", In: "query", Description: "The collection page number",
		Schema: &Schema{Type: "integer"},
	}}
	if p.ClientItemsPerPage {
		params = append(params, Parameter{
			Name: "itemsPerPage", In: "query", Description: "The number of items per page",
			Schema: &Schema{Type: "integer"},
		})
	}
	if p.ClientEnabled {
		params = append(params, Parameter{
			Name: "pagination", In: "query", Description: "Enable or disable pagination",
			Schema: &Schema{Type: "boolean"},
		})
	}
	return params
}

func filterParameters(descriptions []filter.Description) []Parameter {
	params := make([]Parameter, 0, len(descriptions))
	for _, d := range descriptions {
		schema := filterSchema(d.Type)
		p := Parameter{Name: d.Variable, In: "query", Required: d.Required, Schema: schema}
		if d.IsCollection {
			explode := true
			p.Schema = &Schema{Type: "array", Items: schema}
			p.Style = "form"
			p.Explode = &explode
		}
		if d.Strategy != "" {
			p.Description = d.Property + " (" + d.Strategy + ")"
		}
		params = append(params, p)
	}
	return params
}

func filterSchema(typ string) *Schema {
	switch typ {
	case "bool":
		return &Schema{Type: "boolean"}
	case "int":
		return &Schema{Type: "integer"}
	case "float":
		return &Schema{Type: "number"}
	case "DateTimeInterface":
		return &Schema{Type: "string", Format: "date-time"}
	default:
		return &Schema{Type: "string"}
	}
}

func resourceSchema(res *metadata.Resource) *Schema {
	schema := &Schema{
		Type: "object",
		Properties: map[string]*Schema{
			"@id":   {Type: "string", ReadOnly: true},
			"@type": {Type: "string", ReadOnly: true},
		},
	}
	for _, f := range res.Fields {
		schema.Properties[f.Name] = fieldSchema(f)
		if isRequired(f) {
			schema.Required = append(schema.Required, f.Name)
		}
	}
	sort.Strings(schema.Required)
	return schema
}

func isRequired(f *metadata.Field) bool {
	for _, c := range f.Constraints {
		if c.Name == "notBlank" || c.Name == "notNull" {
			return true
		}
	}
	return false
}

func fieldSchema(f *metadata.Field) *Schema {
	var s *Schema
	switch {
	case f.Relation != nil:
		iri := &Schema{Type: "string", Format: "iri-reference"}
		if f.Relation.IsToMany() {
			s = &Schema{Type: "array", Items: iri}
		} else {
			s = iri
		}
	case f.Type == metadata.TypeEmbedded:
		s = &Schema{Type: "object", Properties: make(map[string]*Schema, len(f.Embedded))}
		for _, sub := range f.Embedded {
			s.Properties[sub.Name] = fieldSchema(sub)
		}
	default:
		s = scalarSchema(f)
	}
	s.Nullable = f.Nullable
	s.ReadOnly = f.Generated
	return s
}

func scalarSchema(f *metadata.Field) *Schema {
	switch f.Type {
	case metadata.TypeBool:
		return &Schema{Type: "boolean"}
	case metadata.TypeInt:
		return &Schema{Type: "integer"}
	case metadata.TypeFloat:
		return &Schema{Type: "number"}
	case metadata.TypeDecimal:
		return &Schema{Type: "string", Format: "decimal"}
	case metadata.TypeDate:
		return &Schema{Type: "string", Format: "date"}
	case metadata.TypeDateTime:
		return &Schema{Type: "string", Format: "date-time"}
	case metadata.TypeEnum:
		return &Schema{Type: "string", Enum: append([]string(nil), f.Choices...)}
	default:
		return &Schema{Type: "string"}
	}
}
