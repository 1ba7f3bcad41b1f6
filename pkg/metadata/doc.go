// Package metadata describes the resources exposed by gantry.
//
// # Overview
//
// A Resource couples the persistence mapping of a Go struct (table, columns,
// relations, identifiers, embedded values, single table inheritance) with its
// API exposure (operations, serialization groups, filters, query parameters,
// security expressions, pagination and links).
//
// # Declaring Resources
//
// Mapping is read from struct tags by Parse:
//
//	type Chicken struct {
//		ID          int64        `json:"id" orm:"id;generated"`
//		Name        string       `json:"name" assert:"notBlank"`
//		ChickenCoop *ChickenCoop `json:"chickenCoop" orm:"manyToOne=ChickenCoop"`
//	}
//
//	chicken := metadata.MustParse("Chicken", Chicken{},
//		metadata.WithFilters(metadata.Filter("search", map[string]string{"name": "partial"})),
//	)
//
// API metadata can also be layered from YAML with LoadOverlay.
//
// # Registry
//
// Resources are registered in a Registry and resolved once all of them are
// known. The registry builds and parses IRIs:
//
//	reg := metadata.NewRegistry()
//	reg.Register(coop, chicken)
//	if err := reg.Resolve(); err != nil {
//		return err
//	}
//	reg.IRI(coop, int64(2))                  // "/chicken_coops/2"
//	res, id, err := reg.ParseIRI("/chicken_coops/2")
//
// # Items
//
// Stores and serializers exchange Items, maps of property name to value.
// Resource.ItemOf converts a tagged entity into an Item for seeding.
package metadata
