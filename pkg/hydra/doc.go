// Package hydra renders resource items as Hydra/JSON-LD documents and
// decodes request bodies back into items.
//
// Item documents carry @context, @id and @type followed by the properties
// readable in the operation's normalization groups. Relations are written
// as IRIs unless the related resource exposes properties in the same
// groups, in which case the related item is embedded.
//
// Collection documents follow the hydra:Collection vocabulary:
//
//	{
//	  "@context": "/contexts/Dummy",
//	  "@id": "/dummies",
//	  "@type": "hydra:Collection",
//	  "hydra:totalItems": 2,
//	  "hydra:member": [...],
//	  "hydra:view": {"@id": "/dummies?page=1", "@type": "hydra:PartialCollectionView", ...},
//	  "hydra:search": {"@type": "hydra:IriTemplate", "hydra:template": "/dummies{?name}", ...}
//	}
package hydra
