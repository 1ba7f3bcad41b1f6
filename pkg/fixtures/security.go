package fixtures

import (
	"github.com/platinummonkey/gantry/pkg/metadata"
)

// SecuredDummy is readable by its owner and writable by admins or the
// owner it is assigned to
type SecuredDummy struct {
	ID          int64  `json:"id" orm:"id;generated"`
	Title       string `json:"title" assert:"notBlank"`
	Description string `json:"description"`
	Owner       string `json:"owner" assert:"notBlank"`
}

// ValidatedDummy carries one field per constraint
type ValidatedDummy struct {
	ID       int64   `json:"id" orm:"id;generated"`
	Name     string  `json:"name" assert:"notBlank;length(max=10)"`
	Email    *string `json:"email" assert:"email"`
	Age      *int    `json:"age" assert:"range(min=0,max=150)"`
	Category string  `json:"category" orm:"choices=a|b|c"`
	Code     *string `json:"code" assert:"regex(pattern=^[A-Z]{3}$)"`
	Score    *int    `json:"score" assert:"positive"`
}

func securityResources() []*metadata.Resource {
	return []*metadata.Resource{
		metadata.MustParse("SecuredDummy", SecuredDummy{},
			metadata.WithSecurity("is_granted('ROLE_USER')", ""),
			metadata.WithOperations(
				metadata.Operation{Kind: metadata.OpGetCollection},
				metadata.Operation{
					Kind:            metadata.OpGet,
					Security:        "is_granted('ROLE_ADMIN') or object.owner == user",
					SecurityMessage: "Sorry, but you are not the owner of this item.",
				},
				metadata.Operation{
					Kind:                    metadata.OpPost,
					SecurityPostDenormalize: "is_granted('ROLE_ADMIN') or object.owner == user",
					SecurityMessage:         "Only admins can create items for other users.",
				},
				metadata.Operation{
					Kind:                    metadata.OpPut,
					Security:                "is_granted('ROLE_ADMIN') or object.owner == user",
					SecurityPostDenormalize: "is_granted('ROLE_ADMIN') or (object.owner == user and previous_object.owner == user)",
					SecurityMessage:         "Sorry, but you are not the owner of this item.",
				},
				metadata.Operation{
					Kind:            metadata.OpDelete,
					Security:        "is_granted('ROLE_ADMIN')",
					SecurityMessage: "Only admins can delete items.",
				},
			),
			metadata.WithFilters(metadata.Filter("search", map[string]string{"owner": "exact", "title": "partial"})),
		),
		metadata.MustParse("ValidatedDummy", ValidatedDummy{}),
	}
}
