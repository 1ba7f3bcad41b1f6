// Package validation checks items against the constraints declared on
// resource fields.
//
// Constraints come from the assert struct tag:
//
//	Name  string `json:"name" assert:"notBlank;length(max=20)"`
//	Email string `json:"email" assert:"email"`
//	Price int    `json:"price" assert:"range(min=1,max=100)"`
//
// Enum fields get an implicit choice constraint on their declared choices.
// Each failure is a Violation carrying the property path, the message and
// the stable code clients match on:
//
//	v := validation.NewValidator(nil)
//	if violations := v.Validate(res, item); len(violations) > 0 {
//		// 422 with a ConstraintViolationList document
//	}
package validation
