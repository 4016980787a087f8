// Package validation validates recipes and configuration.
//
// Struct tag validation uses the validator library and reports fields by
// their json/yaml names:
//
//	type Step struct {
//	    Type string `json:"type" validate:"required,oneof=join_columns filter"`
//	    Glue string `json:"glue" validate:"omitempty,max=8"`
//	}
//	err := validation.Validate(step)
//
// Rules that depend on other fields are checked programmatically:
//
//	v := validation.New()
//	v.Required("steps[0].mapper", step.Mapper)
//	err := v.Err()
//
// Both forms return an INVALID_INPUT *errors.AppError whose "fields" detail
// lists every failing field.
package validation
