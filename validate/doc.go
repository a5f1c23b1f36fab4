// Package validate checks request parameters against the schema declared by a
// call and its authentication binding.
//
// Values from query strings and forms arrive as strings; numeric and boolean
// parameters accept them when they parse, and the parsed value replaces the
// string in the parameter map so handlers see typed values.
//
//	errs := validate.Validate(&call, params, files)
//	if !errs.Empty() {
//		// respond {success:false, error:errs}
//	}
package validate
