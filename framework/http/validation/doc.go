// Package validation checks flat string maps against Laravel-style rule
// strings. The manifest loader and the inspection API use it to vet
// container keys and flags before they reach a container.
//
// # Basic Usage
//
//	v := validation.MustCompile(validation.Rules{
//	    "key":    "required|key|max:255",
//	    "shared": "nullable|boolean",
//	})
//
//	if err := v.Check(map[string]string{"key": "mailer", "shared": "true"}); err != nil {
//	    var bag *validation.Errors
//	    errors.As(err, &bag)
//	    // bag.Bag is map[string][]string
//	    // JSON: {"errors": {"field": ["message1"]}}
//	}
//
// Rules are compiled once; unknown rules and bad parameters fail at
// Compile. A regex parameter cannot contain "|".
//
// # Available Rules
//
//   - required: present and not blank
//   - nullable, sometimes: skip the field's rules when it is empty
//   - min:n, max:n: length bounds in UTF-8 characters
//   - numeric, integer, boolean (true/false/1/0/yes/no)
//   - in:a,b,c and not_in:a,b,c
//   - different:other: must not equal data[other]
//   - alpha_dash: letters, numbers, dashes, underscores
//   - key: a container key such as "cache", "app.name" or
//     "example.com/pkg.Type"
//   - regex:pattern
package validation
