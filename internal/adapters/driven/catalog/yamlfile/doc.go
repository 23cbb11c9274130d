// Package yamlfile reads product catalogs from YAML files for
// "shopbot catalog import".
//
// A catalog file is either a bare list of products or a mapping with a
// top-level "products" key:
//
//	products:
//	  - id: 1
//	    name: Trail Runner
//	    name_alt: ...
//	    category: Footwear
//	    brand: Acme
//	    price: 89.90
//	    stock_quantity: 12
//
// Derived fields (serialized text, embedding, state) are never read
// from the file.
package yamlfile
