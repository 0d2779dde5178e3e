// Package catalog compiles CUE catalog files into item definitions and
// starting grants for the local inventory store.
//
// A catalog looks like:
//
//	definitions: [
//		{def: 100, name: "Crate", price: 250},
//		{def: 101, name: "Key", price: 99, base_price: 120},
//	]
//	grants: [
//		{def: 100, quantity: 3},
//	]
//
// The file is unified with an embedded schema, so unknown fields, negative
// prices and out-of-range quantities are rejected with a *CompileError
// carrying the source position.
package catalog
