// Package plugins loads extension declarations from disk.
//
// Declarations can be written as YAML documents, as HCL extension blocks, or
// as Go source evaluated with yaegi that exposes an Extensions() function.
// Loaders only parse and validate individual declarations; graph-level
// checks such as duplicate ids are left to the resolver.
package plugins
