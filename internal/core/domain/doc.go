// Package domain holds shopbot's entities and sentinel errors: catalog
// products, document chunks, retrieval results and the settings that pick
// providers and stores.
//
// Everything else in the module imports domain; domain imports only the
// standard library.
package domain
