// Package definition holds the persisted workflow definition entity,
// its store contract, and the lifecycle service that gates every save
// behind the graph validator.
package definition
